package parking

import (
	"fmt"
	"strings"
)

type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
	VehicleElectric   VehicleType = "electric"
)

var vehicleTypes = []VehicleType{VehicleCar, VehicleMotorcycle, VehicleVan, VehicleTruck, VehicleElectric}

func (v VehicleType) String() string {
	return string(v)
}

// ParseVehicleType accepts the lower-case names used in layout files and API payloads.
func ParseVehicleType(s string) (VehicleType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, vt := range vehicleTypes {
		if string(vt) == s {
			return vt, nil
		}
	}
	return "", fmt.Errorf("unknown vehicle type %q", s)
}

type Vehicle struct {
	Type  VehicleType `json:"type"`
	Plate string      `json:"plate"`
}

func NewVehicle(vehicleType VehicleType, plate string) Vehicle {
	return Vehicle{
		Type:  vehicleType,
		Plate: plate,
	}
}

func containsVehicle(list []VehicleType, vt VehicleType) bool {
	for _, v := range list {
		if v == vt {
			return true
		}
	}
	return false
}

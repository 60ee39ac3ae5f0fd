package parking

import "time"

// VehicleTypeAllowed reports whether the institution admits the vehicle type.
// An empty allow-list admits everything.
func VehicleTypeAllowed(vt VehicleType, inst Institution) bool {
	if len(inst.Rules.AllowedVehicles) == 0 {
		return true
	}
	return containsVehicle(inst.Rules.AllowedVehicles, vt)
}

// SpotEligible reports whether a vehicle of type vt may be assigned to spot
// right now. Ancestor enablement is the caller's concern.
func SpotEligible(vt VehicleType, spot *Spot) bool {
	if spot == nil || !spot.Enabled || spot.Status != StatusAvailable {
		return false
	}
	if len(spot.AllowedVehicles) == 0 {
		return true
	}
	return containsVehicle(spot.AllowedVehicles, vt)
}

func DurationValid(entry, exit time.Time, inst Institution) bool {
	if inst.Rules.MaxDuration <= 0 {
		return true
	}
	return exit.Sub(entry) <= inst.Rules.MaxDuration
}

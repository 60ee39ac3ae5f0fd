package parking

import (
	"time"

	"github.com/shopspring/decimal"
)

type Rules struct {
	// MaxDuration of zero means sessions are unlimited.
	MaxDuration     time.Duration
	AllowedVehicles []VehicleType
}

// Institution carries the tariff and admission rules of the facility.
type Institution struct {
	ID          string
	Name        string
	FreeParking bool
	FreeMinutes int
	BaseRate    decimal.Decimal
	HourlyRate  decimal.Decimal
	Rules       Rules
}

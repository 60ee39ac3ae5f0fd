package parking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Calculator prices a finished session.
type Calculator interface {
	Calculate(t Ticket, inst Institution, category SpotCategory) (decimal.Decimal, error)
}

// CalculatorFunc adapts a plain function to Calculator.
type CalculatorFunc func(t Ticket, inst Institution, category SpotCategory) (decimal.Decimal, error)

func (f CalculatorFunc) Calculate(t Ticket, inst Institution, category SpotCategory) (decimal.Decimal, error) {
	return f(t, inst, category)
}

var categoryMultipliers = map[SpotCategory]decimal.Decimal{
	CategoryStandard:   decimal.NewFromInt(1),
	CategoryVIP:        decimal.RequireFromString("1.5"),
	CategoryAccessible: decimal.RequireFromString("0.8"),
	CategoryStaff:      decimal.Zero,
}

// CategoryMultiplier returns the factor applied to the whole charge. Unknown
// categories price like standard spots.
func CategoryMultiplier(category SpotCategory) decimal.Decimal {
	if m, ok := categoryMultipliers[category]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// DurationPricing charges the base rate plus every started hour past the free
// allowance, then scales the total by the spot category multiplier.
type DurationPricing struct{}

func (DurationPricing) Calculate(t Ticket, inst Institution, category SpotCategory) (decimal.Decimal, error) {
	if t.ExitTime == nil {
		return decimal.Zero, fmt.Errorf("calculate charge for ticket %s: no exit time: %w", t.ID, ErrInvalidState)
	}

	totalMinutes := int64(t.ExitTime.Sub(t.EntryTime) / time.Minute)
	charge := inst.BaseRate

	billableMinutes := totalMinutes - int64(inst.FreeMinutes)
	if billableMinutes > 0 {
		billableHours := (billableMinutes + 59) / 60
		charge = charge.Add(inst.HourlyRate.Mul(decimal.NewFromInt(billableHours)))
	}

	return charge.Mul(CategoryMultiplier(category)), nil
}

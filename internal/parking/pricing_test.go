package parking

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exitedTicket(parked time.Duration) Ticket {
	exit := testEpoch.Add(parked)
	return Ticket{ID: "T1", EntryTime: testEpoch, ExitTime: &exit}
}

func TestDurationPricing(t *testing.T) {
	tests := []struct {
		name     string
		parked   time.Duration
		category SpotCategory
		want     string
	}{
		{"within free minutes", 20 * time.Minute, CategoryStandard, "10.00"},
		{"exactly free minutes", 30 * time.Minute, CategoryStandard, "10.00"},
		{"partial minute is truncated", 30*time.Minute + 59*time.Second, CategoryStandard, "10.00"},
		{"one started hour", 45 * time.Minute, CategoryStandard, "15.00"},
		{"full hour", 90 * time.Minute, CategoryStandard, "15.00"},
		{"second hour started", 91 * time.Minute, CategoryStandard, "20.00"},
		{"vip", 45 * time.Minute, CategoryVIP, "22.50"},
		{"accessible", 45 * time.Minute, CategoryAccessible, "12.00"},
		{"staff", 45 * time.Minute, CategoryStaff, "0.00"},
		{"unknown category prices as standard", 45 * time.Minute, SpotCategory("valet"), "15.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DurationPricing{}.Calculate(exitedTicket(tt.parked), testInstitution(), tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestDurationPricingKeepsDecimalPrecision(t *testing.T) {
	inst := testInstitution()
	inst.BaseRate = decimal.RequireFromString("0.10")
	inst.HourlyRate = decimal.RequireFromString("0.20")

	got, err := DurationPricing{}.Calculate(exitedTicket(45*time.Minute), inst, CategoryStandard)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.30").Equal(got), "got %s", got)
}

func TestDurationPricingRequiresExitTime(t *testing.T) {
	_, err := DurationPricing{}.Calculate(Ticket{ID: "T1", EntryTime: testEpoch}, testInstitution(), CategoryStandard)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestCalculatorFunc(t *testing.T) {
	var c Calculator = CalculatorFunc(func(Ticket, Institution, SpotCategory) (decimal.Decimal, error) {
		return decimal.NewFromInt(7), nil
	})
	got, err := c.Calculate(Ticket{}, Institution{}, CategoryStandard)
	require.NoError(t, err)
	assert.Equal(t, "7", got.String())
}

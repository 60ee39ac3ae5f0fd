package parking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpot(t *testing.T) {
	s := NewSpot("S1", CategoryVIP)

	assert.Equal(t, "S1", s.ID)
	assert.Equal(t, CategoryVIP, s.Category)
	assert.Equal(t, StatusAvailable, s.Status)
	assert.True(t, s.Enabled)
	assert.Empty(t, s.TicketID)
	assert.False(t, s.IsOccupied())
}

func TestSpotOccupyRelease(t *testing.T) {
	s := NewSpot("S1", CategoryStandard)

	s.occupy("T1")
	assert.True(t, s.IsOccupied())
	assert.Equal(t, "T1", s.TicketID)

	assert.Equal(t, "T1", s.release())
	assert.False(t, s.IsOccupied())
	assert.Equal(t, StatusAvailable, s.Status)
	assert.Empty(t, s.TicketID)
}

func TestSpotCloneIsIndependent(t *testing.T) {
	s := restrictedSpot("S1", CategoryStandard, VehicleCar)
	c := s.clone()

	c.AllowedVehicles[0] = VehicleTruck
	c.occupy("T1")

	assert.Equal(t, VehicleCar, s.AllowedVehicles[0])
	assert.False(t, s.IsOccupied())
}

func TestParseSpotCategory(t *testing.T) {
	for _, c := range SpotCategories() {
		got, err := ParseSpotCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseSpotCategory("VIP")
	require.NoError(t, err)
	assert.Equal(t, CategoryVIP, got)

	_, err = ParseSpotCategory("premium")
	assert.Error(t, err)
}

func TestParseSpotStatus(t *testing.T) {
	for _, s := range []SpotStatus{StatusAvailable, StatusOccupied, StatusDisabled, StatusReserved} {
		got, err := ParseSpotStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSpotStatus("broken")
	assert.Error(t, err)
}

func TestSpotCategoriesReturnsCopy(t *testing.T) {
	cats := SpotCategories()
	cats[0] = "mutated"

	assert.Equal(t, CategoryStandard, SpotCategories()[0])
}

package parking

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testEpoch = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func sequentialIDs() func(time.Time) string {
	n := 0
	return func(time.Time) string {
		n++
		return fmt.Sprintf("T%d", n)
	}
}

func testInstitution() Institution {
	return Institution{
		ID:          "inst-1",
		Name:        "Central Garage",
		FreeMinutes: 30,
		BaseRate:    decimal.NewFromInt(10),
		HourlyRate:  decimal.NewFromInt(5),
	}
}

func restrictedSpot(id string, category SpotCategory, allowed ...VehicleType) *Spot {
	s := NewSpot(id, category)
	s.AllowedVehicles = allowed
	return s
}

// newTestLot builds:
//
//	F1 (enabled)
//	  A: S1 standard, S2 vip
//	  B: S3 accessible (car only), S4 standard (motorcycle only)
//	F2 (disabled)
//	  C: S5 standard
func newTestLot() *ParkingLot {
	return &ParkingLot{
		ID:   "lot-1",
		Name: "Main",
		Floors: []*Floor{
			{
				ID: "F1", Name: "Ground", Enabled: true,
				Sections: []*Section{
					{ID: "A", Name: "A", Enabled: true, Spots: []*Spot{
						NewSpot("S1", CategoryStandard),
						NewSpot("S2", CategoryVIP),
					}},
					{ID: "B", Name: "B", Enabled: true, Spots: []*Spot{
						restrictedSpot("S3", CategoryAccessible, VehicleCar),
						restrictedSpot("S4", CategoryStandard, VehicleMotorcycle),
					}},
				},
			},
			{
				ID: "F2", Name: "Upper", Enabled: false,
				Sections: []*Section{
					{ID: "C", Name: "C", Enabled: true, Spots: []*Spot{
						NewSpot("S5", CategoryStandard),
					}},
				},
			},
		},
	}
}

func newTestOrchestrator(lot *ParkingLot, inst Institution, clock *fakeClock, opts ...Option) *Orchestrator {
	opts = append([]Option{WithClock(clock.Now), WithTicketIDs(sequentialIDs())}, opts...)
	return NewOrchestrator(lot, inst, opts...)
}

func spotByID(lot *ParkingLot, id string) *Spot {
	var found *Spot
	lot.walk(false, func(p Placement) bool {
		if p.Spot.ID == id {
			found = p.Spot
			return false
		}
		return true
	})
	return found
}

// assertOccupancyConsistent checks that a spot carries a ticket id exactly
// when it is occupied.
func assertOccupancyConsistent(t *testing.T, lot *ParkingLot) {
	t.Helper()
	lot.walk(false, func(p Placement) bool {
		assert.Equal(t, p.Spot.Status == StatusOccupied, p.Spot.TicketID != "",
			"spot %s status=%s ticket=%q", p.Spot.ID, p.Spot.Status, p.Spot.TicketID)
		return true
	})
}

package parking

import (
	"fmt"
	"strings"
)

type SpotCategory string

const (
	CategoryStandard   SpotCategory = "standard"
	CategoryVIP        SpotCategory = "vip"
	CategoryStaff      SpotCategory = "staff"
	CategoryAccessible SpotCategory = "accessible"
)

var spotCategories = []SpotCategory{CategoryStandard, CategoryVIP, CategoryStaff, CategoryAccessible}

func (c SpotCategory) String() string {
	return string(c)
}

// SpotCategories lists every category in a stable order.
func SpotCategories() []SpotCategory {
	out := make([]SpotCategory, len(spotCategories))
	copy(out, spotCategories)
	return out
}

func ParseSpotCategory(s string) (SpotCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range spotCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown spot category %q", s)
}

type SpotStatus string

const (
	StatusAvailable SpotStatus = "available"
	StatusOccupied  SpotStatus = "occupied"
	StatusDisabled  SpotStatus = "disabled"
	StatusReserved  SpotStatus = "reserved"
)

func (s SpotStatus) String() string {
	return string(s)
}

func ParseSpotStatus(s string) (SpotStatus, error) {
	switch SpotStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAvailable:
		return StatusAvailable, nil
	case StatusOccupied:
		return StatusOccupied, nil
	case StatusDisabled:
		return StatusDisabled, nil
	case StatusReserved:
		return StatusReserved, nil
	}
	return "", fmt.Errorf("unknown spot status %q", s)
}

// Spot is a single parking space. TicketID is the identity of the occupying
// ticket and is non-empty exactly when Status is StatusOccupied.
type Spot struct {
	ID              string
	Name            string
	Category        SpotCategory
	Status          SpotStatus
	AllowedVehicles []VehicleType
	Enabled         bool
	TicketID        string

	// status to return to when the occupying ticket leaves
	heldStatus SpotStatus
}

func NewSpot(id string, category SpotCategory) *Spot {
	return &Spot{
		ID:       id,
		Name:     id,
		Category: category,
		Status:   StatusAvailable,
		Enabled:  true,
	}
}

func (s *Spot) IsOccupied() bool {
	return s.Status == StatusOccupied
}

// occupy remembers a disabled or reserved status so that release restores it.
// That only happens when a reload changes the status of a spot under a parked
// vehicle.
func (s *Spot) occupy(ticketID string) {
	if s.Status == StatusDisabled || s.Status == StatusReserved {
		s.heldStatus = s.Status
	}
	s.Status = StatusOccupied
	s.TicketID = ticketID
}

func (s *Spot) release() string {
	ticketID := s.TicketID
	s.Status = StatusAvailable
	if s.heldStatus != "" {
		s.Status = s.heldStatus
		s.heldStatus = ""
	}
	s.TicketID = ""
	return ticketID
}

func (s *Spot) clone() *Spot {
	c := *s
	if s.AllowedVehicles != nil {
		c.AllowedVehicles = append([]VehicleType(nil), s.AllowedVehicles...)
	}
	return &c
}

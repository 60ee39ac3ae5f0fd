package parking

// LayoutIndex searches and mutates spot state in one loaded tree. It is not
// safe for concurrent use; the Orchestrator serializes access to it.
type LayoutIndex struct {
	lot *ParkingLot
}

func NewLayoutIndex(lot *ParkingLot) *LayoutIndex {
	if lot == nil {
		lot = &ParkingLot{}
	}
	return &LayoutIndex{lot: lot}
}

// Lot returns the live tree. Callers must not retain it across a reload.
func (li *LayoutIndex) Lot() *ParkingLot {
	return li.lot
}

// FindAvailableSpot scans the enabled tree in declaration order, first for the
// preferred category, then for standard spots, then for any category. The
// first eligible spot of a pass wins.
func (li *LayoutIndex) FindAvailableSpot(vt VehicleType, preferred *SpotCategory) (Placement, bool) {
	if preferred != nil {
		want := *preferred
		if p, ok := li.scan(vt, func(c SpotCategory) bool { return c == want }); ok {
			return p, true
		}
	}
	if p, ok := li.scan(vt, func(c SpotCategory) bool { return c == CategoryStandard }); ok {
		return p, true
	}
	return li.scan(vt, func(SpotCategory) bool { return true })
}

func (li *LayoutIndex) scan(vt VehicleType, match func(SpotCategory) bool) (Placement, bool) {
	var found Placement
	ok := false
	li.lot.walk(true, func(p Placement) bool {
		if match(p.Spot.Category) && SpotEligible(vt, p.Spot) {
			found, ok = p, true
			return false
		}
		return true
	})
	return found, ok
}

// Assign marks spot occupied by ticketID. Eligibility must already be checked.
func (li *LayoutIndex) Assign(spot *Spot, ticketID string) {
	spot.occupy(ticketID)
}

func (li *LayoutIndex) Free(spot *Spot) {
	spot.release()
}

// Locate resolves a location by exact identifiers at every level. Enablement
// is ignored: an occupied spot stays reachable after its floor is disabled.
func (li *LayoutIndex) Locate(loc Location) (Placement, bool) {
	for _, floor := range li.lot.Floors {
		if floor.ID != loc.FloorID {
			continue
		}
		for _, section := range floor.Sections {
			if section.ID != loc.SectionID {
				continue
			}
			for _, spot := range section.Spots {
				if spot.ID == loc.SpotID {
					return Placement{Floor: floor, Section: section, Spot: spot}, true
				}
			}
			return Placement{}, false
		}
		return Placement{}, false
	}
	return Placement{}, false
}

type Availability struct {
	TotalCapacity       int                  `json:"total_capacity"`
	Occupied            int                  `json:"occupied"`
	Available           int                  `json:"available"`
	AvailableByCategory map[SpotCategory]int `json:"available_by_category"`
}

// Availability recounts the enabled tree on every call. Spots with status
// disabled do not count toward capacity.
func (li *LayoutIndex) Availability() Availability {
	a := Availability{AvailableByCategory: make(map[SpotCategory]int, len(spotCategories))}
	for _, c := range spotCategories {
		a.AvailableByCategory[c] = 0
	}
	li.lot.walk(true, func(p Placement) bool {
		if p.Spot.Status == StatusDisabled {
			return true
		}
		a.TotalCapacity++
		if p.Spot.IsOccupied() {
			a.Occupied++
		} else {
			a.AvailableByCategory[p.Spot.Category]++
		}
		return true
	})
	a.Available = a.TotalCapacity - a.Occupied
	return a
}

// OccupiedSpots returns occupied spots across the whole tree, enabled or not,
// in declaration order.
func (li *LayoutIndex) OccupiedSpots() []Placement {
	var out []Placement
	li.lot.walk(false, func(p Placement) bool {
		if p.Spot.IsOccupied() {
			out = append(out, p)
		}
		return true
	})
	return out
}

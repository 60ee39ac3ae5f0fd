package parking

// ParkingLot is the root of the Floor -> Section -> Spot tree. Slice order is
// declaration order and drives every search.
type ParkingLot struct {
	ID     string
	Name   string
	Floors []*Floor
}

type Floor struct {
	ID       string
	Name     string
	Enabled  bool
	Sections []*Section
}

type Section struct {
	ID      string
	Name    string
	Enabled bool
	Spots   []*Spot
}

// Location references a spot by identifiers rather than by pointer so a
// ticket survives a layout reload.
type Location struct {
	FloorID   string `json:"floor_id"`
	SectionID string `json:"section_id"`
	SpotID    string `json:"spot_id"`
}

// Placement is a resolved position in the currently loaded tree.
type Placement struct {
	Floor   *Floor
	Section *Section
	Spot    *Spot
}

func (p Placement) Location() Location {
	return Location{
		FloorID:   p.Floor.ID,
		SectionID: p.Section.ID,
		SpotID:    p.Spot.ID,
	}
}

// Clone deep-copies the tree.
func (pl *ParkingLot) Clone() *ParkingLot {
	if pl == nil {
		return nil
	}
	out := &ParkingLot{ID: pl.ID, Name: pl.Name, Floors: make([]*Floor, 0, len(pl.Floors))}
	for _, f := range pl.Floors {
		floor := &Floor{ID: f.ID, Name: f.Name, Enabled: f.Enabled, Sections: make([]*Section, 0, len(f.Sections))}
		for _, s := range f.Sections {
			section := &Section{ID: s.ID, Name: s.Name, Enabled: s.Enabled, Spots: make([]*Spot, 0, len(s.Spots))}
			for _, sp := range s.Spots {
				section.Spots = append(section.Spots, sp.clone())
			}
			floor.Sections = append(floor.Sections, section)
		}
		out.Floors = append(out.Floors, floor)
	}
	return out
}

// walk visits every spot in declaration order. When enabledOnly is set, spots
// beneath a disabled floor or section and disabled spots are skipped.
// Returning false from fn stops the walk.
func (pl *ParkingLot) walk(enabledOnly bool, fn func(Placement) bool) {
	if pl == nil {
		return
	}
	for _, floor := range pl.Floors {
		if enabledOnly && !floor.Enabled {
			continue
		}
		for _, section := range floor.Sections {
			if enabledOnly && !section.Enabled {
				continue
			}
			for _, spot := range section.Spots {
				if enabledOnly && !spot.Enabled {
					continue
				}
				if !fn(Placement{Floor: floor, Section: section, Spot: spot}) {
					return
				}
			}
		}
	}
}

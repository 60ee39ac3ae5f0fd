package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"parking-facility/internal/parking"
)

// FromYAML parses and validates a layout document.
func FromYAML(data []byte) (*parking.ParkingLot, parking.Institution, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, parking.Institution{}, fmt.Errorf("decode layout: %w", err)
	}
	return doc.Resolve()
}

// Resolve converts the document into the core model. All string-to-enum
// parsing happens here.
func (d Document) Resolve() (*parking.ParkingLot, parking.Institution, error) {
	inst, err := d.Institution.resolve()
	if err != nil {
		return nil, parking.Institution{}, err
	}

	lot := &parking.ParkingLot{ID: d.Lot.ID, Name: d.Lot.Name}
	floorIDs := map[string]bool{}
	for fi, fd := range d.Floors {
		if fd.ID == "" {
			return nil, inst, fmt.Errorf("floors[%d]: id is required", fi)
		}
		if floorIDs[fd.ID] {
			return nil, inst, fmt.Errorf("floor %s: duplicate id", fd.ID)
		}
		floorIDs[fd.ID] = true

		floor := &parking.Floor{ID: fd.ID, Name: nameOr(fd.Name, fd.ID), Enabled: enabled(fd.Enabled)}
		sectionIDs := map[string]bool{}
		for si, sd := range fd.Sections {
			if sd.ID == "" {
				return nil, inst, fmt.Errorf("floor %s sections[%d]: id is required", fd.ID, si)
			}
			if sectionIDs[sd.ID] {
				return nil, inst, fmt.Errorf("floor %s section %s: duplicate id", fd.ID, sd.ID)
			}
			sectionIDs[sd.ID] = true

			section := &parking.Section{ID: sd.ID, Name: nameOr(sd.Name, sd.ID), Enabled: enabled(sd.Enabled)}
			spotIDs := map[string]bool{}
			for pi, pd := range sd.Spots {
				where := fmt.Sprintf("floor %s section %s", fd.ID, sd.ID)
				if pd.ID == "" {
					return nil, inst, fmt.Errorf("%s spots[%d]: id is required", where, pi)
				}
				if spotIDs[pd.ID] {
					return nil, inst, fmt.Errorf("%s spot %s: duplicate id", where, pd.ID)
				}
				spotIDs[pd.ID] = true

				spot, err := pd.resolve()
				if err != nil {
					return nil, inst, fmt.Errorf("%s spot %s: %w", where, pd.ID, err)
				}
				section.Spots = append(section.Spots, spot)
			}
			floor.Sections = append(floor.Sections, section)
		}
		lot.Floors = append(lot.Floors, floor)
	}
	return lot, inst, nil
}

func (d InstitutionDoc) resolve() (parking.Institution, error) {
	baseRate, err := parseRate(d.BaseRate)
	if err != nil {
		return parking.Institution{}, fmt.Errorf("institution base_rate: %w", err)
	}
	hourlyRate, err := parseRate(d.HourlyRate)
	if err != nil {
		return parking.Institution{}, fmt.Errorf("institution hourly_rate: %w", err)
	}
	if d.FreeMinutes < 0 {
		return parking.Institution{}, errors.New("institution free_minutes must not be negative")
	}
	if d.MaxDurationMinutes < 0 {
		return parking.Institution{}, errors.New("institution max_duration_minutes must not be negative")
	}
	allowed, err := parseVehicles(d.AllowedVehicles)
	if err != nil {
		return parking.Institution{}, fmt.Errorf("institution allowed_vehicles: %w", err)
	}

	return parking.Institution{
		ID:          d.ID,
		Name:        d.Name,
		FreeParking: d.FreeParking,
		FreeMinutes: d.FreeMinutes,
		BaseRate:    baseRate,
		HourlyRate:  hourlyRate,
		Rules: parking.Rules{
			MaxDuration:     time.Duration(d.MaxDurationMinutes) * time.Minute,
			AllowedVehicles: allowed,
		},
	}, nil
}

func (d SpotDoc) resolve() (*parking.Spot, error) {
	category := parking.CategoryStandard
	if d.Category != "" {
		c, err := parking.ParseSpotCategory(d.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}

	status := parking.StatusAvailable
	if d.Status != "" {
		s, err := parking.ParseSpotStatus(d.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}
	if status == parking.StatusOccupied && d.TicketID == "" {
		return nil, errors.New("occupied spot has no ticket_id")
	}
	if status != parking.StatusOccupied && d.TicketID != "" {
		return nil, fmt.Errorf("%s spot carries ticket_id %s", status, d.TicketID)
	}

	allowed, err := parseVehicles(d.AllowedVehicles)
	if err != nil {
		return nil, err
	}

	return &parking.Spot{
		ID:              d.ID,
		Name:            nameOr(d.Name, d.ID),
		Category:        category,
		Status:          status,
		AllowedVehicles: allowed,
		Enabled:         enabled(d.Enabled),
		TicketID:        d.TicketID,
	}, nil
}

// ToDocument is the inverse of Resolve, used for write-back.
func ToDocument(lot *parking.ParkingLot, inst parking.Institution) Document {
	doc := Document{
		Institution: InstitutionDoc{
			ID:                 inst.ID,
			Name:               inst.Name,
			FreeParking:        inst.FreeParking,
			FreeMinutes:        inst.FreeMinutes,
			BaseRate:           inst.BaseRate.String(),
			HourlyRate:         inst.HourlyRate.String(),
			MaxDurationMinutes: int(inst.Rules.MaxDuration / time.Minute),
			AllowedVehicles:    vehicleNames(inst.Rules.AllowedVehicles),
		},
		Lot: LotDoc{ID: lot.ID, Name: lot.Name},
	}
	for _, f := range lot.Floors {
		fd := FloorDoc{ID: f.ID, Name: f.Name, Enabled: flag(f.Enabled)}
		for _, s := range f.Sections {
			sd := SectionDoc{ID: s.ID, Name: s.Name, Enabled: flag(s.Enabled)}
			for _, sp := range s.Spots {
				sd.Spots = append(sd.Spots, SpotDoc{
					ID:              sp.ID,
					Name:            sp.Name,
					Category:        sp.Category.String(),
					Status:          sp.Status.String(),
					Enabled:         flag(sp.Enabled),
					AllowedVehicles: vehicleNames(sp.AllowedVehicles),
					TicketID:        sp.TicketID,
				})
			}
			fd.Sections = append(fd.Sections, sd)
		}
		doc.Floors = append(doc.Floors, fd)
	}
	return doc
}

// FileSource loads the layout from a YAML file and writes occupancy back to
// the same file. A ReadOnly source never touches the file after loading.
type FileSource struct {
	Path     string
	ReadOnly bool
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (fs *FileSource) LoadLayout(ctx context.Context) (*parking.ParkingLot, parking.Institution, error) {
	if err := ctx.Err(); err != nil {
		return nil, parking.Institution{}, err
	}
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, parking.Institution{}, fmt.Errorf("layout %s not found", fs.Path)
		}
		return nil, parking.Institution{}, err
	}
	lot, inst, err := FromYAML(data)
	if err != nil {
		return nil, parking.Institution{}, fmt.Errorf("layout %s: %w", fs.Path, err)
	}
	return lot, inst, nil
}

// SaveLayout writes spot occupancy into the file as it is on disk. Only the
// status and ticket_id of spots present in both trees change, so edits the
// operator made since the last load survive until the next reload picks them
// up. A missing file is written from the snapshot alone. The file is replaced
// atomically.
func (fs *FileSource) SaveLayout(ctx context.Context, lot *parking.ParkingLot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fs.ReadOnly {
		return nil
	}

	var doc Document
	data, err := os.ReadFile(fs.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("read current layout: %w", err)
		}
		mergeOccupancy(&doc, lot)
	case os.IsNotExist(err):
		doc = ToDocument(lot, parking.Institution{})
	default:
		return fmt.Errorf("read current layout: %w", err)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.Path), ".layout-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fs.Path)
}

// mergeOccupancy copies occupancy from lot onto the matching spots of doc.
// A spot the snapshot holds is written occupied; a spot the file still shows
// occupied but the snapshot has freed takes the snapshot's status. Any other
// status in the file is the operator's and is left alone.
func mergeOccupancy(doc *Document, lot *parking.ParkingLot) {
	spots := make(map[parking.Location]*parking.Spot)
	for _, f := range lot.Floors {
		for _, s := range f.Sections {
			for _, sp := range s.Spots {
				spots[parking.Location{FloorID: f.ID, SectionID: s.ID, SpotID: sp.ID}] = sp
			}
		}
	}

	for fi := range doc.Floors {
		fd := &doc.Floors[fi]
		for si := range fd.Sections {
			sd := &fd.Sections[si]
			for pi := range sd.Spots {
				pd := &sd.Spots[pi]
				sp, ok := spots[parking.Location{FloorID: fd.ID, SectionID: sd.ID, SpotID: pd.ID}]
				if !ok {
					continue
				}
				switch {
				case sp.IsOccupied():
					pd.Status = parking.StatusOccupied.String()
					pd.TicketID = sp.TicketID
				case pd.Status == parking.StatusOccupied.String() || pd.TicketID != "":
					pd.Status = sp.Status.String()
					pd.TicketID = ""
				}
			}
		}
	}
}

func parseRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %s must not be negative", s)
	}
	return d, nil
}

func parseVehicles(names []string) ([]parking.VehicleType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]parking.VehicleType, 0, len(names))
	for _, n := range names {
		vt, err := parking.ParseVehicleType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func vehicleNames(list []parking.VehicleType) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.String()
	}
	return out
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func flag(b bool) *bool {
	return &b
}

func nameOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

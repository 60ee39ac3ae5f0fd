package layout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/parking"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "garage.yaml"))
	require.NoError(t, err)
	return data
}

func copyFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, readFixture(t), 0o644))
	return path
}

func TestFromYAML(t *testing.T) {
	lot, inst, err := FromYAML(readFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "Central Garage", inst.Name)
	assert.Equal(t, 30, inst.FreeMinutes)
	assert.Equal(t, "10", inst.BaseRate.String())
	assert.Equal(t, "5", inst.HourlyRate.String())
	assert.Equal(t, 24*time.Hour, inst.Rules.MaxDuration)
	assert.Equal(t, []parking.VehicleType{parking.VehicleCar, parking.VehicleMotorcycle, parking.VehicleElectric},
		inst.Rules.AllowedVehicles)

	assert.Equal(t, "lot-1", lot.ID)
	require.Len(t, lot.Floors, 2)

	ground := lot.Floors[0]
	assert.True(t, ground.Enabled)
	require.Len(t, ground.Sections, 2)
	assert.Equal(t, "A", ground.Sections[0].Name, "name defaults to id")

	s1 := ground.Sections[0].Spots[0]
	assert.Equal(t, parking.CategoryStandard, s1.Category)
	assert.Equal(t, parking.StatusAvailable, s1.Status)
	assert.True(t, s1.Enabled)
	assert.Empty(t, s1.AllowedVehicles)

	s4 := ground.Sections[1].Spots[1]
	assert.Equal(t, parking.StatusOccupied, s4.Status)
	assert.Equal(t, "T20260302100000-abc", s4.TicketID)
	assert.Equal(t, []parking.VehicleType{parking.VehicleMotorcycle}, s4.AllowedVehicles)

	upper := lot.Floors[1]
	assert.False(t, upper.Enabled)
	assert.False(t, upper.Sections[0].Spots[1].Enabled)
	assert.Equal(t, parking.CategoryStaff, upper.Sections[0].Spots[1].Category)
}

func TestFromYAMLRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  "lot: {id: x}\nfloorz: []\n",
			want: "floorz",
		},
		{
			name: "negative rate",
			doc:  "institution: {base_rate: \"-1\"}\n",
			want: "base_rate",
		},
		{
			name: "bad rate",
			doc:  "institution: {hourly_rate: abc}\n",
			want: "hourly_rate",
		},
		{
			name: "negative free minutes",
			doc:  "institution: {free_minutes: -5}\n",
			want: "free_minutes",
		},
		{
			name: "unknown vehicle",
			doc:  "institution: {allowed_vehicles: [tank]}\n",
			want: "tank",
		},
		{
			name: "floor without id",
			doc:  "floors:\n  - name: x\n",
			want: "id is required",
		},
		{
			name: "duplicate floor",
			doc:  "floors:\n  - id: F1\n  - id: F1\n",
			want: "duplicate",
		},
		{
			name: "duplicate spot",
			doc:  "floors:\n  - id: F1\n    sections:\n      - id: A\n        spots: [{id: S1}, {id: S1}]\n",
			want: "spot S1: duplicate",
		},
		{
			name: "unknown category",
			doc:  "floors:\n  - id: F1\n    sections:\n      - id: A\n        spots: [{id: S1, category: gold}]\n",
			want: "gold",
		},
		{
			name: "occupied without ticket",
			doc:  "floors:\n  - id: F1\n    sections:\n      - id: A\n        spots: [{id: S1, status: occupied}]\n",
			want: "no ticket_id",
		},
		{
			name: "ticket on available spot",
			doc:  "floors:\n  - id: F1\n    sections:\n      - id: A\n        spots: [{id: S1, ticket_id: T1}]\n",
			want: "ticket_id T1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromYAML([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSameIDsAllowedUnderDifferentParents(t *testing.T) {
	doc := `
floors:
  - id: F1
    sections:
      - id: A
        spots: [{id: S1}]
  - id: F2
    sections:
      - id: A
        spots: [{id: S1}]
`
	lot, _, err := FromYAML([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, lot.Floors, 2)
}

func TestToDocumentRoundTrip(t *testing.T) {
	lot, inst, err := FromYAML(readFixture(t))
	require.NoError(t, err)

	again, inst2, err := ToDocument(lot, inst).Resolve()
	require.NoError(t, err)
	assert.Equal(t, lot, again)
	assert.True(t, inst.BaseRate.Equal(inst2.BaseRate))
	assert.Equal(t, inst.Rules, inst2.Rules)
}

func TestFileSourceLoad(t *testing.T) {
	src := NewFileSource(copyFixture(t))

	lot, inst, err := src.LoadLayout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Central Garage", inst.Name)
	assert.Len(t, lot.Floors, 2)

	_, _, err = NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).LoadLayout(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = src.LoadLayout(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSourceSaveKeepsInstitution(t *testing.T) {
	path := copyFixture(t)
	src := NewFileSource(path)
	ctx := context.Background()

	lot, _, err := src.LoadLayout(ctx)
	require.NoError(t, err)

	s1 := lot.Floors[0].Sections[0].Spots[0]
	s1.Status = parking.StatusOccupied
	s1.TicketID = "T1"

	// only the tree is written; the institution section comes from disk
	require.NoError(t, src.SaveLayout(ctx, lot))

	reloaded, inst, err := src.LoadLayout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Central Garage", inst.Name)
	assert.Equal(t, "T1", reloaded.Floors[0].Sections[0].Spots[0].TicketID)
	assert.Equal(t, lot, reloaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is cleaned up")
}

func TestFileSourceReadOnly(t *testing.T) {
	path := copyFixture(t)
	before := readFixture(t)
	src := &FileSource{Path: path, ReadOnly: true}
	ctx := context.Background()

	lot, _, err := src.LoadLayout(ctx)
	require.NoError(t, err)
	lot.Floors[0].Enabled = false
	require.NoError(t, src.SaveLayout(ctx, lot))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileSourceImplementsLayoutSource(t *testing.T) {
	var _ parking.LayoutSource = (*FileSource)(nil)
}

func TestFileSourceSaveKeepsOperatorEdits(t *testing.T) {
	path := copyFixture(t)
	src := NewFileSource(path)
	ctx := context.Background()

	lot, _, err := src.LoadLayout(ctx)
	require.NoError(t, err)

	edited := append(readFixture(t), []byte(`  - id: F3
    name: Roof
    sections:
      - id: R
        spots:
          - id: S9
`)...)
	edited = []byte(strings.Replace(string(edited), "          - id: S1\n", "          - id: S1\n            status: reserved\n", 1))
	require.NoError(t, os.WriteFile(path, edited, 0o644))

	// S2 taken and S4 released since the load; S1 was reserved on disk meanwhile
	lot.Floors[0].Sections[0].Spots[1].Status = parking.StatusOccupied
	lot.Floors[0].Sections[0].Spots[1].TicketID = "T2"
	lot.Floors[0].Sections[1].Spots[1].Status = parking.StatusAvailable
	lot.Floors[0].Sections[1].Spots[1].TicketID = ""
	require.NoError(t, src.SaveLayout(ctx, lot))

	reloaded, inst, err := src.LoadLayout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Central Garage", inst.Name)
	require.Len(t, reloaded.Floors, 3, "floor added on disk survives")
	assert.Equal(t, "S9", reloaded.Floors[2].Sections[0].Spots[0].ID)

	spots := reloaded.Floors[0].Sections
	assert.Equal(t, parking.StatusReserved, spots[0].Spots[0].Status)
	assert.Equal(t, parking.StatusOccupied, spots[0].Spots[1].Status)
	assert.Equal(t, "T2", spots[0].Spots[1].TicketID)
	assert.Equal(t, parking.StatusAvailable, spots[1].Spots[1].Status)
	assert.Empty(t, spots[1].Spots[1].TicketID)
}

func TestFileSourceSaveSkipsRemovedSpots(t *testing.T) {
	path := copyFixture(t)
	src := NewFileSource(path)
	ctx := context.Background()

	lot, _, err := src.LoadLayout(ctx)
	require.NoError(t, err)

	single := []byte(`institution: {name: Central Garage}
floors:
  - id: F1
    sections:
      - id: A
        spots: [{id: S1}]
`)
	require.NoError(t, os.WriteFile(path, single, 0o644))

	lot.Floors[1].Sections[0].Spots[0].Status = parking.StatusOccupied
	lot.Floors[1].Sections[0].Spots[0].TicketID = "T5"
	require.NoError(t, src.SaveLayout(ctx, lot))

	reloaded, _, err := src.LoadLayout(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded.Floors, 1)
	assert.Equal(t, parking.StatusAvailable, reloaded.Floors[0].Sections[0].Spots[0].Status)
}

func TestFileSourceSaveCreatesMissingFile(t *testing.T) {
	lot, _, err := FromYAML(readFixture(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "new.yaml")
	require.NoError(t, NewFileSource(path).SaveLayout(context.Background(), lot))

	reloaded, _, err := NewFileSource(path).LoadLayout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lot, reloaded)
}

package parking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeSource struct {
	mu      sync.Mutex
	lot     *ParkingLot
	inst    Institution
	loadErr error
	saved   []*ParkingLot
}

func (s *fakeSource) LoadLayout(ctx context.Context) (*ParkingLot, Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, Institution{}, s.loadErr
	}
	return s.lot.Clone(), s.inst, nil
}

func (s *fakeSource) SaveLayout(ctx context.Context, lot *ParkingLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, lot)
	return nil
}

func (s *fakeSource) lastSaved() *ParkingLot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeStore struct {
	mu      sync.Mutex
	tickets map[string]Ticket
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: make(map[string]Ticket)}
}

func (s *fakeStore) SaveTicket(ctx context.Context, t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tickets[t.ID] = t
	return nil
}

func (s *fakeStore) ActiveTickets(ctx context.Context) ([]Ticket, error) {
	return s.byStatus(TicketParked), nil
}

func (s *fakeStore) History(ctx context.Context, limit int) ([]Ticket, error) {
	out := s.byStatus(TicketExited)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) MarkPaid(ctx context.Context, id string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != TicketExited {
		return Ticket{}, ErrTicketNotFound
	}
	t.Paid = true
	s.tickets[id] = t
	return t, nil
}

func (s *fakeStore) byStatus(status TicketStatus) []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Ticket
	for _, t := range s.tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type instrumentedFixture struct {
	ino    *InstrumentedOrchestrator
	clock  *fakeClock
	source *fakeSource
	store  *fakeStore
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newInstrumentedFixture(t *testing.T, inst Institution) *instrumentedFixture {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	telemetry := NewTelemetryProviderFrom("parking-test", tp, mp)
	t.Cleanup(func() {
		_ = telemetry.Shutdown(context.Background())
	})

	clock := newFakeClock()
	source := &fakeSource{lot: newTestLot(), inst: inst}
	store := newFakeStore()
	lot, _, err := source.LoadLayout(context.Background())
	require.NoError(t, err)

	ino, err := NewInstrumentedOrchestrator(newTestOrchestrator(lot, inst, clock), telemetry, source, store)
	require.NoError(t, err)

	return &instrumentedFixture{
		ino:    ino,
		clock:  clock,
		source: source,
		store:  store,
		spans:  spans,
		reader: reader,
	}
}

func (f *instrumentedFixture) spanNames() []string {
	var names []string
	for _, s := range f.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func (f *instrumentedFixture) sumInt64(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestInstrumentedOrchestratorRoundTrip(t *testing.T) {
	f := newInstrumentedFixture(t, testInstitution())
	ctx := context.Background()

	ticket, ok, err := f.ino.Enter(ctx, NewVehicle(VehicleCar, "KA01HH1234"), nil)
	require.NoError(t, err)
	require.True(t, ok)

	stored := f.store.tickets[ticket.ID]
	assert.Equal(t, TicketParked, stored.Status)
	require.NotNil(t, f.source.lastSaved())
	assert.Equal(t, ticket.ID, spotByID(f.source.lastSaved(), "S1").TicketID)
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_occupancy"))

	f.clock.Advance(45 * time.Minute)
	result, ok, err := f.ino.Exit(ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "15.00", result.Charge.StringFixed(2))

	stored = f.store.tickets[ticket.ID]
	assert.Equal(t, TicketExited, stored.Status)
	assert.Equal(t, "15.00", stored.Charge.StringFixed(2))
	assert.False(t, spotByID(f.source.lastSaved(), "S1").IsOccupied())

	assert.Equal(t, int64(1), f.sumInt64(t, "parking_entries_total"))
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_exits_total"))
	assert.Equal(t, int64(0), f.sumInt64(t, "parking_occupancy"))
	assert.Subset(t, f.spanNames(), []string{"parking.enter", "parking.exit"})

	history, err := f.ino.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	paid, err := f.ino.MarkPaid(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
}

func TestInstrumentedOrchestratorRejections(t *testing.T) {
	inst := testInstitution()
	inst.Rules.AllowedVehicles = []VehicleType{VehicleCar}
	inst.Rules.MaxDuration = time.Hour
	f := newInstrumentedFixture(t, inst)
	ctx := context.Background()

	_, ok, err := f.ino.Enter(ctx, NewVehicle(VehicleTruck, "TRK"), nil)
	assert.True(t, errors.Is(err, ErrVehicleNotAllowed))
	assert.False(t, ok)
	assert.Empty(t, f.store.tickets)

	ticket, _, err := f.ino.Enter(ctx, NewVehicle(VehicleCar, "CAR"), nil)
	require.NoError(t, err)
	saves := len(f.source.saved)

	f.clock.Advance(2 * time.Hour)
	_, ok, err = f.ino.Exit(ctx, ticket.ID)
	assert.True(t, errors.Is(err, ErrDurationExceeded))
	assert.True(t, ok)
	assert.Len(t, f.source.saved, saves, "failed exits do not persist")
	assert.Equal(t, TicketParked, f.store.tickets[ticket.ID].Status)

	result, ok, err := f.ino.ForceExit(ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, result.Overridden)
	assert.Contains(t, f.spanNames(), "parking.force_exit")

	_, ok, err = f.ino.Exit(ctx, "T404")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumentedOrchestratorPersistFailureIsNotFatal(t *testing.T) {
	f := newInstrumentedFixture(t, testInstitution())
	f.store.saveErr = errors.New("disk full")

	_, ok, err := f.ino.Enter(context.Background(), NewVehicle(VehicleCar, "CAR"), nil)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.ino.Availability().Occupied)
}

func TestInstrumentedOrchestratorReload(t *testing.T) {
	f := newInstrumentedFixture(t, testInstitution())
	ctx := context.Background()

	ticket, _, err := f.ino.Enter(ctx, NewVehicle(VehicleCar, "CAR"), nil)
	require.NoError(t, err)

	smaller := newTestLot()
	smaller.Floors[0].Sections = smaller.Floors[0].Sections[1:]
	f.source.lot = smaller

	orphaned, err := f.ino.Reload(ctx)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)
	assert.Equal(t, ticket.ID, orphaned[0].ID)
	assert.Equal(t, 2, f.ino.GetAvailability(ctx).TotalCapacity)
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_occupancy"), "an orphaned ticket is still active")

	f.source.loadErr = errors.New("bad yaml")
	_, err = f.ino.Reload(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, f.ino.GetAvailability(ctx).TotalCapacity, "a failed reload keeps the old layout")
}

func TestInstrumentedOrchestratorOccupancyAcrossDisabledFloor(t *testing.T) {
	f := newInstrumentedFixture(t, testInstitution())
	ctx := context.Background()

	ticket, ok, err := f.ino.Enter(ctx, NewVehicle(VehicleCar, "UP"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_occupancy"))

	closed := newTestLot()
	closed.Floors[0].Enabled = false
	f.source.lot = closed

	orphaned, err := f.ino.Reload(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphaned)
	assert.Equal(t, 0, f.ino.Availability().Occupied, "disabled floors are not counted")
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_occupancy"))

	_, ok, err = f.ino.Exit(ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), f.sumInt64(t, "parking_occupancy"))
}

func TestInstrumentedOrchestratorRestoreTickets(t *testing.T) {
	f := newInstrumentedFixture(t, testInstitution())
	ctx := context.Background()

	f.store.tickets["T50"] = Ticket{
		ID:        "T50",
		Vehicle:   NewVehicle(VehicleCar, "BACK"),
		EntryTime: testEpoch.Add(-time.Hour),
		Location:  Location{FloorID: "F1", SectionID: "B", SpotID: "S3"},
		Status:    TicketParked,
	}

	n, err := f.ino.RestoreTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := f.ino.Ticket("T50")
	assert.True(t, ok)
	assert.Equal(t, 1, f.ino.Availability().Occupied)
	assert.Equal(t, int64(1), f.sumInt64(t, "parking_occupancy"))
}

func TestInstrumentedOrchestratorWithoutStore(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	telemetry := NewTelemetryProviderFrom("",
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		sdkmetric.NewMeterProvider())
	ino, err := NewInstrumentedOrchestrator(NewOrchestrator(newTestLot(), testInstitution()), telemetry, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ino.MarkPaid(ctx, "T1")
	assert.True(t, errors.Is(err, ErrTicketNotFound))

	history, err := ino.History(ctx, 5)
	assert.NoError(t, err)
	assert.Empty(t, history)

	n, err := ino.RestoreTickets(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = ino.Reload(ctx)
	assert.Error(t, err)
}

package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/logging"
)

// InstrumentedOrchestrator decorates an Orchestrator with tracing, metrics,
// logging and best-effort persistence of tickets and layout state.
type InstrumentedOrchestrator struct {
	*Orchestrator
	telemetry *TelemetryProvider
	source    LayoutSource
	store     TicketStore

	// serializes snapshot+save so a stale layout never overwrites a newer one
	persistMu sync.Mutex

	entryOperations   metric.Int64Counter
	exitOperations    metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	revenueCounter    metric.Float64Counter
	operationDuration metric.Float64Histogram
}

func NewInstrumentedOrchestrator(o *Orchestrator, telemetry *TelemetryProvider, source LayoutSource, store TicketStore) (*InstrumentedOrchestrator, error) {
	meter := telemetry.Meter()

	entryOperations, err := meter.Int64Counter("parking_entries_total",
		metric.WithDescription("Total number of vehicle entry attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("parking_exits_total",
		metric.WithDescription("Total number of vehicle exit attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_occupancy",
		metric.WithDescription("Current number of active parking tickets"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	revenueCounter, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Charges computed at exit"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of parking operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	ino := &InstrumentedOrchestrator{
		Orchestrator:      o,
		telemetry:         telemetry,
		source:            source,
		store:             store,
		entryOperations:   entryOperations,
		exitOperations:    exitOperations,
		occupancyGauge:    occupancyGauge,
		revenueCounter:    revenueCounter,
		operationDuration: operationDuration,
	}

	ino.occupancyGauge.Add(context.Background(), int64(o.ActiveCount()))

	return ino, nil
}

func (ino *InstrumentedOrchestrator) Enter(ctx context.Context, v Vehicle, preferred *SpotCategory) (*Ticket, bool, error) {
	attrs := []attribute.KeyValue{
		attribute.String("vehicle.type", v.Type.String()),
		attribute.String("vehicle.plate", v.Plate),
	}
	if preferred != nil {
		attrs = append(attrs, attribute.String("spot.preferred_category", preferred.String()))
	}
	ctx, span := ino.telemetry.Tracer().Start(ctx, "parking.enter", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_available_spot")

	ticket, ok, err := ino.Orchestrator.Enter(v, preferred)

	labels := []attribute.KeyValue{
		attribute.String("operation", "enter"),
		attribute.String("vehicle_type", v.Type.String()),
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "rejected"))
		logging.Warn(ctx).Err(err).Str("plate", v.Plate).Str("vehicle_type", v.Type.String()).Msg("entry rejected")
	case !ok:
		span.AddEvent("no_spot_available")
		labels = append(labels, attribute.String("status", "no_spot"))
		logging.Info(ctx).Str("plate", v.Plate).Str("vehicle_type", v.Type.String()).Msg("no spot available")
	default:
		span.SetAttributes(
			attribute.String("ticket.id", ticket.ID),
			attribute.String("spot.floor", ticket.Location.FloorID),
			attribute.String("spot.section", ticket.Location.SectionID),
			attribute.String("spot.id", ticket.Location.SpotID),
		)
		span.AddEvent("spot_assigned")
		labels = append(labels, attribute.String("status", "success"))
		ino.occupancyGauge.Add(ctx, 1)
		logging.Info(ctx).
			Str("ticket", ticket.ID).
			Str("plate", v.Plate).
			Str("spot", ticket.Location.SpotID).
			Msg("vehicle entered")

		ino.persistTicket(ctx, *ticket)
		ino.persistLayout(ctx)
	}

	ino.entryOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ino.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, ok, err
}

func (ino *InstrumentedOrchestrator) Exit(ctx context.Context, ticketID string) (*ExitResult, bool, error) {
	return ino.exit(ctx, ticketID, false)
}

func (ino *InstrumentedOrchestrator) ForceExit(ctx context.Context, ticketID string) (*ExitResult, bool, error) {
	return ino.exit(ctx, ticketID, true)
}

func (ino *InstrumentedOrchestrator) exit(ctx context.Context, ticketID string, override bool) (*ExitResult, bool, error) {
	name := "parking.exit"
	if override {
		name = "parking.force_exit"
	}
	ctx, span := ino.telemetry.Tracer().Start(ctx, name,
		trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	start := time.Now()
	span.AddEvent("releasing_spot")

	var (
		result *ExitResult
		ok     bool
		err    error
	)
	if override {
		result, ok, err = ino.Orchestrator.ForceExit(ticketID)
	} else {
		result, ok, err = ino.Orchestrator.Exit(ticketID)
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "exit"),
		attribute.Bool("override", override),
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", exitFailureStatus(err)))
		event := logging.Warn(ctx)
		if errors.Is(err, ErrSpotNotFound) {
			// layout and ticket disagree; needs an operator
			event = logging.Error(ctx)
		}
		event.Err(err).Str("ticket", ticketID).Msg("exit failed")
	case !ok:
		span.AddEvent("ticket_not_found")
		labels = append(labels, attribute.String("status", "not_found"))
	default:
		charge, _ := result.Charge.Float64()
		span.SetAttributes(
			attribute.String("charge", result.Charge.StringFixed(2)),
			attribute.Int64("duration_minutes", int64(result.Duration/time.Minute)),
		)
		span.AddEvent("spot_released")
		labels = append(labels, attribute.String("status", "success"))
		ino.occupancyGauge.Add(ctx, -1)
		ino.revenueCounter.Add(ctx, charge)
		logging.Info(ctx).
			Str("ticket", ticketID).
			Str("charge", result.Charge.StringFixed(2)).
			Dur("duration", result.Duration).
			Bool("override", override).
			Msg("vehicle exited")

		ino.persistTicket(ctx, result.Ticket)
		ino.persistLayout(ctx)
	}

	ino.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ino.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return result, ok, err
}

func exitFailureStatus(err error) string {
	switch {
	case errors.Is(err, ErrDurationExceeded):
		return "duration_exceeded"
	case errors.Is(err, ErrSpotNotFound):
		return "spot_not_found"
	default:
		return "failed"
	}
}

func (ino *InstrumentedOrchestrator) GetAvailability(ctx context.Context) Availability {
	_, span := ino.telemetry.Tracer().Start(ctx, "parking.availability")
	defer span.End()

	start := time.Now()
	a := ino.Orchestrator.Availability()

	span.SetAttributes(
		attribute.Int("total_capacity", a.TotalCapacity),
		attribute.Int("occupied", a.Occupied),
		attribute.Int("available", a.Available),
	)
	ino.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "availability"),
		attribute.String("status", "success"),
	))
	return a
}

// Reload reads the layout source and swaps the tree in.
func (ino *InstrumentedOrchestrator) Reload(ctx context.Context) ([]Ticket, error) {
	ctx, span := ino.telemetry.Tracer().Start(ctx, "parking.reload")
	defer span.End()

	if ino.source == nil {
		err := errors.New("no layout source configured")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	lot, inst, err := ino.source.LoadLayout(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reload layout: %w", err)
	}

	// the registry survives a reload, so the gauge does not move
	orphaned := ino.Orchestrator.Reload(lot, inst)

	span.SetAttributes(attribute.Int("orphaned_tickets", len(orphaned)))
	for _, t := range orphaned {
		logging.Error(ctx).
			Str("ticket", t.ID).
			Str("floor", t.Location.FloorID).
			Str("section", t.Location.SectionID).
			Str("spot", t.Location.SpotID).
			Msg("active ticket has no spot in reloaded layout")
	}
	logging.Info(ctx).Int("orphaned", len(orphaned)).Msg("layout reloaded")

	return orphaned, nil
}

// RestoreTickets re-registers the store's active tickets.
func (ino *InstrumentedOrchestrator) RestoreTickets(ctx context.Context) (int, error) {
	ctx, span := ino.telemetry.Tracer().Start(ctx, "parking.restore")
	defer span.End()

	if ino.store == nil {
		return 0, nil
	}

	tickets, err := ino.store.ActiveTickets(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("restore tickets: %w", err)
	}

	added, orphaned := ino.Orchestrator.restore(tickets)
	ino.occupancyGauge.Add(ctx, int64(added))

	for _, t := range orphaned {
		logging.Error(ctx).Str("ticket", t.ID).Str("spot", t.Location.SpotID).Msg("restored ticket has no spot in layout")
	}
	span.SetAttributes(attribute.Int("restored_tickets", len(tickets)))
	return len(tickets), nil
}

func (ino *InstrumentedOrchestrator) History(ctx context.Context, limit int) ([]Ticket, error) {
	if ino.store == nil {
		return nil, nil
	}
	return ino.store.History(ctx, limit)
}

func (ino *InstrumentedOrchestrator) MarkPaid(ctx context.Context, ticketID string) (Ticket, error) {
	ctx, span := ino.telemetry.Tracer().Start(ctx, "parking.mark_paid",
		trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if ino.store == nil {
		return Ticket{}, fmt.Errorf("mark ticket %s paid: %w", ticketID, ErrTicketNotFound)
	}
	t, err := ino.store.MarkPaid(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		return Ticket{}, err
	}
	logging.Info(ctx).Str("ticket", ticketID).Msg("ticket marked paid")
	return t, nil
}

func (ino *InstrumentedOrchestrator) persistTicket(ctx context.Context, t Ticket) {
	if ino.store == nil {
		return
	}
	if err := ino.store.SaveTicket(ctx, t); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logging.Error(ctx).Err(err).Str("ticket", t.ID).Msg("failed to persist ticket")
	}
}

func (ino *InstrumentedOrchestrator) persistLayout(ctx context.Context) {
	if ino.source == nil {
		return
	}
	ino.persistMu.Lock()
	defer ino.persistMu.Unlock()

	if err := ino.source.SaveLayout(ctx, ino.Orchestrator.Snapshot()); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logging.Error(ctx).Err(err).Msg("failed to save layout")
	}
}

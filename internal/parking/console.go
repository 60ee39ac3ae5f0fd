package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const consoleHelp = `Commands:
  enter <vehicle_type> <plate> [spot_category]
  exit <ticket_id>
  force_exit <ticket_id>
  status
  availability
  tickets
  ticket <ticket_id>
  history [limit]
  pay <ticket_id>
  reload
  help`

// Console is the line-oriented operator shell.
type Console struct {
	orchestrator *InstrumentedOrchestrator
	telemetry    *TelemetryProvider
	scanner      *bufio.Scanner
	out          io.Writer
	now          func() time.Time
}

func NewConsole(o *InstrumentedOrchestrator, telemetry *TelemetryProvider, in io.Reader, out io.Writer) *Console {
	return &Console{
		orchestrator: o,
		telemetry:    telemetry,
		scanner:      bufio.NewScanner(in),
		out:          out,
		now:          time.Now,
	}
}

// Run processes commands until input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) {
	tracer := c.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "console.run")
	defer span.End()

	span.AddEvent("console_started")

	// the scanner blocks on input, so it runs apart from the command loop and
	// a cancelled ctx returns without waiting for another line
	lines := make(chan string)
	go func() {
		defer close(lines)
		for c.scanner.Scan() {
			select {
			case lines <- c.scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			span.AddEvent("console_interrupted")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}

			cmdCtx, cmdSpan := tracer.Start(ctx, "console.process_command",
				trace.WithAttributes(attribute.String("command.input", input)))
			c.processCommand(cmdCtx, input)
			cmdSpan.End()
		}
	}

	span.AddEvent("console_ended")
}

func (c *Console) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "enter":
		c.handleEnter(ctx, parts)
	case "exit":
		c.handleExit(ctx, parts, false)
	case "force_exit":
		c.handleExit(ctx, parts, true)
	case "status":
		c.handleStatus()
	case "availability":
		c.handleAvailability(ctx)
	case "tickets":
		c.handleTickets()
	case "ticket":
		c.handleTicket(parts)
	case "history":
		c.handleHistory(ctx, parts)
	case "pay":
		c.handlePay(ctx, parts)
	case "reload":
		c.handleReload(ctx)
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		fmt.Fprintf(c.out, "Unknown command: %s\n", command)
	}
}

func (c *Console) handleEnter(ctx context.Context, parts []string) {
	if len(parts) != 3 && len(parts) != 4 {
		fmt.Fprintln(c.out, "Usage: enter <vehicle_type> <plate> [spot_category]")
		return
	}

	vt, err := ParseVehicleType(parts[1])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %s\n", err)
		return
	}

	var preferred *SpotCategory
	if len(parts) == 4 {
		cat, err := ParseSpotCategory(parts[3])
		if err != nil {
			fmt.Fprintf(c.out, "Error: %s\n", err)
			return
		}
		preferred = &cat
	}

	ticket, ok, err := c.orchestrator.Enter(ctx, NewVehicle(vt, parts[2]), preferred)
	switch {
	case errors.Is(err, ErrVehicleNotAllowed):
		fmt.Fprintf(c.out, "Sorry, %s vehicles are not admitted\n", vt)
	case err != nil:
		fmt.Fprintf(c.out, "Error: %s\n", err)
	case !ok:
		fmt.Fprintln(c.out, "Sorry, parking lot is full")
	default:
		fmt.Fprintf(c.out, "Ticket %s: spot %s/%s/%s\n",
			ticket.ID, ticket.Location.FloorID, ticket.Location.SectionID, ticket.Location.SpotID)
	}
}

func (c *Console) handleExit(ctx context.Context, parts []string, override bool) {
	if len(parts) != 2 {
		fmt.Fprintf(c.out, "Usage: %s <ticket_id>\n", parts[0])
		return
	}

	var (
		result *ExitResult
		ok     bool
		err    error
	)
	if override {
		result, ok, err = c.orchestrator.ForceExit(ctx, parts[1])
	} else {
		result, ok, err = c.orchestrator.Exit(ctx, parts[1])
	}

	switch {
	case errors.Is(err, ErrDurationExceeded):
		fmt.Fprintf(c.out, "Ticket %s exceeded the maximum stay; use force_exit to override\n", parts[1])
	case err != nil:
		fmt.Fprintf(c.out, "Error: %s\n", err)
	case !ok:
		fmt.Fprintln(c.out, "Not found")
	default:
		fmt.Fprintf(c.out, "Ticket %s closed after %s, charge %s\n",
			result.Ticket.ID, result.Duration.Round(time.Minute), result.Charge.StringFixed(2))
	}
}

func (c *Console) handleStatus() {
	occupied := c.orchestrator.ActiveTickets()
	if len(occupied) == 0 {
		fmt.Fprintln(c.out, "Parking lot is empty")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.AppendHeader(table.Row{"Ticket", "Plate", "Vehicle", "Floor", "Section", "Spot", "Parked"})
	now := c.now()
	for _, t := range occupied {
		tw.AppendRow(table.Row{
			t.ID, t.Vehicle.Plate, t.Vehicle.Type,
			t.Location.FloorID, t.Location.SectionID, t.Location.SpotID,
			t.Duration(now).Round(time.Minute),
		})
	}
	tw.Render()
}

func (c *Console) handleAvailability(ctx context.Context) {
	a := c.orchestrator.GetAvailability(ctx)

	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.AppendHeader(table.Row{"Category", "Available"})
	for _, cat := range SpotCategories() {
		tw.AppendRow(table.Row{cat, a.AvailableByCategory[cat]})
	}
	tw.AppendFooter(table.Row{"Total", fmt.Sprintf("%d/%d", a.Available, a.TotalCapacity)})
	tw.Render()
}

func (c *Console) handleTickets() {
	tickets := c.orchestrator.ActiveTickets()
	fmt.Fprintf(c.out, "%d active tickets\n", len(tickets))
	for _, t := range tickets {
		fmt.Fprintf(c.out, "%s\t%s\t%s\n", t.ID, t.Vehicle.Plate, t.EntryTime.Format(time.RFC3339))
	}
}

func (c *Console) handleTicket(parts []string) {
	if len(parts) != 2 {
		fmt.Fprintln(c.out, "Usage: ticket <ticket_id>")
		return
	}
	t, ok := c.orchestrator.Ticket(parts[1])
	if !ok {
		fmt.Fprintln(c.out, "Not found")
		return
	}
	fmt.Fprintf(c.out, "%s %s %s at %s/%s/%s since %s\n",
		t.ID, t.Vehicle.Type, t.Vehicle.Plate,
		t.Location.FloorID, t.Location.SectionID, t.Location.SpotID,
		t.EntryTime.Format(time.RFC3339))
}

func (c *Console) handleHistory(ctx context.Context, parts []string) {
	limit := 20
	if len(parts) == 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			fmt.Fprintln(c.out, "Invalid limit")
			return
		}
		limit = n
	}

	tickets, err := c.orchestrator.History(ctx, limit)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %s\n", err)
		return
	}
	if len(tickets) == 0 {
		fmt.Fprintln(c.out, "No completed tickets")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.AppendHeader(table.Row{"Ticket", "Plate", "Spot", "Exit", "Charge", "Paid"})
	for _, t := range tickets {
		exit := ""
		if t.ExitTime != nil {
			exit = t.ExitTime.Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{t.ID, t.Vehicle.Plate, t.Location.SpotID, exit, t.Charge.StringFixed(2), t.Paid})
	}
	tw.Render()
}

func (c *Console) handlePay(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		fmt.Fprintln(c.out, "Usage: pay <ticket_id>")
		return
	}
	t, err := c.orchestrator.MarkPaid(ctx, parts[1])
	if errors.Is(err, ErrTicketNotFound) {
		fmt.Fprintln(c.out, "Not found")
		return
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %s\n", err)
		return
	}
	fmt.Fprintf(c.out, "Ticket %s paid (%s)\n", t.ID, t.Charge.StringFixed(2))
}

func (c *Console) handleReload(ctx context.Context) {
	orphaned, err := c.orchestrator.Reload(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %s\n", err)
		return
	}
	fmt.Fprintln(c.out, "Layout reloaded")
	for _, t := range orphaned {
		fmt.Fprintf(c.out, "Warning: ticket %s no longer has a spot (%s/%s/%s)\n",
			t.ID, t.Location.FloorID, t.Location.SectionID, t.Location.SpotID)
	}
}

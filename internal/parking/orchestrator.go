package parking

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Orchestrator runs the ticket lifecycle over one layout and owns the
// active-ticket registry. Every exported method holds a single lock for its
// whole duration, so find-then-assign and locate-then-free never interleave.
type Orchestrator struct {
	mu          sync.Mutex
	index       *LayoutIndex
	institution Institution
	pricing     Calculator
	active      map[string]*Ticket
	now         func() time.Time
	newID       func(time.Time) string
}

type Option func(*Orchestrator)

func WithCalculator(c Calculator) Option {
	return func(o *Orchestrator) {
		o.pricing = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func WithTicketIDs(newID func(time.Time) string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

func NewOrchestrator(lot *ParkingLot, inst Institution, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		index:       NewLayoutIndex(lot),
		institution: inst,
		pricing:     DurationPricing{},
		active:      make(map[string]*Ticket),
		now:         time.Now,
		newID:       NewTicketID,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.reconcile()
	return o
}

// Enter admits a vehicle. ok is false, with a nil error, when no eligible
// spot exists; a policy rejection is reported as ErrVehicleNotAllowed.
func (o *Orchestrator) Enter(v Vehicle, preferred *SpotCategory) (*Ticket, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !VehicleTypeAllowed(v.Type, o.institution) {
		return nil, false, fmt.Errorf("enter %s %s: %w", v.Type, v.Plate, ErrVehicleNotAllowed)
	}

	placement, found := o.index.FindAvailableSpot(v.Type, preferred)
	if !found {
		return nil, false, nil
	}

	now := o.now()
	ticket := &Ticket{
		ID:        o.newID(now),
		Vehicle:   v,
		EntryTime: now,
		Location:  placement.Location(),
		Charge:    decimal.Zero,
		Status:    TicketParked,
	}

	o.index.Assign(placement.Spot, ticket.ID)
	o.active[ticket.ID] = ticket

	return ticket.clone(), true, nil
}

// Exit closes a session. ok is false, with a nil error, for an unknown ticket.
// On ErrDurationExceeded the exit time stays recorded but the ticket remains
// active and its spot occupied.
func (o *Orchestrator) Exit(ticketID string) (*ExitResult, bool, error) {
	return o.exit(ticketID, false)
}

// ForceExit closes a session without the maximum-duration rule. It is the
// operator path out of ErrDurationExceeded.
func (o *Orchestrator) ForceExit(ticketID string) (*ExitResult, bool, error) {
	return o.exit(ticketID, true)
}

func (o *Orchestrator) exit(ticketID string, override bool) (*ExitResult, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ticket, ok := o.active[ticketID]
	if !ok {
		return nil, false, nil
	}

	exitTime := o.now()
	ticket.ExitTime = &exitTime

	if !override && !DurationValid(ticket.EntryTime, exitTime, o.institution) {
		return nil, true, fmt.Errorf("exit ticket %s after %s: %w",
			ticketID, exitTime.Sub(ticket.EntryTime).Round(time.Second), ErrDurationExceeded)
	}

	placement, found := o.index.Locate(ticket.Location)
	if !found {
		return nil, true, fmt.Errorf("exit ticket %s at %s/%s/%s: %w",
			ticketID, ticket.Location.FloorID, ticket.Location.SectionID, ticket.Location.SpotID, ErrSpotNotFound)
	}

	charge := decimal.Zero
	if !o.institution.FreeParking {
		var err error
		charge, err = o.pricing.Calculate(*ticket, o.institution, placement.Spot.Category)
		if err != nil {
			return nil, true, fmt.Errorf("exit ticket %s: %w", ticketID, err)
		}
	}

	ticket.Charge = charge
	ticket.Status = TicketExited
	o.index.Free(placement.Spot)
	delete(o.active, ticketID)

	return &ExitResult{
		Ticket:     *ticket.clone(),
		Charge:     charge,
		Duration:   exitTime.Sub(ticket.EntryTime),
		Overridden: override,
	}, true, nil
}

// Ticket returns a copy of an active ticket.
func (o *Orchestrator) Ticket(id string) (*Ticket, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.active[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// ActiveTickets returns copies of all active tickets ordered by entry time.
func (o *Orchestrator) ActiveTickets() []*Ticket {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*Ticket, 0, len(o.active))
	for _, t := range o.active {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

// ActiveCount is the number of registered tickets, orphaned ones included.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

func (o *Orchestrator) Availability() Availability {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index.Availability()
}

func (o *Orchestrator) Institution() Institution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.institution
}

// Snapshot deep-copies the current layout for write-back or display.
func (o *Orchestrator) Snapshot() *ParkingLot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index.Lot().Clone()
}

// SpotCategoryOf reports the category of the spot at loc in the current layout.
func (o *Orchestrator) SpotCategoryOf(loc Location) (SpotCategory, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.index.Locate(loc)
	if !ok {
		return "", false
	}
	return p.Spot.Category, true
}

// Reload replaces the layout and institution in one step. Active tickets keep
// their spots when the new tree still contains them, even when the new tree
// disables or reserves the spot; that status comes back when the ticket
// exits. Tickets whose spot has disappeared are returned and will fail with
// ErrSpotNotFound on exit.
func (o *Orchestrator) Reload(lot *ParkingLot, inst Institution) []Ticket {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.index = NewLayoutIndex(lot)
	o.institution = inst
	return o.reconcile()
}

// Restore registers previously persisted active tickets, typically at startup.
// Tickets that are not parked or already registered are ignored.
func (o *Orchestrator) Restore(tickets []Ticket) []Ticket {
	_, orphaned := o.restore(tickets)
	return orphaned
}

// restore also reports how many tickets were registered, counted under the
// same lock as the registration.
func (o *Orchestrator) restore(tickets []Ticket) (int, []Ticket) {
	o.mu.Lock()
	defer o.mu.Unlock()

	added := 0
	for i := range tickets {
		t := tickets[i]
		if t.Status != TicketParked {
			continue
		}
		if _, exists := o.active[t.ID]; exists {
			continue
		}
		o.active[t.ID] = t.clone()
		added++
	}
	return added, o.reconcile()
}

// Reset frees every occupied spot and empties the registry.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range o.index.OccupiedSpots() {
		o.index.Free(p.Spot)
	}
	o.active = make(map[string]*Ticket)
}

// reconcile makes spot occupancy agree with the registry. Must hold mu.
func (o *Orchestrator) reconcile() []Ticket {
	for _, p := range o.index.OccupiedSpots() {
		if _, ok := o.active[p.Spot.TicketID]; !ok {
			o.index.Free(p.Spot)
		}
	}

	var orphaned []Ticket
	for _, t := range o.active {
		p, ok := o.index.Locate(t.Location)
		if !ok {
			orphaned = append(orphaned, *t.clone())
			continue
		}
		if p.Spot.TicketID != t.ID {
			o.index.Assign(p.Spot, t.ID)
		}
	}
	sort.Slice(orphaned, func(i, j int) bool { return orphaned[i].ID < orphaned[j].ID })
	return orphaned
}

package parking

import "context"

// LayoutSource loads and writes back the facility configuration.
type LayoutSource interface {
	LoadLayout(ctx context.Context) (*ParkingLot, Institution, error)
	SaveLayout(ctx context.Context, lot *ParkingLot) error
}

// TicketStore persists tickets across restarts.
type TicketStore interface {
	SaveTicket(ctx context.Context, t Ticket) error
	ActiveTickets(ctx context.Context) ([]Ticket, error)
	History(ctx context.Context, limit int) ([]Ticket, error)
	MarkPaid(ctx context.Context, id string) (Ticket, error)
}

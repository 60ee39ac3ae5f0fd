package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"parking-facility/internal/parking"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id            TEXT PRIMARY KEY,
	vehicle_type  TEXT NOT NULL,
	plate         TEXT NOT NULL,
	entry_time    TEXT NOT NULL,
	exit_time     TEXT,
	floor_id      TEXT NOT NULL,
	section_id    TEXT NOT NULL,
	spot_id       TEXT NOT NULL,
	charge        TEXT NOT NULL DEFAULT '0',
	paid          INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
`

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const ticketColumns = `id, vehicle_type, plate, entry_time, exit_time, floor_id, section_id, spot_id, charge, paid, status`

// Ledger keeps every ticket, active and completed, in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open creates the database file and its directory if missing and applies
// the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Ledger{db: conn}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// SaveTicket inserts or replaces the ticket row.
func (l *Ledger) SaveTicket(ctx context.Context, t parking.Ticket) error {
	var exit sql.NullString
	if t.ExitTime != nil {
		exit = sql.NullString{String: t.ExitTime.UTC().Format(timeLayout), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exit_time = excluded.exit_time,
			floor_id = excluded.floor_id,
			section_id = excluded.section_id,
			spot_id = excluded.spot_id,
			charge = excluded.charge,
			paid = excluded.paid,
			status = excluded.status`,
		t.ID, t.Vehicle.Type.String(), t.Vehicle.Plate,
		t.EntryTime.UTC().Format(timeLayout), exit,
		t.Location.FloorID, t.Location.SectionID, t.Location.SpotID,
		t.Charge.String(), boolToInt(t.Paid), string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}
	return nil
}

func (l *Ledger) ActiveTickets(ctx context.Context) ([]parking.Ticket, error) {
	return l.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status = ? ORDER BY entry_time, id`,
		string(parking.TicketParked))
}

// History returns completed tickets, most recent exit first.
func (l *Ledger) History(ctx context.Context, limit int) ([]parking.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status = ? ORDER BY exit_time DESC, id LIMIT ?`,
		string(parking.TicketExited), limit)
}

func (l *Ledger) Get(ctx context.Context, id string) (parking.Ticket, error) {
	tickets, err := l.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	if err != nil {
		return parking.Ticket{}, err
	}
	if len(tickets) == 0 {
		return parking.Ticket{}, fmt.Errorf("ticket %s: %w", id, parking.ErrTicketNotFound)
	}
	return tickets[0], nil
}

// MarkPaid flags a completed ticket as paid.
func (l *Ledger) MarkPaid(ctx context.Context, id string) (parking.Ticket, error) {
	res, err := l.db.ExecContext(ctx, `UPDATE tickets SET paid = 1 WHERE id = ? AND status = ?`,
		id, string(parking.TicketExited))
	if err != nil {
		return parking.Ticket{}, fmt.Errorf("mark ticket %s paid: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return parking.Ticket{}, err
	}
	if n == 0 {
		return parking.Ticket{}, fmt.Errorf("mark ticket %s paid: %w", id, parking.ErrTicketNotFound)
	}
	return l.Get(ctx, id)
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]parking.Ticket, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parking.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(rows *sql.Rows) (parking.Ticket, error) {
	var (
		t                  parking.Ticket
		vehicleType, entry string
		exit               sql.NullString
		charge, status     string
		paid               int
	)
	if err := rows.Scan(&t.ID, &vehicleType, &t.Vehicle.Plate, &entry, &exit,
		&t.Location.FloorID, &t.Location.SectionID, &t.Location.SpotID,
		&charge, &paid, &status); err != nil {
		return t, err
	}

	vt, err := parking.ParseVehicleType(vehicleType)
	if err != nil {
		return t, fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	t.Vehicle.Type = vt

	if t.EntryTime, err = time.Parse(timeLayout, entry); err != nil {
		return t, fmt.Errorf("ticket %s entry_time: %w", t.ID, err)
	}
	if exit.Valid {
		at, err := time.Parse(timeLayout, exit.String)
		if err != nil {
			return t, fmt.Errorf("ticket %s exit_time: %w", t.ID, err)
		}
		t.ExitTime = &at
	}
	if t.Charge, err = decimal.NewFromString(charge); err != nil {
		return t, fmt.Errorf("ticket %s charge: %w", t.ID, err)
	}
	t.Paid = paid != 0

	switch parking.TicketStatus(status) {
	case parking.TicketParked, parking.TicketExited:
		t.Status = parking.TicketStatus(status)
	default:
		return t, fmt.Errorf("ticket %s: unknown status %q", t.ID, status)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

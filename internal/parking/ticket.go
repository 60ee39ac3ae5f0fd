package parking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketParked TicketStatus = "parked"
	TicketExited TicketStatus = "exited"
)

type Ticket struct {
	ID        string          `json:"id"`
	Vehicle   Vehicle         `json:"vehicle"`
	EntryTime time.Time       `json:"entry_time"`
	ExitTime  *time.Time      `json:"exit_time,omitempty"`
	Location  Location        `json:"location"`
	Charge    decimal.Decimal `json:"charge"`
	Paid      bool            `json:"paid"`
	Status    TicketStatus    `json:"status"`
}

// Duration is the time parked so far, or the full session once exited.
func (t *Ticket) Duration(now time.Time) time.Duration {
	if t.ExitTime != nil {
		return t.ExitTime.Sub(t.EntryTime)
	}
	return now.Sub(t.EntryTime)
}

func (t *Ticket) clone() *Ticket {
	c := *t
	if t.ExitTime != nil {
		exit := *t.ExitTime
		c.ExitTime = &exit
	}
	return &c
}

type ExitResult struct {
	Ticket     Ticket          `json:"ticket"`
	Charge     decimal.Decimal `json:"charge"`
	Duration   time.Duration   `json:"duration"`
	Overridden bool            `json:"overridden,omitempty"`
}

// NewTicketID returns a sortable, unique ticket identity: a UTC timestamp
// followed by a random suffix.
func NewTicketID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("T%s-%s", now.UTC().Format("20060102150405"), suffix)
}

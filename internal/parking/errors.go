package parking

import "errors"

var (
	// ErrVehicleNotAllowed rejects a vehicle type the institution does not admit.
	ErrVehicleNotAllowed = errors.New("vehicle type not allowed")
	// ErrDurationExceeded rejects an exit past the maximum stay. The ticket and
	// its spot are left as they were.
	ErrDurationExceeded = errors.New("maximum parking duration exceeded")
	// ErrSpotNotFound means a ticket's location no longer resolves in the
	// loaded layout.
	ErrSpotNotFound = errors.New("spot not found in layout")
	// ErrInvalidState means a ticket lacks the state an operation needs, such as
	// an exit time at pricing.
	ErrInvalidState = errors.New("invalid ticket state")
	// ErrTicketNotFound is returned by ticket stores. The orchestrator itself
	// reports unknown tickets through its ok result.
	ErrTicketNotFound = errors.New("ticket not found")
)

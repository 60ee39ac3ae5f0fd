package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

type Handler struct {
	orchestrator *parking.InstrumentedOrchestrator
	serviceName  string
	historySize  int
}

func NewHandler(o *parking.InstrumentedOrchestrator, serviceName string, historySize int) *Handler {
	if historySize <= 0 {
		historySize = 20
	}
	return &Handler{
		orchestrator: o,
		serviceName:  serviceName,
		historySize:  historySize,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
	})
}

func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.VehicleType == "" || req.Plate == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Vehicle type and plate are required")
		return
	}

	vt, err := parking.ParseVehicleType(req.VehicleType)
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	var preferred *parking.SpotCategory
	if req.PreferredCategory != "" {
		cat, err := parking.ParseSpotCategory(req.PreferredCategory)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		preferred = &cat
	}

	ticket, ok, err := h.orchestrator.Enter(ctx, parking.NewVehicle(vt, req.Plate), preferred)
	if errors.Is(err, parking.ErrVehicleNotAllowed) {
		WriteError(ctx, w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		WriteError(ctx, w, http.StatusConflict, "No spot available")
		return
	}

	WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Vehicle entered",
		Data:    newTicketResponse(*ticket),
		Meta:    extractMeta(ctx),
	})
}

func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, false)
}

func (h *Handler) ForceExit(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, true)
}

func (h *Handler) exit(w http.ResponseWriter, r *http.Request, override bool) {
	ctx := r.Context()

	var req ExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TicketID == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Ticket id is required")
		return
	}

	var (
		result *parking.ExitResult
		ok     bool
		err    error
	)
	if override {
		result, ok, err = h.orchestrator.ForceExit(ctx, req.TicketID)
	} else {
		result, ok, err = h.orchestrator.Exit(ctx, req.TicketID)
	}

	switch {
	case errors.Is(err, parking.ErrDurationExceeded):
		WriteError(ctx, w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, parking.ErrSpotNotFound):
		logging.Error(ctx).Err(err).Str("ticket", req.TicketID).Msg("ticket location missing from layout")
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	case !ok:
		WriteError(ctx, w, http.StatusNotFound, "Ticket not found")
		return
	}

	WriteSuccess(ctx, w, "Vehicle exited", ExitResponse{
		Ticket:          newTicketResponse(result.Ticket),
		Charge:          result.Charge.StringFixed(2),
		DurationMinutes: int64(result.Duration / time.Minute),
		Overridden:      result.Overridden,
	})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := h.orchestrator.GetAvailability(ctx)
	WriteSuccess(ctx, w, "Availability retrieved successfully", newAvailabilityResponse(a))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active := h.orchestrator.ActiveTickets()
	tickets := make([]TicketResponse, 0, len(active))
	for _, t := range active {
		tickets = append(tickets, newTicketResponse(*t))
	}
	WriteSuccess(ctx, w, "Active tickets retrieved successfully", tickets)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Ticket id is required")
		return
	}

	t, ok := h.orchestrator.Ticket(id)
	if !ok {
		WriteError(ctx, w, http.StatusNotFound, "Ticket not found")
		return
	}

	WriteSuccess(ctx, w, "Ticket found", newTicketResponse(*t))
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	t, err := h.orchestrator.MarkPaid(ctx, id)
	if errors.Is(err, parking.ErrTicketNotFound) {
		WriteError(ctx, w, http.StatusNotFound, "Completed ticket not found")
		return
	}
	if err != nil {
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(ctx, w, "Ticket marked paid", newTicketResponse(t))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := h.historySize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(ctx, w, http.StatusBadRequest, "Limit must be a positive integer")
			return
		}
		limit = n
	}

	tickets, err := h.orchestrator.History(ctx, limit)
	if err != nil {
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(ctx, w, "History retrieved successfully", newTicketResponses(tickets))
}

func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(ctx, w, "Layout retrieved successfully", newLayoutResponse(h.orchestrator.Snapshot()))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orphaned, err := h.orchestrator.Reload(ctx)
	if err != nil {
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(ctx, w, "Layout reloaded", ReloadResponse{Orphaned: newTicketResponses(orphaned)})
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type EnterRequest struct {
	VehicleType       string `json:"vehicle_type"`
	Plate             string `json:"plate"`
	PreferredCategory string `json:"preferred_category,omitempty"`
}

type ExitRequest struct {
	TicketID string `json:"ticket_id"`
}

type TicketResponse struct {
	ID          string           `json:"id"`
	VehicleType string           `json:"vehicle_type"`
	Plate       string           `json:"plate"`
	EntryTime   time.Time        `json:"entry_time"`
	ExitTime    *time.Time       `json:"exit_time,omitempty"`
	Location    parking.Location `json:"location"`
	Charge      string           `json:"charge"`
	Paid        bool             `json:"paid"`
	Status      string           `json:"status"`
}

type ExitResponse struct {
	Ticket          TicketResponse `json:"ticket"`
	Charge          string         `json:"charge"`
	DurationMinutes int64          `json:"duration_minutes"`
	Overridden      bool           `json:"overridden,omitempty"`
}

type AvailabilityResponse struct {
	TotalCapacity       int            `json:"total_capacity"`
	Occupied            int            `json:"occupied"`
	Available           int            `json:"available"`
	AvailableByCategory map[string]int `json:"available_by_category"`
}

type SpotStatus struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Status   string   `json:"status"`
	Enabled  bool     `json:"enabled"`
	Vehicles []string `json:"allowed_vehicles,omitempty"`
	TicketID string   `json:"ticket_id,omitempty"`
}

type SectionStatus struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Enabled bool         `json:"enabled"`
	Spots   []SpotStatus `json:"spots"`
}

type FloorStatus struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Enabled  bool            `json:"enabled"`
	Sections []SectionStatus `json:"sections"`
}

type LayoutResponse struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Floors []FloorStatus `json:"floors"`
}

type ReloadResponse struct {
	Orphaned []TicketResponse `json:"orphaned_tickets"`
}

func newTicketResponse(t parking.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		VehicleType: t.Vehicle.Type.String(),
		Plate:       t.Vehicle.Plate,
		EntryTime:   t.EntryTime,
		ExitTime:    t.ExitTime,
		Location:    t.Location,
		Charge:      t.Charge.StringFixed(2),
		Paid:        t.Paid,
		Status:      string(t.Status),
	}
}

func newTicketResponses(tickets []parking.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newTicketResponse(t))
	}
	return out
}

func newAvailabilityResponse(a parking.Availability) AvailabilityResponse {
	byCategory := make(map[string]int, len(a.AvailableByCategory))
	for c, n := range a.AvailableByCategory {
		byCategory[c.String()] = n
	}
	return AvailabilityResponse{
		TotalCapacity:       a.TotalCapacity,
		Occupied:            a.Occupied,
		Available:           a.Available,
		AvailableByCategory: byCategory,
	}
}

func newLayoutResponse(lot *parking.ParkingLot) LayoutResponse {
	resp := LayoutResponse{ID: lot.ID, Name: lot.Name, Floors: []FloorStatus{}}
	for _, f := range lot.Floors {
		fs := FloorStatus{ID: f.ID, Name: f.Name, Enabled: f.Enabled, Sections: []SectionStatus{}}
		for _, s := range f.Sections {
			ss := SectionStatus{ID: s.ID, Name: s.Name, Enabled: s.Enabled, Spots: []SpotStatus{}}
			for _, sp := range s.Spots {
				vehicles := make([]string, 0, len(sp.AllowedVehicles))
				for _, v := range sp.AllowedVehicles {
					vehicles = append(vehicles, v.String())
				}
				ss.Spots = append(ss.Spots, SpotStatus{
					ID:       sp.ID,
					Name:     sp.Name,
					Category: sp.Category.String(),
					Status:   sp.Status.String(),
					Enabled:  sp.Enabled,
					Vehicles: vehicles,
					TicketID: sp.TicketID,
				})
			}
			fs.Sections = append(fs.Sections, ss)
		}
		resp.Floors = append(resp.Floors, fs)
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}

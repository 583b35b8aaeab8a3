package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/trainer-booking/internal/booking"
)

type RequestBookingRequest struct {
	ClientID        string `json:"client_id"`
	TrainerID       string `json:"trainer_id"`
	Date            string `json:"date"`       // YYYY-MM-DD
	StartTime       string `json:"start_time"` // HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"client_id"`
	TrainerID       uuid.UUID `json:"trainer_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type SlotResponse struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	PendingRequests int    `json:"pending_requests"`
}

type ConfirmResponse struct {
	Booking       BookingResponse   `json:"booking"`
	Cancelled     []BookingResponse `json:"cancelled"`
	CascadeErrors []string          `json:"cascade_errors,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		ClientID:        b.ClientID,
		TrainerID:       b.TrainerID,
		Date:            b.Date.Format("2006-01-02"),
		StartTime:       b.StartMinute.String(),
		EndTime:         b.EndMinute.String(),
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		Notes:           b.Notes,
		CreatedAt:       b.CreatedAt,
	}
}

func toSlotResponse(s booking.CandidateSlot) SlotResponse {
	return SlotResponse{
		Date:            s.Date.Format("2006-01-02"),
		StartTime:       s.StartMinute.String(),
		EndTime:         s.EndMinute.String(),
		PendingRequests: s.PendingRequests,
	}
}

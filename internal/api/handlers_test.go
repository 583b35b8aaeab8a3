package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/trainer-booking/internal/booking"
	"github.com/fitgrid/trainer-booking/internal/notify"
)

// buildTestRouter wires the booking routes over in-memory stores with one
// trainer working Mondays 09:00-12:00.
func buildTestRouter(t *testing.T) (http.Handler, *booking.MemoryStore, booking.Trainer, booking.Client) {
	t.Helper()

	store := booking.NewMemoryStore()
	trainer := booking.Trainer{ID: uuid.New(), Name: "Sam Ortiz"}
	client := booking.Client{ID: uuid.New(), Name: "Alex Reed"}
	store.AddTrainer(trainer)
	store.AddClient(client)

	wd := time.Monday
	store.AddWindow(booking.AvailabilityWindow{
		ID:          uuid.New(),
		TrainerID:   trainer.ID,
		Weekday:     &wd,
		StartMinute: 9 * 60,
		EndMinute:   12 * 60,
	})

	svc := booking.NewService(store, store, booking.NewMemoryLocker(), notify.NewRecorder(), 15)

	router := NewRouter(RouterConfig{
		Service: svc,
		Env:     "test",
		Version: "test",
	})
	return router, store, trainer, client
}

// 2025-06-02 is a Monday.
const testDate = "2025-06-02"

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListSlotsEndpoint(t *testing.T) {
	router, _, trainer, _ := buildTestRouter(t)

	resp := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/trainers/%s/slots?date=%s&duration=60", trainer.ID, testDate), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var slots []SlotResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if slots[0].StartTime != "09:00" || slots[0].EndTime != "10:00" {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}

	// Bad date is rejected before touching the service.
	resp = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/trainers/%s/slots?date=junk&duration=60", trainer.ID), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", resp.Code)
	}
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	router, _, trainer, client := buildTestRouter(t)

	// Request a slot.
	resp := doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        client.ID.String(),
		TrainerID:       trainer.ID.String(),
		Date:            testDate,
		StartTime:       "09:00",
		DurationMinutes: 60,
		Notes:           "first session",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created BookingResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "pending" {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	// A second client requesting the same range also succeeds.
	resp = doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        client.ID.String(),
		TrainerID:       trainer.ID.String(),
		Date:            testDate,
		StartTime:       "09:00",
		DurationMinutes: 60,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("same-slot request should succeed, got %d: %s", resp.Code, resp.Body.String())
	}
	var second BookingResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Confirm the first; the second is displaced.
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/confirm", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var confirm ConfirmResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &confirm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if confirm.Booking.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", confirm.Booking.Status)
	}
	if len(confirm.Cancelled) != 1 || confirm.Cancelled[0].ID != second.ID {
		t.Fatalf("expected the overlapping request cancelled, got %+v", confirm.Cancelled)
	}

	// Confirming the displaced booking conflicts.
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/confirm", second.ID), nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.Code, resp.Body.String())
	}

	// Read it back.
	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/bookings/%s", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	// Complete the confirmed session.
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/complete", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRequestBookingValidation(t *testing.T) {
	router, _, trainer, client := buildTestRouter(t)

	// Off-grid start time → 422 from the engine.
	resp := doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        client.ID.String(),
		TrainerID:       trainer.ID.String(),
		Date:            testDate,
		StartTime:       "09:10",
		DurationMinutes: 60,
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}

	// Malformed UUID → 400 from the handler.
	resp = doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        "not-a-uuid",
		TrainerID:       trainer.ID.String(),
		Date:            testDate,
		StartTime:       "09:00",
		DurationMinutes: 60,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	// Unknown trainer → 404.
	resp = doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        client.ID.String(),
		TrainerID:       uuid.NewString(),
		Date:            testDate,
		StartTime:       "09:00",
		DurationMinutes: 60,
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRejectEndpoint(t *testing.T) {
	router, _, trainer, client := buildTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/bookings", RequestBookingRequest{
		ClientID:        client.ID.String(),
		TrainerID:       trainer.ID.String(),
		Date:            testDate,
		StartTime:       "10:00",
		DurationMinutes: 60,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("request: %d", resp.Code)
	}
	var created BookingResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/reject", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Rejecting again is an invalid transition.
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/reject", created.ID), nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

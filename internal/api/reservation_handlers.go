package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
	"fleetrental/internal/service"
)

type ReservationHandler struct {
	Bookings    *repository.BookingRepository
	Allocations *service.AllocationService
}

func NewReservationHandler(bookings *repository.BookingRepository, allocations *service.AllocationService) *ReservationHandler {
	return &ReservationHandler{Bookings: bookings, Allocations: allocations}
}

func (h *ReservationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.Bookings.ListReservations(r.Context())
	if err != nil {
		writeError(w, apperrors.RemoteWrite("could not load reservations", err))
		return
	}

	// Optional status narrowing for the booking desk views.
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := reservations[:0]
		for _, res := range reservations {
			if res.Status == status {
				filtered = append(filtered, res)
			}
		}
		reservations = filtered
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Bookings.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, apperrors.NotFound("reservation not found"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ConfirmReservation allocates a vehicle to a pending unallocated
// reservation.
func (h *ReservationHandler) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ConfirmReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	if req.VehicleID == "" {
		writeError(w, apperrors.Validation("vehicle_id is required"))
		return
	}
	res, err := h.Allocations.ConfirmReservation(r.Context(), id, req.VehicleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Allocations.CancelReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

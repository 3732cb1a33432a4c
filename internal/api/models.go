package api

import (
	"encoding/json"
	"log"
	"net/http"

	apperrors "fleetrental/internal/errors"
)

// Quote conversion
type ConvertQuoteRequest struct {
	Mode      string `json:"mode"` // "unallocated" or "direct"
	VehicleID string `json:"vehicle_id,omitempty"`
}

// Unallocated reservation confirmation
type ConfirmReservationRequest struct {
	VehicleID string `json:"vehicle_id"`
}

// Check-in
type CheckInRequest struct {
	Mileage       int    `json:"mileage"`
	FuelLevel     int    `json:"fuel_level"`
	DamageFlagged bool   `json:"damage_flagged"`
	Notes         string `json:"notes,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("API: encoding response: %v", err)
	}
}

// writeError maps service errors onto HTTP statuses via the error
// taxonomy; anything unrecognized is a 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)
	message := err.Error()
	if status >= 500 {
		log.Printf("API: internal error: %v", err)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

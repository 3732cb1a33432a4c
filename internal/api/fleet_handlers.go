package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
	"fleetrental/internal/service"
)

type FleetHandler struct {
	Fleet    *repository.FleetRepository
	Vehicles *service.FleetService
}

func NewFleetHandler(fleet *repository.FleetRepository, vehicles *service.FleetService) *FleetHandler {
	return &FleetHandler{Fleet: fleet, Vehicles: vehicles}
}

func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Fleet.ListVehicles(r.Context())
	if err != nil {
		writeError(w, apperrors.RemoteWrite("could not load vehicles", err))
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *FleetHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.Fleet.GetVehicle(r.Context(), id)
	if err != nil {
		writeError(w, apperrors.NotFound("vehicle not found"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// VehicleTracking returns a vehicle with its distance from home base, for
// the GPS map view.
func (h *FleetHandler) VehicleTracking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.Fleet.GetVehicle(r.Context(), id)
	if err != nil {
		writeError(w, apperrors.NotFound("vehicle not found"))
		return
	}
	distance, hasHome, err := h.Vehicles.DistanceFromHomeKm(r.Context(), v)
	if err != nil {
		writeError(w, apperrors.RemoteWrite("could not compute distance from home", err))
		return
	}
	resp := map[string]any{"vehicle": v}
	if hasHome {
		resp["distance_from_home_km"] = distance
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FleetHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	report, err := h.Vehicles.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *FleetHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["id"]
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	wf, err := h.Vehicles.CheckIn(r.Context(), carID, req.Mileage, req.FuelLevel, req.DamageFlagged, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (h *FleetHandler) AdvanceWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wf, err := h.Vehicles.AdvanceWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *FleetHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Fleet.ActiveLocations(r.Context())
	if err != nil {
		writeError(w, apperrors.RemoteWrite("could not load locations", err))
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

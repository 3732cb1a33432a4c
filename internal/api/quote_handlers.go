package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"fleetrental/internal/entities"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/service"
)

type QuoteHandler struct {
	Quotes      *service.QuoteService
	Allocations *service.AllocationService
}

func NewQuoteHandler(quotes *service.QuoteService, allocations *service.AllocationService) *QuoteHandler {
	return &QuoteHandler{Quotes: quotes, Allocations: allocations}
}

func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.Quotes.ListQuotes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var q entities.Quote
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	created, err := h.Quotes.CreateQuote(r.Context(), &q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *QuoteHandler) SendQuote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Quotes.SendQuote(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Quote sent"})
}

// ConvertQuote runs the quote -> reservation transition, either as an
// unallocated reservation or a direct vehicle allocation.
func (h *QuoteHandler) ConvertQuote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ConvertQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	var (
		res *entities.Reservation
		err error
	)
	switch req.Mode {
	case "unallocated":
		res, err = h.Allocations.ConvertUnallocated(r.Context(), id)
	case "direct":
		if req.VehicleID == "" {
			writeError(w, apperrors.Validation("vehicle_id is required for direct allocation"))
			return
		}
		res, err = h.Allocations.ConvertDirect(r.Context(), id, req.VehicleID)
	default:
		writeError(w, apperrors.Validation("mode must be \"unallocated\" or \"direct\""))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CandidateVehicles lists vehicles eligible for direct allocation against
// a category, so the UI can disable the direct path when empty.
func (h *QuoteHandler) CandidateVehicles(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, apperrors.Validation("category is required"))
		return
	}
	vehicles, err := h.Allocations.CandidateVehicles(r.Context(), category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

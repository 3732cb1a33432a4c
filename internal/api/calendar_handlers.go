package api

import (
	"net/http"
	"strconv"
	"time"

	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/service"
)

type CalendarHandler struct {
	Calendar *service.CalendarService
}

func NewCalendarHandler(calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{Calendar: calendar}
}

// WeekView renders the vehicles-by-days grid. "start" accepts any day;
// the grid normalizes to that week's Monday. "category" optionally
// narrows the vehicle set.
func (h *CalendarHandler) WeekView(w http.ResponseWriter, r *http.Request) {
	start := time.Now().UTC()
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, apperrors.Validation("start must be YYYY-MM-DD"))
			return
		}
		start = parsed
	}
	grid, err := h.Calendar.WeekView(r.Context(), start, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// MonthView renders the per-day busy/available summary grid.
func (h *CalendarHandler) MonthView(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.Validation("year must be a number"))
			return
		}
		year = n
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 12 {
			writeError(w, apperrors.Validation("month must be 1-12"))
			return
		}
		month = time.Month(n)
	}
	grid, err := h.Calendar.MonthView(r.Context(), year, month, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

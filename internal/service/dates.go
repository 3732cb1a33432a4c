package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fleetrental/internal/entities"
	apperrors "fleetrental/internal/errors"
)

// Default times of day applied when a quote carries a date with no time.
const (
	DefaultPickupTime  = "09:00:00"
	DefaultDropoffTime = "17:00:00"
)

// ParseQuoteDateTime turns the quote's raw date and time strings into a
// UTC instant. The date splits on "-" or "/" and must have exactly three
// numeric parts; out-of-range components are rejected rather than
// normalized. An empty time string falls back to defaultTime.
func ParseQuoteDateTime(dateStr, timeStr, defaultTime string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, apperrors.Validation("date is required")
	}

	parts := strings.FieldsFunc(dateStr, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return time.Time{}, apperrors.Validation(fmt.Sprintf("invalid date format %q: expected year-month-day", dateStr))
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, apperrors.Validation(fmt.Sprintf("invalid date format %q: non-numeric component %q", dateStr, p))
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]

	if timeStr == "" {
		timeStr = defaultTime
	}
	hour, minute, second, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes out-of-range components ("2024/13/40" becomes a
	// date in 2025); a round-trip mismatch means the input was invalid.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, apperrors.Validation(fmt.Sprintf("invalid date %q: no such calendar day", dateStr))
	}
	return t, nil
}

func parseClock(timeStr string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, apperrors.Validation(fmt.Sprintf("invalid time format %q", timeStr))
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, apperrors.Validation(fmt.Sprintf("invalid time format %q", timeStr))
		}
		vals[i] = n
	}
	if vals[0] < 0 || vals[0] > 23 || vals[1] < 0 || vals[1] > 59 || vals[2] < 0 || vals[2] > 59 {
		return 0, 0, 0, apperrors.Validation(fmt.Sprintf("invalid time %q", timeStr))
	}
	return vals[0], vals[1], vals[2], nil
}

// QuoteWindow parses a quote's pickup and dropoff into UTC instants,
// applying the pickup/dropoff defaults, and checks ordering.
func QuoteWindow(q *entities.Quote) (pickup, dropoff time.Time, err error) {
	if q.PickupDate == "" || q.DropoffDate == "" {
		return time.Time{}, time.Time{}, apperrors.Validation("quote needs both pickup and dropoff dates")
	}
	pickup, err = ParseQuoteDateTime(q.PickupDate, q.PickupTime, DefaultPickupTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	dropoff, err = ParseQuoteDateTime(q.DropoffDate, q.DropoffTime, DefaultDropoffTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !dropoff.After(pickup) {
		return time.Time{}, time.Time{}, apperrors.Validation("dropoff must be after pickup")
	}
	return pickup, dropoff, nil
}

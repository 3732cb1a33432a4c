package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetrental/internal/entities"
	apperrors "fleetrental/internal/errors"
)

func TestParseQuoteDateTimeDefaults(t *testing.T) {
	got, err := ParseQuoteDateTime("2024-3-1", "", DefaultPickupTime)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC), got)

	got, err = ParseQuoteDateTime("2024/03/01", "", DefaultDropoffTime)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 1, 17, 0, 0, 0, time.UTC), got)

	got, err = ParseQuoteDateTime("2024-03-01", "14:30", DefaultPickupTime)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 1, 14, 30, 0, 0, time.UTC), got)
}

func TestParseQuoteDateTimeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		dateStr string
		timeStr string
	}{
		{"empty date", "", ""},
		{"two parts", "2024-03", ""},
		{"non-numeric", "2024-Mar-01", ""},
		{"no such day", "2024/13/40", ""},
		{"february 30th", "2024-02-30", ""},
		{"bad clock", "2024-03-01", "25:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuoteDateTime(tc.dateStr, tc.timeStr, DefaultPickupTime)
			require.Error(t, err)
			require.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestQuoteWindow(t *testing.T) {
	q := &entities.Quote{PickupDate: "2024-03-01", DropoffDate: "2024-03-05"}
	pickup, dropoff, err := QuoteWindow(q)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC), pickup)
	require.Equal(t, time.Date(2024, time.March, 5, 17, 0, 0, 0, time.UTC), dropoff)

	// Same day works because of the 09:00/17:00 defaults.
	q = &entities.Quote{PickupDate: "2024-03-01", DropoffDate: "2024-03-01"}
	_, _, err = QuoteWindow(q)
	require.NoError(t, err)

	// Reversed window is rejected.
	q = &entities.Quote{PickupDate: "2024-03-05", DropoffDate: "2024-03-01"}
	_, _, err = QuoteWindow(q)
	require.True(t, apperrors.IsValidation(err))

	q = &entities.Quote{PickupDate: "2024-03-01"}
	_, _, err = QuoteWindow(q)
	require.True(t, apperrors.IsValidation(err))
}

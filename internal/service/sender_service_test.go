package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetrental/internal/entities"
)

func TestSenderServiceRendersEmbeddedEmailTemplate(t *testing.T) {
	// The template is compiled into the binary, so rendering works no
	// matter what directory the process starts from.
	s := NewSenderService()
	require.NotNil(t, s.emailTmpl)

	var buf bytes.Buffer
	err := s.emailTmpl.Execute(&buf, entities.BookingEmailData{
		CustomerName:    "Jo Renter",
		ReservationCode: "res-123",
		VehicleLabel:    "Toyota Hilux (UTE001)",
		PickupFormatted: "10 Apr 2026 09:00 AEST",
		ReturnFormatted: "14 Apr 2026 17:00 AEST",
		CurrentYear:     2026,
	})
	require.NoError(t, err)

	html := buf.String()
	require.True(t, strings.Contains(html, "Jo Renter"))
	require.True(t, strings.Contains(html, "res-123"))
	require.True(t, strings.Contains(html, "Toyota Hilux (UTE001)"))
}

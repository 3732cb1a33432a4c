package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	"fleetrental/internal/repository"
	"fleetrental/internal/service"
)

type quoteTestEnv struct {
	router   *mux.Router
	bookings *repository.BookingRepository
	fleet    *repository.FleetRepository
}

func newQuoteTestEnv() *quoteTestEnv {
	store := entityapi.NewMemStore()
	bookings := repository.NewBookingRepository(store)
	fleet := repository.NewFleetRepository(store)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(store))
	handler := NewQuoteHandler(
		service.NewQuoteService(bookings),
		service.NewAllocationService(bookings, fleet, notifications),
	)

	r := mux.NewRouter()
	r.HandleFunc("/api/quotes", handler.ListQuotes).Methods("GET")
	r.HandleFunc("/api/quotes", handler.CreateQuote).Methods("POST")
	r.HandleFunc("/api/quotes/{id}/send", handler.SendQuote).Methods("POST")
	r.HandleFunc("/api/quotes/{id}/convert", handler.ConvertQuote).Methods("POST")
	r.HandleFunc("/api/quotes/{id}/candidates", handler.CandidateVehicles).Methods("GET")
	return &quoteTestEnv{router: r, bookings: bookings, fleet: fleet}
}

func (e *quoteTestEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndSendQuoteEndpoints(t *testing.T) {
	env := newQuoteTestEnv()

	rec := env.do(t, "POST", "/api/quotes", `{
		"customer_name": "Jo Renter",
		"customer_email": "jo@example.com",
		"vehicle_category": "Ute",
		"pickup_date": "2026-04-10",
		"dropoff_date": "2026-04-14",
		"total": 950
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var q entities.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.Equal(t, entities.QuoteDraft, q.Status)

	rec = env.do(t, "POST", "/api/quotes/"+q.ID+"/send", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []entities.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, entities.QuoteSent, list[0].Status)
}

func TestCreateQuoteEndpointRejectsBadInput(t *testing.T) {
	env := newQuoteTestEnv()

	rec := env.do(t, "POST", "/api/quotes", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/quotes", `{"customer_name": "Jo"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertQuoteEndpoint(t *testing.T) {
	env := newQuoteTestEnv()
	ctx := context.Background()

	q, err := env.bookings.CreateQuote(ctx, &entities.Quote{
		QuoteNumber:     "Q-TEST0001",
		CustomerName:    "Jo Renter",
		CustomerEmail:   "jo@example.com",
		VehicleCategory: "Ute",
		PickupDate:      "2026-04-10",
		DropoffDate:     "2026-04-14",
		Status:          entities.QuoteSent,
		ValidUntil:      time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	v, err := env.fleet.CreateVehicle(ctx, &entities.Vehicle{
		Rego: "UTE001", Category: "Ute", Status: entities.VehicleAvailable,
	})
	require.NoError(t, err)

	rec := env.do(t, "POST", "/api/quotes/"+q.ID+"/convert", `{"mode": "sideways"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/quotes/"+q.ID+"/convert", `{"mode": "direct"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/quotes/"+q.ID+"/convert", `{"mode": "direct", "vehicle_id": "`+v.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res entities.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, entities.ReservationConfirmed, res.Status)

	// The quote is no longer convertible.
	rec = env.do(t, "POST", "/api/quotes/"+q.ID+"/convert", `{"mode": "unallocated"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCandidateVehiclesEndpoint(t *testing.T) {
	env := newQuoteTestEnv()
	ctx := context.Background()

	_, err := env.fleet.CreateVehicle(ctx, &entities.Vehicle{Rego: "UTE001", Category: "Ute", Status: entities.VehicleAvailable})
	require.NoError(t, err)
	_, err = env.fleet.CreateVehicle(ctx, &entities.Vehicle{Rego: "VAN001", Category: "Van", Status: entities.VehicleAvailable})
	require.NoError(t, err)

	rec := env.do(t, "GET", "/api/quotes/any/candidates", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/quotes/any/candidates?category=Ute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var vehicles []entities.Vehicle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vehicles))
	require.Len(t, vehicles, 1)
	require.Equal(t, "UTE001", vehicles[0].Rego)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// How long a sent quote stays valid when no explicit window is given.
const defaultQuoteValidity = 14 * 24 * time.Hour

// QuoteService creates quotes and reports their effective status.
type QuoteService struct {
	Bookings *repository.BookingRepository
}

func NewQuoteService(bookings *repository.BookingRepository) *QuoteService {
	return &QuoteService{Bookings: bookings}
}

// EffectiveStatus derives the status a quote should display: a sent quote
// past its validity shows expired even though the stored status field
// still says sent.
func EffectiveStatus(q *entities.Quote, now time.Time) string {
	if q.Status == entities.QuoteSent && !now.Before(q.ValidUntil) {
		return entities.QuoteExpired
	}
	return q.Status
}

// CreateQuote validates and stores a draft quote, assigning its number.
// Dates are parse-checked here so a quote that can never convert is
// rejected at capture time.
func (s *QuoteService) CreateQuote(ctx context.Context, q *entities.Quote) (*entities.Quote, error) {
	if q.CustomerName == "" {
		return nil, apperrors.Validation("customer name is required")
	}
	if q.CustomerEmail == "" {
		return nil, apperrors.Validation("customer email is required")
	}
	if q.VehicleCategory == "" {
		return nil, apperrors.Validation("vehicle category is required")
	}
	if _, _, err := QuoteWindow(q); err != nil {
		return nil, err
	}

	q.QuoteNumber = fmt.Sprintf("Q-%08X", time.Now().UnixNano()%0xFFFFFFFF)
	q.Status = entities.QuoteDraft
	return s.Bookings.CreateQuote(ctx, q)
}

// SendQuote marks a draft quote sent and opens its validity window.
func (s *QuoteService) SendQuote(ctx context.Context, id string) error {
	q, err := s.Bookings.GetQuote(ctx, id)
	if errors.Is(err, entityapi.ErrNotFound) {
		return apperrors.NotFound("quote not found")
	}
	if err != nil {
		return apperrors.RemoteWrite("could not load quote", err)
	}
	if q.Status != entities.QuoteDraft {
		return apperrors.Conflict(fmt.Sprintf("quote is %s, only drafts can be sent", q.Status))
	}
	validUntil := q.ValidUntil
	if validUntil.IsZero() {
		validUntil = time.Now().UTC().Add(defaultQuoteValidity)
	}
	return s.Bookings.UpdateQuote(ctx, id, entityapi.Document{
		"status":      entities.QuoteSent,
		"valid_until": validUntil.Format(time.RFC3339),
	})
}

// ListQuotes returns quotes with their effective status applied.
func (s *QuoteService) ListQuotes(ctx context.Context) ([]entities.Quote, error) {
	quotes, err := s.Bookings.ListQuotes(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load quotes", err)
	}
	now := time.Now().UTC()
	for i := range quotes {
		quotes[i].Status = EffectiveStatus(&quotes[i], now)
	}
	return quotes, nil
}

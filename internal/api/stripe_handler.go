package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	"fleetrental/internal/repository"
)

// StripeWebhookHandler records deposit payment outcomes: a completed
// checkout session marks the reservation's quote invoiced.
type StripeWebhookHandler struct {
	StripeSecret string
	Bookings     *repository.BookingRepository
}

func NewStripeWebhookHandler(stripeSecret string, bookings *repository.BookingRepository) *StripeWebhookHandler {
	return &StripeWebhookHandler{StripeSecret: stripeSecret, Bookings: bookings}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Stripe webhook: reading body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.StripeSecret)
	if err != nil {
		log.Printf("Stripe webhook: signature verification failed: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("Stripe webhook: parsing checkout.session: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// ClientReferenceID carries the reservation id set at session
		// creation time.
		if sess.ClientReferenceID == "" {
			break
		}
		res, err := h.Bookings.GetReservation(r.Context(), sess.ClientReferenceID)
		if err != nil {
			log.Printf("Stripe webhook: reservation %s not found: %v", sess.ClientReferenceID, err)
			break
		}
		if res.QuoteID == "" {
			break
		}
		err = h.Bookings.UpdateQuote(r.Context(), res.QuoteID,
			entityapi.Document{"status": entities.QuoteInvoiced})
		if err != nil {
			log.Printf("Stripe webhook: could not invoice quote %s: %v", res.QuoteID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		log.Printf("Stripe webhook: deposit received, quote %s invoiced", res.QuoteID)
	default:
		log.Printf("Stripe webhook: ignoring event type %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

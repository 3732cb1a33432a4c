package service

import (
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/refund"

	"fleetrental/internal/entities"
)

// Deposit charged when a reservation is confirmed, as a fraction of the
// quoted total.
const depositRate = 0.3

// PaymentService creates deposit checkout sessions and refunds through
// Stripe. The API key is set globally in main.
type PaymentService struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

func NewPaymentService() *PaymentService {
	currency := os.Getenv("STRIPE_CURRENCY")
	if currency == "" {
		currency = "aud"
	}
	return &PaymentService{
		Currency:   currency,
		SuccessURL: os.Getenv("STRIPE_SUCCESS_URL"),
		CancelURL:  os.Getenv("STRIPE_CANCEL_URL"),
	}
}

// CreateDepositSession opens a Stripe Checkout session for the booking
// deposit and returns its id and redirect URL.
func (s *PaymentService) CreateDepositSession(res *entities.Reservation, vehicleLabel string) (sessionID, url string, err error) {
	amount := int64(res.TotalPrice * depositRate * 100)
	if amount <= 0 {
		return "", "", fmt.Errorf("reservation %s has no payable total", res.ID)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Rental deposit - %s", vehicleLabel)),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.SuccessURL),
		CancelURL:         stripe.String(s.CancelURL),
		CustomerEmail:     stripe.String(res.CustomerEmail),
		ClientReferenceID: stripe.String(res.ID),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// RefundBySessionID refunds the payment behind a checkout session, used
// when a confirmed reservation is cancelled.
func (s *PaymentService) RefundBySessionID(sessionID string) error {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return fmt.Errorf("loading checkout session %s: %w", sessionID, err)
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return fmt.Errorf("no payment intent on session %s", sessionID)
	}
	_, err = refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	})
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// AllocationService drives the quote -> reservation -> vehicle allocation
// progression. Sender and Payments are optional; when nil the confirmation
// email/SMS and deposit session are skipped.
type AllocationService struct {
	Bookings      *repository.BookingRepository
	Fleet         *repository.FleetRepository
	Notifications *NotificationService
	Sender        *SenderService
	Payments      *PaymentService
}

func NewAllocationService(bookings *repository.BookingRepository, fleet *repository.FleetRepository,
	notifications *NotificationService) *AllocationService {
	return &AllocationService{Bookings: bookings, Fleet: fleet, Notifications: notifications}
}

// IsQuoteConvertible is the one predicate deciding whether a quote may
// convert: status sent, and still inside its validity window. Every call
// site goes through here so stored status and derived expiry cannot
// disagree between code paths.
func IsQuoteConvertible(q *entities.Quote, now time.Time) bool {
	return q.Status == entities.QuoteSent && now.Before(q.ValidUntil)
}

func (s *AllocationService) loadConvertibleQuote(ctx context.Context, quoteID string) (*entities.Quote, error) {
	q, err := s.Bookings.GetQuote(ctx, quoteID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("quote not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load quote", err)
	}
	if !IsQuoteConvertible(q, time.Now().UTC()) {
		return nil, apperrors.Conflict(fmt.Sprintf("quote %s is not convertible (status %s)", q.QuoteNumber, q.Status))
	}
	return q, nil
}

// CandidateVehicles lists vehicles eligible for direct allocation against
// the quote's category.
func (s *AllocationService) CandidateVehicles(ctx context.Context, category string) ([]entities.Vehicle, error) {
	vehicles, err := s.Fleet.AvailableVehiclesByCategory(ctx, category)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load candidate vehicles", err)
	}
	return vehicles, nil
}

// ConvertUnallocated converts a sent, non-expired quote into a pending
// reservation with no vehicle bound. The booking desk allocates later.
func (s *AllocationService) ConvertUnallocated(ctx context.Context, quoteID string) (*entities.Reservation, error) {
	q, err := s.loadConvertibleQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	pickup, dropoff, err := QuoteWindow(q)
	if err != nil {
		return nil, err
	}

	confirmBy := pickup.Add(-24 * time.Hour)
	res := &entities.Reservation{
		QuoteID:                q.ID,
		CustomerName:           q.CustomerName,
		CustomerEmail:          q.CustomerEmail,
		CustomerPhone:          q.CustomerPhone,
		VehicleCategory:        q.VehicleCategory,
		PickupDate:             pickup,
		DropoffDate:            dropoff,
		Status:                 entities.ReservationPending,
		TotalPrice:             q.Total,
		ConfirmationRequiredBy: &confirmBy,
	}
	created, err := s.commitConversion(ctx, q, res)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, &entities.Notification{
		Type:              entities.NotificationBooking,
		Title:             "Reservation needs a vehicle",
		Message:           fmt.Sprintf("Quote %s converted for %s; allocate a %s before %s.", q.QuoteNumber, q.CustomerName, q.VehicleCategory, confirmBy.Format("02 Jan 15:04")),
		Priority:          entities.PriorityHigh,
		RelatedEntityID:   created.ID,
		RelatedEntityType: entityapi.EntityReservation,
		ActionRequired:    true,
	})
	return created, nil
}

// ConvertDirect converts a sent, non-expired quote into a confirmed
// reservation bound to vehicleID. The vehicle must be an active, available
// vehicle of the quote's category, and must not already be booked over the
// quote window.
func (s *AllocationService) ConvertDirect(ctx context.Context, quoteID, vehicleID string) (*entities.Reservation, error) {
	q, err := s.loadConvertibleQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	pickup, dropoff, err := QuoteWindow(q)
	if err != nil {
		return nil, err
	}

	v, err := s.eligibleVehicle(ctx, vehicleID, q.VehicleCategory)
	if err != nil {
		return nil, err
	}
	if err := s.claimVehicle(ctx, v, pickup, dropoff); err != nil {
		return nil, err
	}

	res := &entities.Reservation{
		QuoteID:           q.ID,
		CustomerName:      q.CustomerName,
		CustomerEmail:     q.CustomerEmail,
		CustomerPhone:     q.CustomerPhone,
		VehicleCategory:   q.VehicleCategory,
		PickupDate:        pickup,
		DropoffDate:       dropoff,
		AssignedVehicleID: &v.ID,
		Status:            entities.ReservationConfirmed,
		TotalPrice:        q.Total,
	}
	created, err := s.commitConversion(ctx, q, res)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, &entities.Notification{
		Type:              entities.NotificationBooking,
		Title:             "Reservation confirmed",
		Message:           fmt.Sprintf("Quote %s converted; %s allocated to %s.", q.QuoteNumber, v.Label(), q.CustomerName),
		Priority:          entities.PriorityNormal,
		RelatedEntityID:   created.ID,
		RelatedEntityType: entityapi.EntityReservation,
		ActionRequired:    false,
	})
	s.afterConfirmation(ctx, created, v)
	return created, nil
}

// commitConversion runs the two-step write as an explicit saga:
// reservation create, then quote -> accepted. A failed quote update
// compensates by deleting the reservation; a failed compensation surfaces
// as a partial failure naming the committed step.
func (s *AllocationService) commitConversion(ctx context.Context, q *entities.Quote, res *entities.Reservation) (*entities.Reservation, error) {
	created, err := s.Bookings.CreateReservation(ctx, res)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not create reservation", err)
	}

	err = s.Bookings.UpdateQuote(ctx, q.ID, entityapi.Document{"status": entities.QuoteAccepted})
	if err != nil {
		log.Printf("Allocation: quote %s update failed after reservation %s create, compensating: %v", q.ID, created.ID, err)
		if delErr := s.Bookings.DeleteReservation(ctx, created.ID); delErr != nil {
			return nil, apperrors.Partial(
				fmt.Sprintf("reservation %s was created but the quote update and its compensation both failed", created.ID),
				errors.Join(err, delErr))
		}
		return nil, apperrors.RemoteWrite("could not accept quote; reservation rolled back", err)
	}
	return created, nil
}

// ConfirmReservation binds a vehicle to a pending unallocated reservation.
// The status guard on the reservation write keeps two staff members from
// both confirming it.
func (s *AllocationService) ConfirmReservation(ctx context.Context, reservationID, vehicleID string) (*entities.Reservation, error) {
	res, err := s.Bookings.GetReservation(ctx, reservationID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("reservation not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load reservation", err)
	}
	if res.Status != entities.ReservationPending {
		return nil, apperrors.Conflict(fmt.Sprintf("reservation is %s, not pending confirmation", res.Status))
	}

	v, err := s.eligibleVehicle(ctx, vehicleID, res.VehicleCategory)
	if err != nil {
		return nil, err
	}
	if err := s.claimVehicle(ctx, v, res.PickupDate, res.DropoffDate); err != nil {
		return nil, err
	}

	err = s.Bookings.UpdateReservationIfStatus(ctx, res.ID, entities.ReservationPending, entityapi.Document{
		"assigned_vehicle_id": v.ID,
		"status":              entities.ReservationConfirmed,
	})
	if errors.Is(err, entityapi.ErrConflict) {
		return nil, apperrors.Conflict("reservation was confirmed by someone else")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not confirm reservation", err)
	}
	res.AssignedVehicleID = &v.ID
	res.Status = entities.ReservationConfirmed

	s.notify(ctx, &entities.Notification{
		Type:              entities.NotificationAllocation,
		Title:             "Vehicle allocated",
		Message:           fmt.Sprintf("%s allocated to %s's reservation.", v.Label(), res.CustomerName),
		Priority:          entities.PriorityNormal,
		RelatedEntityID:   res.ID,
		RelatedEntityType: entityapi.EntityReservation,
	})
	s.afterConfirmation(ctx, res, v)
	return res, nil
}

// CancelReservation cancels a pending or confirmed reservation, refunding
// the deposit when one was taken. In-progress hires must be checked in,
// not cancelled.
func (s *AllocationService) CancelReservation(ctx context.Context, reservationID string) (*entities.Reservation, error) {
	res, err := s.Bookings.GetReservation(ctx, reservationID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("reservation not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load reservation", err)
	}
	if res.Status != entities.ReservationPending && res.Status != entities.ReservationConfirmed {
		return nil, apperrors.Conflict(fmt.Sprintf("a %s reservation cannot be cancelled", res.Status))
	}

	// Guarded on the status seen above, so a concurrent checkout moving it
	// to in_progress wins over the cancellation.
	err = s.Bookings.UpdateReservationIfStatus(ctx, res.ID, res.Status,
		entityapi.Document{"status": entities.ReservationCancelled})
	if errors.Is(err, entityapi.ErrConflict) {
		return nil, apperrors.Conflict("reservation changed state during cancellation")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not cancel reservation", err)
	}
	res.Status = entities.ReservationCancelled

	if s.Payments != nil && res.StripeSessionID != "" {
		if err := s.Payments.RefundBySessionID(res.StripeSessionID); err != nil {
			log.Printf("Allocation: deposit refund for reservation %s failed: %v", res.ID, err)
		}
	}
	s.notify(ctx, &entities.Notification{
		Type:              entities.NotificationBooking,
		Title:             "Reservation cancelled",
		Message:           fmt.Sprintf("%s's reservation was cancelled.", res.CustomerName),
		Priority:          entities.PriorityNormal,
		RelatedEntityID:   res.ID,
		RelatedEntityType: entityapi.EntityReservation,
	})
	return res, nil
}

func (s *AllocationService) eligibleVehicle(ctx context.Context, vehicleID, category string) (*entities.Vehicle, error) {
	v, err := s.Fleet.GetVehicle(ctx, vehicleID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load vehicle", err)
	}
	if v.Category != category {
		return nil, apperrors.NotFound(fmt.Sprintf("vehicle %s is a %s, quote needs a %s", v.Rego, v.Category, category))
	}
	if !v.IsActive() || v.Status != entities.VehicleAvailable {
		return nil, apperrors.NotFound(fmt.Sprintf("vehicle %s is not available", v.Rego))
	}
	return v, nil
}

// claimVehicle serializes concurrent allocations of one vehicle. The claim
// write is guarded on the allocation version the caller read and bumps that
// same field, so of N claimants racing past the overlap check exactly one
// wins the bump. The winner re-runs the overlap check afterwards to see any
// reservation committed between its first check and the claim.
func (s *AllocationService) claimVehicle(ctx context.Context, v *entities.Vehicle, pickup, dropoff time.Time) error {
	if err := s.checkDoubleBooking(ctx, v.ID, pickup, dropoff); err != nil {
		return err
	}
	err := s.Fleet.ClaimVehicleForAllocation(ctx, v.ID, v.AllocationVersion)
	if errors.Is(err, entityapi.ErrConflict) {
		return apperrors.Conflict("vehicle was taken by a concurrent allocation")
	}
	if err != nil {
		return apperrors.RemoteWrite("could not reserve vehicle", err)
	}
	return s.checkDoubleBooking(ctx, v.ID, pickup, dropoff)
}

// checkDoubleBooking rejects an allocation when the vehicle already has a
// confirmed/in-progress reservation or an open hire overlapping the
// window. Intervals are inclusive on both bounds, matching the calendar.
func (s *AllocationService) checkDoubleBooking(ctx context.Context, vehicleID string, pickup, dropoff time.Time) error {
	active, err := s.Bookings.ActiveReservationsForVehicle(ctx, vehicleID)
	if err != nil {
		return apperrors.RemoteWrite("could not check existing reservations", err)
	}
	for _, other := range active {
		if intervalsOverlap(pickup, dropoff, other.PickupDate, other.DropoffDate) {
			return apperrors.Conflict(fmt.Sprintf("vehicle already reserved for %s over that window", other.CustomerName))
		}
	}
	open, err := s.Bookings.OpenCheckoutForVehicle(ctx, vehicleID)
	if err != nil {
		return apperrors.RemoteWrite("could not check open hires", err)
	}
	if open != nil && intervalsOverlap(pickup, dropoff, open.CheckoutDate, open.ExpectedReturnDate) {
		return apperrors.Conflict(fmt.Sprintf("vehicle is on hire to %s over that window", open.CustomerName))
	}
	return nil
}

func intervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !dateUTC(aStart).After(dateUTC(bEnd)) && !dateUTC(bStart).After(dateUTC(aEnd))
}

func (s *AllocationService) notify(ctx context.Context, n *entities.Notification) {
	// Notification failures never fail the booking; the feed is advisory.
	if err := s.Notifications.Create(ctx, n); err != nil {
		log.Printf("Allocation: notification create failed: %v", err)
	}
}

// afterConfirmation fires the customer-facing side effects: confirmation
// email and SMS, and the deposit checkout session when payments are wired.
func (s *AllocationService) afterConfirmation(ctx context.Context, res *entities.Reservation, v *entities.Vehicle) {
	if s.Sender != nil {
		s.Sender.SendConfirmationEmail(*res, v.Label())
		s.Sender.SendConfirmationSMS(*res, v.Label())
	}
	if s.Payments != nil && res.TotalPrice > 0 {
		sessionID, url, err := s.Payments.CreateDepositSession(res, v.Label())
		if err != nil {
			log.Printf("Allocation: deposit session for reservation %s failed: %v", res.ID, err)
			return
		}
		if err := s.Bookings.UpdateReservation(ctx, res.ID, entityapi.Document{"stripe_session_id": sessionID}); err != nil {
			log.Printf("Allocation: could not record deposit session %s on reservation %s: %v", sessionID, res.ID, err)
		}
		log.Printf("Allocation: deposit session %s created for reservation %s (%s)", sessionID, res.ID, url)
	}
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	"fleetrental/internal/repository"
)

// JobService holds the periodic housekeeping run from cron: completing
// finished reservations, escalating overdue confirmations, GPS refresh
// and service-trigger sweeps.
type JobService struct {
	Bookings      *repository.BookingRepository
	Fleet         *FleetService
	Notifications *NotificationService
}

func NewJobService(bookings *repository.BookingRepository, fleet *FleetService,
	notifications *NotificationService) *JobService {
	return &JobService{Bookings: bookings, Fleet: fleet, Notifications: notifications}
}

// CompleteFinishedReservations moves confirmed/in-progress reservations
// whose dropoff has passed to completed.
func (s *JobService) CompleteFinishedReservations(ctx context.Context) error {
	log.Println("Cron Job: checking for reservations to mark as completed...")

	reservations, err := s.Bookings.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("cron job: loading reservations: %w", err)
	}

	now := time.Now().UTC()
	completed := 0
	for _, res := range reservations {
		if res.Status != entities.ReservationConfirmed && res.Status != entities.ReservationInProgress {
			continue
		}
		if res.DropoffDate.After(now) {
			continue
		}
		if err := s.Bookings.UpdateReservation(ctx, res.ID,
			entityapi.Document{"status": entities.ReservationCompleted}); err != nil {
			log.Printf("Cron Job: could not complete reservation %s: %v", res.ID, err)
			continue
		}
		completed++
	}
	if completed > 0 {
		log.Printf("Cron Job: marked %d reservations completed", completed)
	}
	return nil
}

// EscalateOverdueConfirmations raises an urgent notification for pending
// reservations past their confirmation deadline, once per reservation.
func (s *JobService) EscalateOverdueConfirmations(ctx context.Context) error {
	reservations, err := s.Bookings.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("cron job: loading reservations: %w", err)
	}

	now := time.Now().UTC()
	for _, res := range reservations {
		if res.Status != entities.ReservationPending {
			continue
		}
		if res.ConfirmationRequiredBy == nil || res.ConfirmationRequiredBy.After(now) {
			continue
		}
		// One escalation per reservation: skip if an unread escalation for
		// this reservation already exists.
		existing, err := s.Notifications.Repo.Unread(ctx, 0)
		if err != nil {
			return fmt.Errorf("cron job: loading notifications: %w", err)
		}
		already := false
		for _, n := range existing {
			if n.Type == entities.NotificationEscalation && n.RelatedEntityID == res.ID {
				already = true
				break
			}
		}
		if already {
			continue
		}
		err = s.Notifications.Create(ctx, &entities.Notification{
			Type:              entities.NotificationEscalation,
			Title:             "Reservation still unallocated",
			Message:           fmt.Sprintf("%s's reservation needed a vehicle by %s and none is allocated.", res.CustomerName, res.ConfirmationRequiredBy.Format("02 Jan 15:04")),
			Priority:          entities.PriorityUrgent,
			RelatedEntityID:   res.ID,
			RelatedEntityType: entityapi.EntityReservation,
			ActionRequired:    true,
		})
		if err != nil {
			log.Printf("Cron Job: escalation for reservation %s failed: %v", res.ID, err)
		}
	}
	return nil
}

// SweepServiceTriggers fires due maintenance triggers.
func (s *JobService) SweepServiceTriggers(ctx context.Context) error {
	n, err := s.Fleet.RunServiceTriggers(ctx)
	if err != nil {
		return fmt.Errorf("cron job: service triggers: %w", err)
	}
	if n > 0 {
		log.Printf("Cron Job: raised %d maintenance notifications", n)
	}
	return nil
}

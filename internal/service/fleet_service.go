package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// CheckoutRequest carries the handover details captured at the counter.
type CheckoutRequest struct {
	CarID              string    `json:"car_id"`
	ReservationID      string    `json:"reservation_id,omitempty"`
	CustomerName       string    `json:"customer_name"`
	CustomerPhone      string    `json:"customer_phone,omitempty"`
	CheckoutDate       time.Time `json:"checkout_date"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
	Mileage            int       `json:"mileage"`
	FuelLevel          int       `json:"fuel_level"`
}

// FleetService owns the vehicle lifecycle: checkout/check-in, the
// post-return refurbishment workflow, GPS display sync and service
// triggers.
type FleetService struct {
	Fleet         *repository.FleetRepository
	Bookings      *repository.BookingRepository
	Notifications *NotificationService
}

func NewFleetService(fleet *repository.FleetRepository, bookings *repository.BookingRepository,
	notifications *NotificationService) *FleetService {
	return &FleetService{Fleet: fleet, Bookings: bookings, Notifications: notifications}
}

// Checkout hands a vehicle to a customer: a status-guarded vehicle write
// followed by the CheckoutReport create. The guard means two counters
// cannot check out the same vehicle; a failed report create reverts the
// vehicle.
func (s *FleetService) Checkout(ctx context.Context, req CheckoutRequest) (*entities.CheckoutReport, error) {
	if req.CustomerName == "" {
		return nil, apperrors.Validation("customer name is required")
	}
	if req.CheckoutDate.IsZero() || req.ExpectedReturnDate.IsZero() {
		return nil, apperrors.Validation("checkout and expected return dates are required")
	}
	if req.ExpectedReturnDate.Before(req.CheckoutDate) {
		return nil, apperrors.Validation("expected return must not be before checkout")
	}

	v, err := s.Fleet.GetVehicle(ctx, req.CarID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load vehicle", err)
	}
	if !v.IsActive() {
		return nil, apperrors.Conflict("vehicle is inactive")
	}

	err = s.Fleet.UpdateVehicleIfStatus(ctx, v.ID, entities.VehicleAvailable,
		entityapi.Document{"status": entities.VehicleCheckedOut, "mileage": req.Mileage, "fuel_level": req.FuelLevel})
	if errors.Is(err, entityapi.ErrConflict) {
		return nil, apperrors.Conflict(fmt.Sprintf("vehicle %s is not available for checkout", v.Rego))
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not update vehicle status", err)
	}

	report, err := s.Bookings.CreateCheckout(ctx, &entities.CheckoutReport{
		CarID:              v.ID,
		ReservationID:      req.ReservationID,
		CustomerName:       req.CustomerName,
		CustomerPhone:      req.CustomerPhone,
		CheckoutDate:       req.CheckoutDate,
		ExpectedReturnDate: req.ExpectedReturnDate,
		CheckoutMileage:    req.Mileage,
		CheckoutFuelLevel:  req.FuelLevel,
	})
	if err != nil {
		if revertErr := s.Fleet.UpdateVehicle(ctx, v.ID, entityapi.Document{"status": entities.VehicleAvailable}); revertErr != nil {
			return nil, apperrors.Partial(
				fmt.Sprintf("vehicle %s was marked checked out but the report create and its compensation both failed", v.Rego),
				errors.Join(err, revertErr))
		}
		return nil, apperrors.RemoteWrite("could not create checkout report; vehicle reverted", err)
	}

	if req.ReservationID != "" {
		if err := s.Bookings.UpdateReservation(ctx, req.ReservationID,
			entityapi.Document{"status": entities.ReservationInProgress}); err != nil {
			log.Printf("Fleet: could not move reservation %s to in_progress: %v", req.ReservationID, err)
		}
	}
	return report, nil
}

// CheckIn takes a vehicle back: closes the open hire, opens a
// refurbishment workflow at the returned stage and moves the vehicle into
// inspection.
func (s *FleetService) CheckIn(ctx context.Context, carID string, mileage, fuelLevel int, damageFlagged bool, notes string) (*entities.VehicleWorkflow, error) {
	v, err := s.Fleet.GetVehicle(ctx, carID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load vehicle", err)
	}
	if v.Status != entities.VehicleCheckedOut {
		return nil, apperrors.Conflict(fmt.Sprintf("vehicle %s is not on hire", v.Rego))
	}

	open, err := s.Bookings.OpenCheckoutForVehicle(ctx, carID)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load open checkout", err)
	}
	now := time.Now().UTC()
	if open != nil {
		if err := s.Bookings.UpdateCheckout(ctx, open.ID, entityapi.Document{"returned_at": now.Format(time.RFC3339)}); err != nil {
			return nil, apperrors.RemoteWrite("could not close checkout report", err)
		}
		if open.ReservationID != "" {
			if err := s.Bookings.UpdateReservation(ctx, open.ReservationID,
				entityapi.Document{"status": entities.ReservationCompleted}); err != nil {
				log.Printf("Fleet: could not complete reservation %s: %v", open.ReservationID, err)
			}
		}
	}

	wf, err := s.Bookings.CreateWorkflow(ctx, &entities.VehicleWorkflow{
		CarID:          carID,
		WorkflowStatus: entities.WorkflowInProgress,
		CurrentStage:   entities.StageReturned,
		DamageFlagged:  damageFlagged,
		Notes:          notes,
	})
	if err != nil {
		return nil, apperrors.RemoteWrite("could not open refurbishment workflow", err)
	}

	fields := entityapi.Document{"status": entities.VehicleInInspection}
	if mileage > 0 {
		fields["mileage"] = mileage
	}
	if fuelLevel > 0 {
		fields["fuel_level"] = fuelLevel
	}
	if err := s.Fleet.UpdateVehicle(ctx, carID, fields); err != nil {
		return nil, apperrors.RemoteWrite("could not update vehicle after check-in", err)
	}
	return wf, nil
}

// nextStage walks the refurbishment pipeline. A clean return skips the
// servicing bay; a damage-flagged one must pass through it.
func nextStage(current string, damageFlagged bool) (string, error) {
	switch current {
	case entities.StageReturned:
		return entities.StageWashing, nil
	case entities.StageWashing:
		return entities.StageDrivingTest, nil
	case entities.StageDrivingTest:
		if damageFlagged {
			return entities.StageServicing, nil
		}
		return entities.StageApproval, nil
	case entities.StageServicing:
		return entities.StageApproval, nil
	case entities.StageApproval:
		return entities.StageReadyForHire, nil
	default:
		return "", fmt.Errorf("no stage after %q", current)
	}
}

// vehicleStatusForStage maps a workflow stage to the vehicle status shown
// on the fleet board.
func vehicleStatusForStage(stage string) string {
	switch stage {
	case entities.StageWashing:
		return entities.VehicleInCleaning
	case entities.StageDrivingTest:
		return entities.VehicleInDrivingCheck
	case entities.StageServicing:
		return entities.VehicleMaintenanceRequired
	case entities.StageReadyForHire:
		return entities.VehicleAvailable
	default:
		return entities.VehicleInInspection
	}
}

// AdvanceWorkflow moves a workflow one stage forward. Reaching
// ready_for_hire completes the workflow and returns the vehicle to the
// available pool.
func (s *FleetService) AdvanceWorkflow(ctx context.Context, workflowID string) (*entities.VehicleWorkflow, error) {
	wf, err := s.Bookings.GetWorkflow(ctx, workflowID)
	if errors.Is(err, entityapi.ErrNotFound) {
		return nil, apperrors.NotFound("workflow not found")
	}
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load workflow", err)
	}
	if wf.WorkflowStatus != entities.WorkflowInProgress {
		return nil, apperrors.Conflict("workflow is already completed")
	}

	stage, err := nextStage(wf.CurrentStage, wf.DamageFlagged)
	if err != nil {
		return nil, apperrors.Conflict(err.Error())
	}

	fields := entityapi.Document{"current_stage": stage}
	if stage == entities.StageReadyForHire {
		fields["workflow_status"] = entities.WorkflowCompleted
		fields["completed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	if err := s.Bookings.UpdateWorkflow(ctx, wf.ID, fields); err != nil {
		return nil, apperrors.RemoteWrite("could not advance workflow", err)
	}
	if err := s.Fleet.UpdateVehicle(ctx, wf.CarID, entityapi.Document{"status": vehicleStatusForStage(stage)}); err != nil {
		return nil, apperrors.RemoteWrite("could not update vehicle status", err)
	}

	wf.CurrentStage = stage
	if stage == entities.StageReadyForHire {
		wf.WorkflowStatus = entities.WorkflowCompleted
	}
	return wf, nil
}

// SyncGps copies the newest telemetry sample per vehicle onto the Car
// records for display. Returns how many vehicles were refreshed.
func (s *FleetService) SyncGps(ctx context.Context) (int, error) {
	samples, err := s.Fleet.LatestGps(ctx)
	if err != nil {
		return 0, apperrors.RemoteWrite("could not load GPS data", err)
	}
	seen := map[string]bool{}
	updated := 0
	for _, g := range samples {
		if seen[g.CarID] {
			continue
		}
		seen[g.CarID] = true
		err := s.Fleet.UpdateVehicle(ctx, g.CarID, entityapi.Document{
			"lat":         g.Latitude,
			"lng":         g.Longitude,
			"speed":       g.Speed,
			"heading":     g.Heading,
			"engine_on":   g.EngineOn,
			"last_update": g.RecordedAt.Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("Fleet: GPS sync for vehicle %s failed: %v", g.CarID, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// DistanceFromHomeKm reports the vehicle's distance from the configured
// home base. The Setting entity wins; HOME_BASE_LAT/HOME_BASE_LNG are the
// deployment fallback. ok=false when neither is set.
func (s *FleetService) DistanceFromHomeKm(ctx context.Context, v *entities.Vehicle) (float64, bool, error) {
	lat, lng, ok, err := s.Fleet.HomeBase(ctx)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		lat, lng, ok = homeBaseFromEnv()
		if !ok {
			return 0, false, nil
		}
	}
	return haversineKm(lat, lng, v.Latitude, v.Longitude), true, nil
}

func homeBaseFromEnv() (lat, lng float64, ok bool) {
	rawLat, rawLng := os.Getenv("HOME_BASE_LAT"), os.Getenv("HOME_BASE_LNG")
	if rawLat == "" || rawLng == "" {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(rawLat, 64)
	lng, errLng := strconv.ParseFloat(rawLng, 64)
	if errLat != nil || errLng != nil {
		log.Printf("Fleet: invalid HOME_BASE_LAT/HOME_BASE_LNG (%q, %q)", rawLat, rawLng)
		return 0, 0, false
	}
	return lat, lng, true
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RunServiceTriggers raises a maintenance notification for every active
// trigger that has come due, then stamps the trigger so it fires once.
func (s *FleetService) RunServiceTriggers(ctx context.Context) (int, error) {
	triggers, err := s.Fleet.ActiveServiceTriggers(ctx)
	if err != nil {
		return 0, apperrors.RemoteWrite("could not load service triggers", err)
	}

	now := time.Now().UTC()
	fired := 0
	for _, tr := range triggers {
		if tr.NotifiedAt != nil {
			continue
		}
		v, err := s.Fleet.GetVehicle(ctx, tr.CarID)
		if err != nil {
			log.Printf("Fleet: service trigger %s references missing vehicle %s: %v", tr.ID, tr.CarID, err)
			continue
		}
		mileageDue := tr.MileageInterval > 0 && v.Mileage-tr.LastServiceMileage >= tr.MileageInterval
		dateDue := tr.DueDate != nil && tr.DueDate.Before(now)
		if !mileageDue && !dateDue {
			continue
		}

		err = s.Notifications.Create(ctx, &entities.Notification{
			Type:              entities.NotificationMaintenance,
			Title:             fmt.Sprintf("Service due: %s", v.Label()),
			Message:           fmt.Sprintf("%s is due for %s (odometer %d km).", v.Label(), tr.Name, v.Mileage),
			Priority:          entities.PriorityHigh,
			RelatedEntityID:   v.ID,
			RelatedEntityType: entityapi.EntityCar,
			ActionRequired:    true,
		})
		if err != nil {
			log.Printf("Fleet: maintenance notification for %s failed: %v", v.ID, err)
			continue
		}
		if err := s.Fleet.UpdateServiceTrigger(ctx, tr.ID,
			entityapi.Document{"notified_at": now.Format(time.RFC3339)}); err != nil {
			log.Printf("Fleet: could not stamp service trigger %s: %v", tr.ID, err)
		}
		fired++
	}
	return fired, nil
}

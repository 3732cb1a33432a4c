package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

type fleetFixture struct {
	store         entityapi.Store
	fleet         *repository.FleetRepository
	bookings      *repository.BookingRepository
	notifications *NotificationService
	svc           *FleetService
}

func newFleetFixture() *fleetFixture {
	store := entityapi.NewMemStore()
	fleet := repository.NewFleetRepository(store)
	bookings := repository.NewBookingRepository(store)
	notifications := NewNotificationService(repository.NewNotificationRepository(store))
	return &fleetFixture{
		store:         store,
		fleet:         fleet,
		bookings:      bookings,
		notifications: notifications,
		svc:           NewFleetService(fleet, bookings, notifications),
	}
}

func (f *fleetFixture) seedVehicle(t *testing.T, status string) *entities.Vehicle {
	t.Helper()
	v, err := f.fleet.CreateVehicle(context.Background(), &entities.Vehicle{
		Make:     "Toyota",
		Model:    "Hiace",
		Rego:     "VAN001",
		Category: "Van",
		Status:   status,
		Mileage:  40000,
	})
	require.NoError(t, err)
	return v
}

func checkoutReq(carID string) CheckoutRequest {
	return CheckoutRequest{
		CarID:              carID,
		CustomerName:       "Jo Renter",
		CheckoutDate:       day(2026, time.April, 10),
		ExpectedReturnDate: day(2026, time.April, 14),
		Mileage:            40120,
		FuelLevel:          90,
	}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)

	report, err := f.svc.Checkout(ctx, checkoutReq(v.ID))
	require.NoError(t, err)
	require.Equal(t, v.ID, report.CarID)
	require.True(t, report.Open())
	require.Equal(t, 40120, report.CheckoutMileage)

	got, err := f.fleet.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, entities.VehicleCheckedOut, got.Status)
	require.Equal(t, 40120, got.Mileage)

	// The status guard rejects a second checkout of the same vehicle.
	_, err = f.svc.Checkout(ctx, checkoutReq(v.ID))
	require.True(t, apperrors.IsConflict(err))
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)

	req := checkoutReq(v.ID)
	req.CustomerName = ""
	_, err := f.svc.Checkout(ctx, req)
	require.True(t, apperrors.IsValidation(err))

	req = checkoutReq(v.ID)
	req.ExpectedReturnDate = req.CheckoutDate.AddDate(0, 0, -1)
	_, err = f.svc.Checkout(ctx, req)
	require.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Checkout(ctx, checkoutReq("missing"))
	require.True(t, apperrors.IsNotFound(err))
}

func TestCheckoutMovesReservationInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)
	res, err := f.bookings.CreateReservation(ctx, &entities.Reservation{
		CustomerName: "Jo Renter",
		Status:       entities.ReservationConfirmed,
		PickupDate:   day(2026, time.April, 10),
		DropoffDate:  day(2026, time.April, 14),
	})
	require.NoError(t, err)

	req := checkoutReq(v.ID)
	req.ReservationID = res.ID
	_, err = f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	got, err := f.bookings.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, entities.ReservationInProgress, got.Status)
}

func TestCheckInOpensWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)
	_, err := f.svc.Checkout(ctx, checkoutReq(v.ID))
	require.NoError(t, err)

	wf, err := f.svc.CheckIn(ctx, v.ID, 40550, 40, false, "clean return")
	require.NoError(t, err)
	require.Equal(t, entities.WorkflowInProgress, wf.WorkflowStatus)
	require.Equal(t, entities.StageReturned, wf.CurrentStage)
	require.False(t, wf.DamageFlagged)

	got, err := f.fleet.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, entities.VehicleInInspection, got.Status)
	require.Equal(t, 40550, got.Mileage)

	open, err := f.bookings.OpenCheckoutForVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Nil(t, open)

	// Not on hire anymore, a second check-in is a conflict.
	_, err = f.svc.CheckIn(ctx, v.ID, 40550, 40, false, "")
	require.True(t, apperrors.IsConflict(err))
}

func TestAdvanceWorkflowCleanReturn(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)
	_, err := f.svc.Checkout(ctx, checkoutReq(v.ID))
	require.NoError(t, err)
	wf, err := f.svc.CheckIn(ctx, v.ID, 0, 0, false, "")
	require.NoError(t, err)

	// A clean return skips the servicing bay.
	wantStages := []string{
		entities.StageWashing,
		entities.StageDrivingTest,
		entities.StageApproval,
		entities.StageReadyForHire,
	}
	for _, want := range wantStages {
		wf, err = f.svc.AdvanceWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		require.Equal(t, want, wf.CurrentStage)
	}
	require.Equal(t, entities.WorkflowCompleted, wf.WorkflowStatus)

	got, err := f.fleet.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, entities.VehicleAvailable, got.Status)

	// Completed workflows cannot advance further.
	_, err = f.svc.AdvanceWorkflow(ctx, wf.ID)
	require.True(t, apperrors.IsConflict(err))
}

func TestAdvanceWorkflowDamagePassesServicing(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)
	_, err := f.svc.Checkout(ctx, checkoutReq(v.ID))
	require.NoError(t, err)
	wf, err := f.svc.CheckIn(ctx, v.ID, 0, 0, true, "scraped bumper")
	require.NoError(t, err)

	wantStages := []string{
		entities.StageWashing,
		entities.StageDrivingTest,
		entities.StageServicing,
		entities.StageApproval,
		entities.StageReadyForHire,
	}
	for _, want := range wantStages {
		wf, err = f.svc.AdvanceWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		require.Equal(t, want, wf.CurrentStage)
	}

	// The servicing stage surfaced on the fleet board while active.
	require.Equal(t, entities.VehicleMaintenanceRequired, vehicleStatusForStage(entities.StageServicing))
}

func TestRunServiceTriggersFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)

	_, err := f.store.Create(ctx, entityapi.EntityServiceTrigger, entityapi.Document{
		"car_id":               v.ID,
		"name":                 "100k service",
		"mileage_interval":     10000,
		"last_service_mileage": 25000,
		"active":               true,
	})
	require.NoError(t, err)

	fired, err := f.svc.RunServiceTriggers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	items, err := f.notifications.ListUnread(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, entities.NotificationMaintenance, items[0].Type)
	require.True(t, items[0].ActionRequired)

	// The notified_at stamp keeps the trigger from firing again.
	fired, err = f.svc.RunServiceTriggers(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, fired)
}

func TestHaversineKm(t *testing.T) {
	// Brisbane CBD to Gold Coast is roughly 70 km.
	got := haversineKm(-27.4698, 153.0251, -28.0167, 153.4000)
	require.InDelta(t, 70, got, 5)
	require.Zero(t, haversineKm(-27.4698, 153.0251, -27.4698, 153.0251))
}

func TestSyncGpsUsesNewestSamplePerVehicle(t *testing.T) {
	ctx := context.Background()
	f := newFleetFixture()
	v := f.seedVehicle(t, entities.VehicleAvailable)

	older := time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)
	for _, g := range []entityapi.Document{
		{"car_id": v.ID, "lat": -27.1, "lng": 153.1, "speed": 60.0, "recorded_at": older.Format(time.RFC3339)},
		{"car_id": v.ID, "lat": -27.5, "lng": 153.2, "speed": 80.0, "recorded_at": newer.Format(time.RFC3339)},
	} {
		_, err := f.store.Create(ctx, entityapi.EntityGpsData, g)
		require.NoError(t, err)
	}

	updated, err := f.svc.SyncGps(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	got, err := f.fleet.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, -27.5, got.Latitude)
	require.Equal(t, 80.0, got.Speed)
	require.NotNil(t, got.LastGpsUpdate)
	require.Equal(t, newer, got.LastGpsUpdate.UTC())
}

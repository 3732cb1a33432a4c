package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// countingStore counts write calls so tests can assert a rejected
// operation touched nothing.
type countingStore struct {
	entityapi.Store
	writes int
}

func (c *countingStore) Create(ctx context.Context, entity string, fields entityapi.Document) (entityapi.Document, error) {
	c.writes++
	return c.Store.Create(ctx, entity, fields)
}

func (c *countingStore) Update(ctx context.Context, entity, id string, fields entityapi.Document) (entityapi.Document, error) {
	c.writes++
	return c.Store.Update(ctx, entity, id, fields)
}

func (c *countingStore) UpdateWhere(ctx context.Context, entity, id string, guard entityapi.Filter, fields entityapi.Document) (entityapi.Document, error) {
	c.writes++
	return c.Store.UpdateWhere(ctx, entity, id, guard, fields)
}

func (c *countingStore) Delete(ctx context.Context, entity, id string) error {
	c.writes++
	return c.Store.Delete(ctx, entity, id)
}

// barrierStore holds guarded writes on one entity until every expected
// caller has arrived, forcing the interleaving where all of them have
// already passed their pre-write checks.
type barrierStore struct {
	entityapi.Store
	entity   string
	mu       sync.Mutex
	waiting  int
	released chan struct{}
}

func newBarrierStore(store entityapi.Store, entity string, parties int) *barrierStore {
	return &barrierStore{Store: store, entity: entity, waiting: parties, released: make(chan struct{})}
}

func (b *barrierStore) UpdateWhere(ctx context.Context, entity, id string, guard entityapi.Filter, fields entityapi.Document) (entityapi.Document, error) {
	if entity == b.entity {
		b.mu.Lock()
		b.waiting--
		if b.waiting == 0 {
			close(b.released)
		}
		b.mu.Unlock()
		<-b.released
	}
	return b.Store.UpdateWhere(ctx, entity, id, guard, fields)
}

// failingStore fails plain updates on one entity type, for exercising the
// conversion saga's compensation path.
type failingStore struct {
	entityapi.Store
	failEntity string
}

func (f *failingStore) Update(ctx context.Context, entity, id string, fields entityapi.Document) (entityapi.Document, error) {
	if entity == f.failEntity {
		return nil, errors.New("store unavailable")
	}
	return f.Store.Update(ctx, entity, id, fields)
}

type allocFixture struct {
	store         entityapi.Store
	bookings      *repository.BookingRepository
	fleet         *repository.FleetRepository
	notifications *NotificationService
	svc           *AllocationService
}

func newAllocFixture(store entityapi.Store) *allocFixture {
	bookings := repository.NewBookingRepository(store)
	fleet := repository.NewFleetRepository(store)
	notifications := NewNotificationService(repository.NewNotificationRepository(store))
	return &allocFixture{
		store:         store,
		bookings:      bookings,
		fleet:         fleet,
		notifications: notifications,
		svc:           NewAllocationService(bookings, fleet, notifications),
	}
}

func (f *allocFixture) seedQuote(t *testing.T, validUntil time.Time) *entities.Quote {
	t.Helper()
	q, err := f.bookings.CreateQuote(context.Background(), &entities.Quote{
		QuoteNumber:     "Q-TEST0001",
		CustomerName:    "Jo Renter",
		CustomerEmail:   "jo@example.com",
		CustomerPhone:   "+61400000000",
		VehicleCategory: "Ute",
		PickupDate:      "2026-04-10",
		DropoffDate:     "2026-04-14",
		Total:           950,
		Status:          entities.QuoteSent,
		ValidUntil:      validUntil,
	})
	require.NoError(t, err)
	return q
}

func (f *allocFixture) seedVehicle(t *testing.T, category, status string) *entities.Vehicle {
	t.Helper()
	v, err := f.fleet.CreateVehicle(context.Background(), &entities.Vehicle{
		Make:     "Toyota",
		Model:    "Hilux",
		Rego:     "UTE001",
		Category: category,
		Status:   status,
	})
	require.NoError(t, err)
	return v
}

func TestConvertDirect(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)

	res, err := f.svc.ConvertDirect(ctx, q.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, entities.ReservationConfirmed, res.Status)
	require.NotNil(t, res.AssignedVehicleID)
	require.Equal(t, v.ID, *res.AssignedVehicleID)
	require.Equal(t, time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC), res.PickupDate)
	require.Equal(t, time.Date(2026, time.April, 14, 17, 0, 0, 0, time.UTC), res.DropoffDate)

	got, err := f.bookings.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entities.QuoteAccepted, got.Status)

	items, err := f.notifications.ListUnread(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.False(t, items[0].ActionRequired)
	require.Equal(t, res.ID, items[0].RelatedEntityID)
}

func TestConvertUnallocated(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))

	res, err := f.svc.ConvertUnallocated(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entities.ReservationPending, res.Status)
	require.Nil(t, res.AssignedVehicleID)
	require.NotNil(t, res.ConfirmationRequiredBy)
	require.Equal(t, res.PickupDate.Add(-24*time.Hour), *res.ConfirmationRequiredBy)

	got, err := f.bookings.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entities.QuoteAccepted, got.Status)

	items, err := f.notifications.ListUnread(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].ActionRequired)
	require.Equal(t, entities.PriorityHigh, items[0].Priority)
}

func TestConvertExpiredQuoteWritesNothing(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: entityapi.NewMemStore()}
	f := newAllocFixture(counting)
	q := f.seedQuote(t, time.Now().UTC().Add(-time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)
	counting.writes = 0

	_, err := f.svc.ConvertUnallocated(ctx, q.ID)
	require.True(t, apperrors.IsConflict(err))
	_, err = f.svc.ConvertDirect(ctx, q.ID, v.ID)
	require.True(t, apperrors.IsConflict(err))
	require.Equal(t, 0, counting.writes)

	got, err := f.bookings.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entities.QuoteSent, got.Status)
}

func TestConvertDirectRejectsIneligibleVehicle(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))

	wrongCategory := f.seedVehicle(t, "Van", entities.VehicleAvailable)
	_, err := f.svc.ConvertDirect(ctx, q.ID, wrongCategory.ID)
	require.True(t, apperrors.IsNotFound(err))

	onHire := f.seedVehicle(t, "Ute", entities.VehicleCheckedOut)
	_, err = f.svc.ConvertDirect(ctx, q.ID, onHire.ID)
	require.True(t, apperrors.IsNotFound(err))

	// A failed direct conversion leaves the quote convertible.
	got, err := f.bookings.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, entities.QuoteSent, got.Status)
}

func TestConvertDirectRejectsDoubleBooking(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)

	_, err := f.bookings.CreateReservation(ctx, &entities.Reservation{
		CustomerName:      "Earlier Customer",
		AssignedVehicleID: &v.ID,
		Status:            entities.ReservationConfirmed,
		PickupDate:        day(2026, time.April, 12),
		DropoffDate:       day(2026, time.April, 16),
	})
	require.NoError(t, err)

	_, err = f.svc.ConvertDirect(ctx, q.ID, v.ID)
	require.True(t, apperrors.IsConflict(err))
}

func TestConvertDirectConcurrentAllocationsSingleWinner(t *testing.T) {
	// Two quotes racing for the same vehicle over the same window. The
	// barrier holds both at the vehicle claim until each has already passed
	// the overlap check, so only the claim's version guard can decide.
	ctx := context.Background()
	f := newAllocFixture(newBarrierStore(entityapi.NewMemStore(), entityapi.EntityCar, 2))
	q1 := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	q2 := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)

	errs := make(chan error, 2)
	for _, quoteID := range []string{q1.ID, q2.ID} {
		go func(id string) {
			_, err := f.svc.ConvertDirect(ctx, id, v.ID)
			errs <- err
		}(quoteID)
	}

	successes := 0
	var failed []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			successes++
		} else {
			failed = append(failed, err)
		}
	}
	require.Equal(t, 1, successes)
	require.Len(t, failed, 1)
	require.True(t, apperrors.IsConflict(failed[0]))

	booked, err := f.bookings.ActiveReservationsForVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, booked, 1)
}

func TestConfirmReservationConcurrentSingleVehicle(t *testing.T) {
	// Two different pending reservations racing to bind the same vehicle.
	// Each reservation's own status guard passes, so the vehicle claim is
	// the only thing keeping the second binding out.
	ctx := context.Background()
	f := newAllocFixture(newBarrierStore(entityapi.NewMemStore(), entityapi.EntityCar, 2))
	q1 := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	q2 := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)

	r1, err := f.svc.ConvertUnallocated(ctx, q1.ID)
	require.NoError(t, err)
	r2, err := f.svc.ConvertUnallocated(ctx, q2.ID)
	require.NoError(t, err)

	errs := make(chan error, 2)
	for _, resID := range []string{r1.ID, r2.ID} {
		go func(id string) {
			_, err := f.svc.ConfirmReservation(ctx, id, v.ID)
			errs <- err
		}(resID)
	}

	successes := 0
	var failed []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			successes++
		} else {
			failed = append(failed, err)
		}
	}
	require.Equal(t, 1, successes)
	require.Len(t, failed, 1)
	require.True(t, apperrors.IsConflict(failed[0]))

	booked, err := f.bookings.ActiveReservationsForVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, booked, 1)
}

func TestConvertDirectCompensatesFailedQuoteUpdate(t *testing.T) {
	ctx := context.Background()
	mem := entityapi.NewMemStore()
	f := newAllocFixture(&failingStore{Store: mem, failEntity: entityapi.EntityQuote})

	// Seed through the underlying store since quote updates are broken.
	seeded := newAllocFixture(mem)
	q := seeded.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := seeded.seedVehicle(t, "Ute", entities.VehicleAvailable)

	_, err := f.svc.ConvertDirect(ctx, q.ID, v.ID)
	require.Error(t, err)
	require.False(t, apperrors.IsPartial(err), "compensation succeeded, error must not be partial")

	// The reservation create was rolled back and the quote is untouched.
	reservations, listErr := f.bookings.ListReservations(ctx)
	require.NoError(t, listErr)
	require.Empty(t, reservations)
	got, getErr := f.bookings.GetQuote(ctx, q.ID)
	require.NoError(t, getErr)
	require.Equal(t, entities.QuoteSent, got.Status)
}

func TestConfirmReservation(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))
	v := f.seedVehicle(t, "Ute", entities.VehicleAvailable)

	pending, err := f.svc.ConvertUnallocated(ctx, q.ID)
	require.NoError(t, err)

	res, err := f.svc.ConfirmReservation(ctx, pending.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, entities.ReservationConfirmed, res.Status)
	require.Equal(t, v.ID, *res.AssignedVehicleID)

	// A second confirmation attempt hits the status check.
	_, err = f.svc.ConfirmReservation(ctx, pending.ID, v.ID)
	require.True(t, apperrors.IsConflict(err))
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())
	q := f.seedQuote(t, time.Now().UTC().Add(24*time.Hour))

	pending, err := f.svc.ConvertUnallocated(ctx, q.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelReservation(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, entities.ReservationCancelled, cancelled.Status)

	// Already cancelled, a second cancel is a conflict.
	_, err = f.svc.CancelReservation(ctx, pending.ID)
	require.True(t, apperrors.IsConflict(err))

	// In-progress hires cannot be cancelled.
	res, err := f.bookings.CreateReservation(ctx, &entities.Reservation{
		CustomerName: "On Road",
		Status:       entities.ReservationInProgress,
		PickupDate:   day(2026, time.April, 10),
		DropoffDate:  day(2026, time.April, 14),
	})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, res.ID)
	require.True(t, apperrors.IsConflict(err))
}

func TestConfirmReservationStatusGuard(t *testing.T) {
	// The guarded write itself rejects a stale confirmation even when the
	// pre-read saw the reservation as still pending.
	ctx := context.Background()
	f := newAllocFixture(entityapi.NewMemStore())

	res, err := f.bookings.CreateReservation(ctx, &entities.Reservation{
		CustomerName: "Jo Renter",
		Status:       entities.ReservationCancelled,
		PickupDate:   day(2026, time.April, 10),
		DropoffDate:  day(2026, time.April, 14),
	})
	require.NoError(t, err)

	err = f.bookings.UpdateReservationIfStatus(ctx, res.ID, entities.ReservationPending,
		entityapi.Document{"status": entities.ReservationConfirmed})
	require.ErrorIs(t, err, entityapi.ErrConflict)
}

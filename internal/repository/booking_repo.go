package repository

import (
	"context"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
)

// BookingRepository loads and writes quotes, reservations, checkout
// reports and refurbishment workflows.
type BookingRepository struct {
	Store entityapi.Store
}

func NewBookingRepository(store entityapi.Store) *BookingRepository {
	return &BookingRepository{Store: store}
}

func (r *BookingRepository) ListQuotes(ctx context.Context) ([]entities.Quote, error) {
	docs, err := r.Store.List(ctx, entityapi.EntityQuote, "-created_date")
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Quote](docs)
}

func (r *BookingRepository) GetQuote(ctx context.Context, id string) (*entities.Quote, error) {
	doc, err := r.Store.Get(ctx, entityapi.EntityQuote, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Quote](doc)
}

func (r *BookingRepository) CreateQuote(ctx context.Context, q *entities.Quote) (*entities.Quote, error) {
	fields, err := entityapi.ToDocument(q)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityQuote, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Quote](doc)
}

func (r *BookingRepository) UpdateQuote(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityQuote, id, fields)
	return err
}

func (r *BookingRepository) ListReservations(ctx context.Context) ([]entities.Reservation, error) {
	docs, err := r.Store.List(ctx, entityapi.EntityReservation, "-created_date")
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Reservation](docs)
}

func (r *BookingRepository) GetReservation(ctx context.Context, id string) (*entities.Reservation, error) {
	doc, err := r.Store.Get(ctx, entityapi.EntityReservation, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Reservation](doc)
}

func (r *BookingRepository) CreateReservation(ctx context.Context, res *entities.Reservation) (*entities.Reservation, error) {
	fields, err := entityapi.ToDocument(res)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityReservation, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Reservation](doc)
}

func (r *BookingRepository) UpdateReservation(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityReservation, id, fields)
	return err
}

// UpdateReservationIfStatus guards a reservation write on its current
// status, so two staff members confirming the same pending reservation
// cannot both win.
func (r *BookingRepository) UpdateReservationIfStatus(ctx context.Context, id, fromStatus string, fields entityapi.Document) error {
	_, err := r.Store.UpdateWhere(ctx, entityapi.EntityReservation, id,
		entityapi.Filter{"status": fromStatus}, fields)
	return err
}

// DeleteReservation exists for saga compensation only.
func (r *BookingRepository) DeleteReservation(ctx context.Context, id string) error {
	return r.Store.Delete(ctx, entityapi.EntityReservation, id)
}

// ActiveReservationsForVehicle returns confirmed or in-progress
// reservations assigned to the vehicle. Status is narrowed in code since
// store filters are exact-match only.
func (r *BookingRepository) ActiveReservationsForVehicle(ctx context.Context, vehicleID string) ([]entities.Reservation, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityReservation,
		entityapi.Filter{"assigned_vehicle_id": vehicleID}, "", 0)
	if err != nil {
		return nil, err
	}
	reservations, err := decodeAll[entities.Reservation](docs)
	if err != nil {
		return nil, err
	}
	out := reservations[:0]
	for _, res := range reservations {
		if res.Status == entities.ReservationConfirmed || res.Status == entities.ReservationInProgress {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *BookingRepository) ListCheckouts(ctx context.Context) ([]entities.CheckoutReport, error) {
	docs, err := r.Store.List(ctx, entityapi.EntityCheckoutReport, "-checkout_date")
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.CheckoutReport](docs)
}

// OpenCheckoutForVehicle returns the active hire for the vehicle, or nil.
func (r *BookingRepository) OpenCheckoutForVehicle(ctx context.Context, carID string) (*entities.CheckoutReport, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityCheckoutReport,
		entityapi.Filter{"car_id": carID}, "-checkout_date", 0)
	if err != nil {
		return nil, err
	}
	checkouts, err := decodeAll[entities.CheckoutReport](docs)
	if err != nil {
		return nil, err
	}
	for i := range checkouts {
		if checkouts[i].Open() {
			return &checkouts[i], nil
		}
	}
	return nil, nil
}

func (r *BookingRepository) CreateCheckout(ctx context.Context, report *entities.CheckoutReport) (*entities.CheckoutReport, error) {
	fields, err := entityapi.ToDocument(report)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityCheckoutReport, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.CheckoutReport](doc)
}

func (r *BookingRepository) UpdateCheckout(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityCheckoutReport, id, fields)
	return err
}

func (r *BookingRepository) InProgressWorkflows(ctx context.Context) ([]entities.VehicleWorkflow, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityVehicleWorkflow,
		entityapi.Filter{"workflow_status": entities.WorkflowInProgress}, "", 0)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.VehicleWorkflow](docs)
}

func (r *BookingRepository) GetWorkflow(ctx context.Context, id string) (*entities.VehicleWorkflow, error) {
	doc, err := r.Store.Get(ctx, entityapi.EntityVehicleWorkflow, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.VehicleWorkflow](doc)
}

func (r *BookingRepository) CreateWorkflow(ctx context.Context, wf *entities.VehicleWorkflow) (*entities.VehicleWorkflow, error) {
	fields, err := entityapi.ToDocument(wf)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityVehicleWorkflow, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.VehicleWorkflow](doc)
}

func (r *BookingRepository) UpdateWorkflow(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityVehicleWorkflow, id, fields)
	return err
}

package service

import (
	"context"
	"time"

	"fleetrental/internal/entities"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// CalendarService loads the calendar's collections in bulk and hands them
// to the pure grid builders. The engine itself never touches the store.
type CalendarService struct {
	Fleet    *repository.FleetRepository
	Bookings *repository.BookingRepository
}

func NewCalendarService(fleet *repository.FleetRepository, bookings *repository.BookingRepository) *CalendarService {
	return &CalendarService{Fleet: fleet, Bookings: bookings}
}

type calendarData struct {
	vehicles     []entities.Vehicle
	types        []entities.VehicleType
	checkouts    []entities.CheckoutReport
	reservations []entities.Reservation
	workflows    []entities.VehicleWorkflow
}

func (s *CalendarService) load(ctx context.Context, category string) (*calendarData, error) {
	vehicles, err := s.Fleet.ListVehicles(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load vehicles", err)
	}
	if category != "" {
		filtered := vehicles[:0]
		for _, v := range vehicles {
			if v.Category == category {
				filtered = append(filtered, v)
			}
		}
		vehicles = filtered
	}

	types, err := s.Fleet.ActiveVehicleTypes(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load vehicle types", err)
	}
	checkouts, err := s.Bookings.ListCheckouts(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load checkout reports", err)
	}
	reservations, err := s.Bookings.ListReservations(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load reservations", err)
	}
	workflows, err := s.Bookings.InProgressWorkflows(ctx)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load workflows", err)
	}
	return &calendarData{
		vehicles:     vehicles,
		types:        types,
		checkouts:    checkouts,
		reservations: reservations,
		workflows:    workflows,
	}, nil
}

func (s *CalendarService) WeekView(ctx context.Context, start time.Time, category string) (*WeekGrid, error) {
	data, err := s.load(ctx, category)
	if err != nil {
		return nil, err
	}
	grid := BuildWeekGrid(start, data.vehicles, data.types, data.checkouts, data.reservations, data.workflows)
	return &grid, nil
}

func (s *CalendarService) MonthView(ctx context.Context, year int, month time.Month, category string) (*MonthGrid, error) {
	data, err := s.load(ctx, category)
	if err != nil {
		return nil, err
	}
	grid := BuildMonthGrid(year, month, data.vehicles, data.checkouts, data.reservations, data.workflows)
	return &grid, nil
}

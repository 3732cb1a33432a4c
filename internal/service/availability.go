package service

import (
	"time"

	"fleetrental/internal/entities"
)

// Day statuses reported by the availability engine.
const (
	DayAvailable = "available"
	DayOnHire    = "on_hire"
	DayReserved  = "reserved"
	DayInactive  = "inactive"
)

// DayStatus is the occupancy of one vehicle on one calendar day.
type DayStatus struct {
	Status       string `json:"status"`
	Details      string `json:"details,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

// Noon normalizes a day to midday UTC so boundary rounding cannot move it
// across a date line.
func Noon(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// containsDay reports whether day falls inside [start, end], inclusive on
// both bounds, comparing calendar dates in UTC.
func containsDay(start, end, day time.Time) bool {
	d := dateUTC(day)
	return !d.Before(dateUTC(start)) && !d.After(dateUTC(end))
}

// StatusForDay computes a vehicle's occupancy on a day from pre-loaded
// collections. It is pure: the caller loads the collections in bulk once
// per visible window, then calls this per vehicle per day.
//
// First match wins, in this order: inactive flag, checkout interval,
// assigned confirmed/in-progress reservation interval, in-progress
// refurbishment workflow, vehicle status. The ordering is deliberate: a
// hire on the ground beats a reservation on paper, and refurbishment only
// shows when nothing else claims the day.
func StatusForDay(v entities.Vehicle, day time.Time, checkouts []entities.CheckoutReport,
	reservations []entities.Reservation, workflows []entities.VehicleWorkflow) DayStatus {

	at := Noon(day)

	if !v.IsActive() {
		return DayStatus{Status: DayInactive, Details: "Vehicle is inactive"}
	}

	for _, c := range checkouts {
		if c.CarID == v.ID && containsDay(c.CheckoutDate, c.ExpectedReturnDate, at) {
			return DayStatus{Status: DayOnHire, CustomerName: c.CustomerName}
		}
	}

	for _, res := range reservations {
		if res.AssignedVehicleID == nil || *res.AssignedVehicleID != v.ID {
			continue
		}
		if res.Status != entities.ReservationConfirmed && res.Status != entities.ReservationInProgress {
			continue
		}
		if containsDay(res.PickupDate, res.DropoffDate, at) {
			return DayStatus{Status: DayReserved, CustomerName: res.CustomerName}
		}
	}

	for _, wf := range workflows {
		if wf.CarID == v.ID && wf.WorkflowStatus == entities.WorkflowInProgress {
			return DayStatus{Status: DayOnHire, CustomerName: "In Process"}
		}
	}

	if v.Status == entities.VehicleAvailable {
		return DayStatus{Status: DayAvailable}
	}
	return DayStatus{Status: DayInactive, Details: "Vehicle status: " + v.Status}
}

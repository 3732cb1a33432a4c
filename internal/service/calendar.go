package service

import (
	"sort"
	"time"

	"fleetrental/internal/entities"
)

// Uncategorized is the calendar bucket for vehicles whose category matches
// no active vehicle type. It always sorts last.
const Uncategorized = "Uncategorized"

type WeekCell struct {
	Day time.Time `json:"day"`
	DayStatus
}

type WeekRow struct {
	Vehicle entities.Vehicle `json:"vehicle"`
	Cells   []WeekCell       `json:"cells"`
}

type WeekGroup struct {
	Category string    `json:"category"`
	Rows     []WeekRow `json:"rows"`
}

type WeekGrid struct {
	WeekStart time.Time   `json:"week_start"`
	Days      []time.Time `json:"days"`
	Groups    []WeekGroup `json:"groups"`
}

type MonthCell struct {
	Day            time.Time `json:"day"`
	InMonth        bool      `json:"in_month"`
	BusyCount      int       `json:"busy_count"`
	AvailableCount int       `json:"available_count"`
}

type MonthGrid struct {
	Year  int         `json:"year"`
	Month time.Month  `json:"month"`
	Cells []MonthCell `json:"cells"`
}

// MondayOf returns the Monday at 00:00 UTC on or before t.
func MondayOf(t time.Time) time.Time {
	d := dateUTC(t)
	// time.Weekday has Sunday == 0; shift so Monday == 0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekStartFor maps a clicked month-view day to the week view's start.
func WeekStartFor(day time.Time) time.Time {
	return MondayOf(day)
}

func NextWeek(weekStart time.Time) time.Time { return MondayOf(weekStart).AddDate(0, 0, 7) }
func PrevWeek(weekStart time.Time) time.Time { return MondayOf(weekStart).AddDate(0, 0, -7) }

// NextMonth and PrevMonth step the month view, rolling the year over.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// BuildWeekGrid projects availability across 7 days starting on the Monday
// of weekStart's week, grouping vehicles by category against the active
// vehicle type names.
func BuildWeekGrid(weekStart time.Time, vehicles []entities.Vehicle, types []entities.VehicleType,
	checkouts []entities.CheckoutReport, reservations []entities.Reservation,
	workflows []entities.VehicleWorkflow) WeekGrid {

	start := MondayOf(weekStart)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}

	rowFor := func(v entities.Vehicle) WeekRow {
		row := WeekRow{Vehicle: v, Cells: make([]WeekCell, len(days))}
		for i, day := range days {
			row.Cells[i] = WeekCell{
				Day:       day,
				DayStatus: StatusForDay(v, day, checkouts, reservations, workflows),
			}
		}
		return row
	}

	activeNames := make([]string, 0, len(types))
	for _, vt := range types {
		if vt.Active {
			activeNames = append(activeNames, vt.Name)
		}
	}
	sort.Strings(activeNames)

	byCategory := map[string][]entities.Vehicle{}
	for _, v := range vehicles {
		byCategory[v.Category] = append(byCategory[v.Category], v)
	}

	grid := WeekGrid{WeekStart: start, Days: days}
	seen := map[string]bool{}
	for _, name := range activeNames {
		seen[name] = true
		group := WeekGroup{Category: name}
		for _, v := range byCategory[name] {
			group.Rows = append(group.Rows, rowFor(v))
		}
		if len(group.Rows) > 0 {
			grid.Groups = append(grid.Groups, group)
		}
	}

	// Everything left over lands in Uncategorized, after all named groups.
	var leftover []entities.Vehicle
	for _, v := range vehicles {
		if !seen[v.Category] {
			leftover = append(leftover, v)
		}
	}
	if len(leftover) > 0 {
		group := WeekGroup{Category: Uncategorized}
		for _, v := range leftover {
			group.Rows = append(group.Rows, rowFor(v))
		}
		grid.Groups = append(grid.Groups, group)
	}
	return grid
}

// busyOn reports whether the vehicle is occupied on the day: an
// overlapping checkout or assigned active reservation, or an in-progress
// refurbishment workflow (which blocks every day while open).
func busyOn(v entities.Vehicle, day time.Time, checkouts []entities.CheckoutReport,
	reservations []entities.Reservation, workflows []entities.VehicleWorkflow) bool {

	for _, c := range checkouts {
		if c.CarID == v.ID && containsDay(c.CheckoutDate, c.ExpectedReturnDate, day) {
			return true
		}
	}
	for _, res := range reservations {
		if res.AssignedVehicleID == nil || *res.AssignedVehicleID != v.ID {
			continue
		}
		if res.Status != entities.ReservationConfirmed && res.Status != entities.ReservationInProgress {
			continue
		}
		if containsDay(res.PickupDate, res.DropoffDate, day) {
			return true
		}
	}
	for _, wf := range workflows {
		if wf.CarID == v.ID && wf.WorkflowStatus == entities.WorkflowInProgress {
			return true
		}
	}
	return false
}

// BuildMonthGrid computes the month view: a Monday-first grid spanning the
// Monday on/before the 1st through the Sunday on/after the last day, with
// per-day busy/available counts over the filtered vehicle set.
func BuildMonthGrid(year int, month time.Month, vehicles []entities.Vehicle,
	checkouts []entities.CheckoutReport, reservations []entities.Reservation,
	workflows []entities.VehicleWorkflow) MonthGrid {

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := MondayOf(first)
	// Sunday on/after the last day.
	end := MondayOf(last).AddDate(0, 0, 6)

	grid := MonthGrid{Year: year, Month: month}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		at := Noon(day)
		busy := 0
		for _, v := range vehicles {
			if busyOn(v, at, checkouts, reservations, workflows) {
				busy++
			}
		}
		grid.Cells = append(grid.Cells, MonthCell{
			Day:            day,
			InMonth:        day.Month() == month,
			BusyCount:      busy,
			AvailableCount: len(vehicles) - busy,
		})
	}
	return grid
}

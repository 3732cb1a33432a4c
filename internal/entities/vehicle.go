package entities

import "time"

// Vehicle statuses. A vehicle can only be allocated or checked out while
// it is "available"; the remaining states are driven by the checkout and
// refurbishment workflows.
const (
	VehicleAvailable           = "available"
	VehicleCheckedOut          = "checked_out"
	VehicleMaintenanceRequired = "maintenance_required"
	VehicleInInspection        = "in_inspection"
	VehicleInCleaning          = "in_cleaning"
	VehicleInDrivingCheck      = "in_driving_check"
	VehicleInactive            = "inactive"
)

// Vehicle is a Car entity from the entity store. GPS telemetry fields hold
// the last synced GpsData snapshot, they are display-only.
type Vehicle struct {
	ID        string `json:"id,omitempty"`
	FleetID   string `json:"fleet_id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Rego      string `json:"rego"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	Active    *bool  `json:"active,omitempty"`
	Mileage   int    `json:"mileage"`
	FuelLevel int    `json:"fuel_level"`

	// AllocationVersion is bumped by every successful allocation claim;
	// the claim write is guarded on the version the allocator read, so
	// concurrent claims serialize on it.
	AllocationVersion int `json:"allocation_version"`

	Latitude      float64    `json:"lat"`
	Longitude     float64    `json:"lng"`
	Speed         float64    `json:"speed"`
	Heading       float64    `json:"heading"`
	EngineOn      bool       `json:"engine_on"`
	LastGpsUpdate *time.Time `json:"last_update,omitempty"`

	CreatedDate time.Time `json:"created_date,omitempty"`
}

// IsActive treats a missing active flag as active; only an explicit false
// deactivates a vehicle.
func (v *Vehicle) IsActive() bool {
	return v.Active == nil || *v.Active
}

func (v *Vehicle) Label() string {
	if v.Make == "" && v.Model == "" {
		return v.Rego
	}
	return v.Make + " " + v.Model + " (" + v.Rego + ")"
}

// VehicleType is a fleet category (ute, van, truck, ...). Calendar grouping
// only considers active types; vehicles whose category matches no active
// type land in the Uncategorized bucket.
type VehicleType struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	DailyRate   float64   `json:"daily_rate"`
	CreatedDate time.Time `json:"created_date,omitempty"`
}

// GpsData is a single telemetry sample for a vehicle. Ingestion is external;
// this service only reads the latest sample per vehicle for display.
type GpsData struct {
	ID         string    `json:"id,omitempty"`
	CarID      string    `json:"car_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	EngineOn   bool      `json:"engine_on"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ServiceTrigger schedules maintenance by mileage interval and/or due date.
type ServiceTrigger struct {
	ID                 string     `json:"id,omitempty"`
	CarID              string     `json:"car_id"`
	Name               string     `json:"name"`
	MileageInterval    int        `json:"mileage_interval"`
	LastServiceMileage int        `json:"last_service_mileage"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	Active             bool       `json:"active"`
	NotifiedAt         *time.Time `json:"notified_at,omitempty"`
}

// Location is a pickup/dropoff branch with its transport fee.
type Location struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	TransportFee float64 `json:"transport_fee"`
	Active       bool    `json:"active"`
}

// Setting holds deployment-wide display settings, currently the home base
// coordinates used for distance-from-home.
type Setting struct {
	ID          string  `json:"id,omitempty"`
	HomeBaseLat float64 `json:"home_base_lat"`
	HomeBaseLng float64 `json:"home_base_lng"`
}

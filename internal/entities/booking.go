package entities

import "time"

// Quote statuses. Expiry is derived from ValidUntil, not stored: a quote
// whose status still says "sent" but whose ValidUntil has passed is not
// convertible. See service.IsQuoteConvertible for the single predicate.
const (
	QuoteDraft    = "draft"
	QuoteSent     = "sent"
	QuoteAccepted = "accepted"
	QuoteExpired  = "expired"
	QuoteInvoiced = "invoiced"
)

// Reservation statuses.
const (
	ReservationPending    = "pending_confirmation"
	ReservationConfirmed  = "confirmed"
	ReservationInProgress = "in_progress"
	ReservationCompleted  = "completed"
	ReservationCancelled  = "cancelled"
)

// VehicleWorkflow statuses and stages (post-return refurbishment pipeline).
const (
	WorkflowInProgress = "in_progress"
	WorkflowCompleted  = "completed"

	StageReturned     = "returned"
	StageWashing      = "washing"
	StageDrivingTest  = "driving_test"
	StageServicing    = "servicing"
	StageApproval     = "approval"
	StageReadyForHire = "ready_for_hire"
)

// Quote is a priced, unconfirmed offer. Pickup/dropoff are kept as the raw
// date and time strings the quote was captured with; they are parsed into
// UTC instants only at conversion time.
type Quote struct {
	ID              string    `json:"id,omitempty"`
	QuoteNumber     string    `json:"quote_number"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone"`
	VehicleCategory string    `json:"vehicle_category"`
	PickupDate      string    `json:"pickup_date"`
	PickupTime      string    `json:"pickup_time,omitempty"`
	DropoffDate     string    `json:"dropoff_date"`
	DropoffTime     string    `json:"dropoff_time,omitempty"`
	Total           float64   `json:"total"`
	Status          string    `json:"status"`
	ValidUntil      time.Time `json:"valid_until"`
	CreatedDate     time.Time `json:"created_date,omitempty"`
}

// Reservation is a pending or confirmed booking, optionally bound to a
// vehicle. AssignedVehicleID is nil for unallocated reservations.
type Reservation struct {
	ID                     string     `json:"id,omitempty"`
	QuoteID                string     `json:"quote_id,omitempty"`
	CustomerName           string     `json:"customer_name"`
	CustomerEmail          string     `json:"customer_email"`
	CustomerPhone          string     `json:"customer_phone"`
	VehicleCategory        string     `json:"vehicle_category"`
	PickupDate             time.Time  `json:"pickup_date"`
	DropoffDate            time.Time  `json:"dropoff_date"`
	AssignedVehicleID      *string    `json:"assigned_vehicle_id,omitempty"`
	Status                 string     `json:"status"`
	TotalPrice             float64    `json:"total_price"`
	ConfirmationRequiredBy *time.Time `json:"confirmation_required_by,omitempty"`
	StripeSessionID        string     `json:"stripe_session_id,omitempty"`
	CreatedDate            time.Time  `json:"created_date,omitempty"`
}

// CheckoutReport records a hire interval for a vehicle. ReturnedAt is set
// by check-in; the report is otherwise immutable.
type CheckoutReport struct {
	ID                 string     `json:"id,omitempty"`
	CarID              string     `json:"car_id"`
	ReservationID      string     `json:"reservation_id,omitempty"`
	CustomerName       string     `json:"customer_name"`
	CustomerPhone      string     `json:"customer_phone,omitempty"`
	CheckoutDate       time.Time  `json:"checkout_date"`
	ExpectedReturnDate time.Time  `json:"expected_return_date"`
	CheckoutMileage    int        `json:"checkout_mileage"`
	CheckoutFuelLevel  int        `json:"checkout_fuel_level"`
	ReturnedAt         *time.Time `json:"returned_at,omitempty"`
	CreatedDate        time.Time  `json:"created_date,omitempty"`
}

// Open reports true while the hire has not been returned.
func (c *CheckoutReport) Open() bool {
	return c.ReturnedAt == nil
}

// VehicleWorkflow tracks a vehicle through refurbishment after a return.
// An in-progress workflow keeps the vehicle off the calendar regardless of
// stage.
type VehicleWorkflow struct {
	ID             string     `json:"id,omitempty"`
	CarID          string     `json:"car_id"`
	WorkflowStatus string     `json:"workflow_status"`
	CurrentStage   string     `json:"current_stage"`
	DamageFlagged  bool       `json:"damage_flagged"`
	Notes          string     `json:"notes,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedDate    time.Time  `json:"created_date,omitempty"`
}

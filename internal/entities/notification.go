package entities

import "time"

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification types emitted by this service.
const (
	NotificationBooking     = "booking"
	NotificationAllocation  = "allocation"
	NotificationMaintenance = "maintenance"
	NotificationEscalation  = "escalation"
)

// Notification is an in-app feed item created as a side effect of booking,
// allocation and maintenance events. ActionRequired items stay highlighted
// in the feed until confirmed.
type Notification struct {
	ID                string     `json:"id,omitempty"`
	Type              string     `json:"type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	Priority          string     `json:"priority"`
	RelatedEntityID   string     `json:"related_entity_id,omitempty"`
	RelatedEntityType string     `json:"related_entity_type,omitempty"`
	Read              bool       `json:"read"`
	ActionRequired    bool       `json:"action_required"`
	ActionTaken       bool       `json:"action_taken,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedDate       time.Time  `json:"created_date,omitempty"`
}

// Expired reports whether the notification has an expiry in the past.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// BookingEmailData feeds the reservation confirmation email template.
type BookingEmailData struct {
	CustomerName    string
	ReservationCode string
	VehicleLabel    string
	PickupFormatted string
	ReturnFormatted string
	CurrentYear     int
}

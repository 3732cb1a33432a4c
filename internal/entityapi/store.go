// Package entityapi is the client for the entity store that owns all
// domain records. The hosted data API is the normal backend; a Postgres
// document store covers self-hosted deployments and an in-memory store
// covers tests.
package entityapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Entity type names as the store knows them.
const (
	EntityCar             = "Car"
	EntityReservation     = "Reservation"
	EntityQuote           = "Quote"
	EntityNotification    = "Notification"
	EntityCheckoutReport  = "CheckoutReport"
	EntityVehicleWorkflow = "VehicleWorkflow"
	EntityVehicleType     = "VehicleType"
	EntityLocation        = "Location"
	EntityGpsData         = "GpsData"
	EntityServiceTrigger  = "ServiceTrigger"
	EntitySetting         = "Setting"
)

var (
	// ErrNotFound is returned when an id does not exist in the store.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned by UpdateWhere when the guard no longer holds.
	ErrConflict = errors.New("conditional update failed")
)

// Document is an untyped entity record as the store returns it.
type Document = map[string]any

// Filter matches documents by exact field equality.
type Filter = map[string]any

// Store is the CRUD surface of the entity store. Sort specs use the hosted
// API convention: a field name, "-" prefixed for descending
// (e.g. "-created_date"). limit <= 0 means no limit.
//
// UpdateWhere applies fields only while guard still matches the current
// document, returning ErrConflict otherwise; it is the optimistic check
// that keeps two concurrent vehicle allocations from both succeeding.
// Delete exists for saga compensation in multi-step workflows.
type Store interface {
	List(ctx context.Context, entity, sort string) ([]Document, error)
	Filter(ctx context.Context, entity string, query Filter, sort string, limit int) ([]Document, error)
	Get(ctx context.Context, entity, id string) (Document, error)
	Create(ctx context.Context, entity string, fields Document) (Document, error)
	Update(ctx context.Context, entity, id string, fields Document) (Document, error)
	UpdateWhere(ctx context.Context, entity, id string, guard Filter, fields Document) (Document, error)
	Delete(ctx context.Context, entity, id string) error
}

// Decode maps a document onto a typed entity struct.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// ToDocument maps a typed entity struct onto a document, dropping the id
// field so the store keeps ownership of identity.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding entity: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding entity: %w", err)
	}
	delete(doc, "id")
	return doc, nil
}

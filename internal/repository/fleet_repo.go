package repository

import (
	"context"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
)

// FleetRepository loads and writes vehicles and their supporting entities
// (types, GPS samples, service triggers, locations, settings).
type FleetRepository struct {
	Store entityapi.Store
}

func NewFleetRepository(store entityapi.Store) *FleetRepository {
	return &FleetRepository{Store: store}
}

func (r *FleetRepository) ListVehicles(ctx context.Context) ([]entities.Vehicle, error) {
	docs, err := r.Store.List(ctx, entityapi.EntityCar, "-created_date")
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Vehicle](docs)
}

func (r *FleetRepository) GetVehicle(ctx context.Context, id string) (*entities.Vehicle, error) {
	doc, err := r.Store.Get(ctx, entityapi.EntityCar, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Vehicle](doc)
}

// AvailableVehiclesByCategory returns active, available vehicles of the
// given category. The active flag is checked in code because a missing
// flag counts as active.
func (r *FleetRepository) AvailableVehiclesByCategory(ctx context.Context, category string) ([]entities.Vehicle, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityCar, entityapi.Filter{
		"category": category,
		"status":   entities.VehicleAvailable,
	}, "", 0)
	if err != nil {
		return nil, err
	}
	vehicles, err := decodeAll[entities.Vehicle](docs)
	if err != nil {
		return nil, err
	}
	out := vehicles[:0]
	for _, v := range vehicles {
		if v.IsActive() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *FleetRepository) UpdateVehicle(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityCar, id, fields)
	return err
}

// UpdateVehicleIfStatus applies fields only while the vehicle still has
// fromStatus; entityapi.ErrConflict means another writer got there first.
func (r *FleetRepository) UpdateVehicleIfStatus(ctx context.Context, id, fromStatus string, fields entityapi.Document) error {
	_, err := r.Store.UpdateWhere(ctx, entityapi.EntityCar, id,
		entityapi.Filter{"status": fromStatus}, fields)
	return err
}

// ClaimVehicleForAllocation bumps the vehicle's allocation version, guarded
// on the version the allocator read and on the vehicle still being
// available. The guarded write mutates the guarded field, so of any number
// of concurrent claimants exactly one succeeds; the rest get
// entityapi.ErrConflict.
func (r *FleetRepository) ClaimVehicleForAllocation(ctx context.Context, id string, fromVersion int) error {
	_, err := r.Store.UpdateWhere(ctx, entityapi.EntityCar, id,
		entityapi.Filter{
			"status":             entities.VehicleAvailable,
			"allocation_version": fromVersion,
		},
		entityapi.Document{
			"allocation_version": fromVersion + 1,
			"last_allocated_at":  time.Now().UTC().Format(time.RFC3339),
		})
	return err
}

func (r *FleetRepository) ActiveVehicleTypes(ctx context.Context) ([]entities.VehicleType, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityVehicleType, entityapi.Filter{"active": true}, "name", 0)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.VehicleType](docs)
}

// LatestGps returns GPS samples newest first; callers keep the first sample
// seen per vehicle.
func (r *FleetRepository) LatestGps(ctx context.Context) ([]entities.GpsData, error) {
	docs, err := r.Store.List(ctx, entityapi.EntityGpsData, "-recorded_at")
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.GpsData](docs)
}

func (r *FleetRepository) ActiveServiceTriggers(ctx context.Context) ([]entities.ServiceTrigger, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityServiceTrigger, entityapi.Filter{"active": true}, "", 0)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.ServiceTrigger](docs)
}

func (r *FleetRepository) UpdateServiceTrigger(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityServiceTrigger, id, fields)
	return err
}

func (r *FleetRepository) ActiveLocations(ctx context.Context) ([]entities.Location, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityLocation, entityapi.Filter{"active": true}, "name", 0)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Location](docs)
}

// HomeBase returns the configured home base coordinates, or ok=false when
// no Setting entity exists.
func (r *FleetRepository) HomeBase(ctx context.Context) (lat, lng float64, ok bool, err error) {
	docs, err := r.Store.List(ctx, entityapi.EntitySetting, "")
	if err != nil {
		return 0, 0, false, err
	}
	if len(docs) == 0 {
		return 0, 0, false, nil
	}
	setting, err := decodeOne[entities.Setting](docs[0])
	if err != nil {
		return 0, 0, false, err
	}
	return setting.HomeBaseLat, setting.HomeBaseLng, true, nil
}

func (r *FleetRepository) CreateVehicle(ctx context.Context, v *entities.Vehicle) (*entities.Vehicle, error) {
	fields, err := entityapi.ToDocument(v)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityCar, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Vehicle](doc)
}

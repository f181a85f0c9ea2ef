package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	vehicleserrors "bikerent/internal/vehicles/errors"
	"bikerent/pkg/model"
)

type memoryVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*model.Vehicle
}

func NewMemoryVehicleRepository() VehicleRepository {
	return &memoryVehicleRepository{
		vehicles: make(map[string]*model.Vehicle),
	}
}

func cloneVehicle(v *model.Vehicle) *model.Vehicle {
	c := *v
	c.Locations = append([]string(nil), v.Locations...)
	return &c
}

func (r *memoryVehicleRepository) List(ctx context.Context) ([]*model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, cloneVehicle(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memoryVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vehicles[id]
	if !ok {
		return nil, vehicleserrors.ErrNotFound
	}
	return cloneVehicle(v), nil
}

func (r *memoryVehicleRepository) FindByNumber(ctx context.Context, number string) (*model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.vehicles {
		if v.Number == number {
			return cloneVehicle(v), nil
		}
	}
	return nil, vehicleserrors.ErrNotFound
}

func (r *memoryVehicleRepository) Insert(ctx context.Context, v *model.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.vehicles {
		if existing.Number == v.Number {
			return fmt.Errorf("%w: %s", vehicleserrors.ErrDuplicateNumber, v.Number)
		}
	}
	if _, ok := r.vehicles[v.ID]; ok {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrDuplicateNumber, v.ID)
	}

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	r.vehicles[v.ID] = cloneVehicle(v)
	return nil
}

func (r *memoryVehicleRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.vehicles)), nil
}

package service

import (
	"context"
	"errors"

	vehicleserrors "bikerent/internal/vehicles/errors"
	"bikerent/internal/vehicles/repository"
	"bikerent/pkg/config"
	apperrors "bikerent/pkg/errors"
	"bikerent/pkg/model"
)

type VehicleService interface {
	List(ctx context.Context) ([]*model.Vehicle, error)
	GetByID(ctx context.Context, id string) (*model.Vehicle, error)
}

type vehicleService struct {
	repo repository.VehicleRepository
	cfg  *config.Config
}

func NewVehicleService(repo repository.VehicleRepository, cfg *config.Config) VehicleService {
	return &vehicleService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *vehicleService) List(ctx context.Context) ([]*model.Vehicle, error) {
	vehicles, err := s.repo.List(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list vehicles", "error", err)
		return nil, apperrors.Internal("Failed to retrieve vehicles", err)
	}
	return vehicles, nil
}

func (s *vehicleService) GetByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Vehicle ID cannot be empty")
	}

	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Vehicle", id)
		}
		s.cfg.Log.Error("Failed to get vehicle by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve vehicle", err)
	}
	return v, nil
}

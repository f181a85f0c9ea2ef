// Package seed loads a fleet description from a TOML file and inserts the
// vehicles that are not in the catalog yet. Vehicles are matched by their
// normalized fleet number, so re-running a seed is a no-op.
package seed

import (
	"context"
	"errors"
	"fmt"

	vehicleserrors "bikerent/internal/vehicles/errors"
	"bikerent/internal/vehicles/repository"
	"bikerent/internal/vehicles/validator"
	"bikerent/pkg/logger"
	"bikerent/pkg/model"
	"bikerent/pkg/sanitizer"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

type VehicleEntry struct {
	Number           string   `toml:"number"`
	Name             string   `toml:"name"`
	PricePerDay      int64    `toml:"price_per_day"`
	IncludedKmPerDay int64    `toml:"included_km_per_day"`
	Locations        []string `toml:"locations"`
}

type Fleet struct {
	Vehicles []VehicleEntry `toml:"vehicles"`
}

type Report struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

func LoadFile(path string) (*Fleet, error) {
	var fleet Fleet
	if _, err := toml.DecodeFile(path, &fleet); err != nil {
		return nil, fmt.Errorf("failed to load fleet file: %w", err)
	}
	return &fleet, nil
}

func Decode(data string) (*Fleet, error) {
	var fleet Fleet
	if _, err := toml.Decode(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to decode fleet: %w", err)
	}
	return &fleet, nil
}

// Catalog converts the entries into normalized catalog records with fresh
// ids. Entries repeating an earlier number are dropped.
func (f *Fleet) Catalog() []*model.Vehicle {
	seen := make(map[string]bool, len(f.Vehicles))
	out := make([]*model.Vehicle, 0, len(f.Vehicles))
	for _, e := range f.Vehicles {
		number := sanitizer.NormalizeNumber(e.Number)
		if seen[number] {
			continue
		}
		seen[number] = true
		out = append(out, &model.Vehicle{
			ID:               uuid.NewString(),
			Number:           number,
			Name:             sanitizer.NormalizeName(e.Name),
			PricePerDay:      e.PricePerDay,
			IncludedKmPerDay: e.IncludedKmPerDay,
			Locations:        sanitizer.NormalizeLocations(e.Locations),
		})
	}
	return out
}

type Seeder struct {
	repo      repository.VehicleRepository
	validator *validator.VehicleValidator
	log       *logger.Logger
}

func NewSeeder(repo repository.VehicleRepository, v *validator.VehicleValidator, log *logger.Logger) *Seeder {
	return &Seeder{repo: repo, validator: v, log: log}
}

// Seed validates every vehicle before inserting any of them.
func (s *Seeder) Seed(ctx context.Context, fleet *Fleet) (Report, error) {
	var report Report

	vehicles := fleet.Catalog()
	for _, v := range vehicles {
		if err := s.validator.Validate(v); err != nil {
			return report, fmt.Errorf("vehicle %q: %w", v.Number, err)
		}
	}

	for _, v := range vehicles {
		_, err := s.repo.FindByNumber(ctx, v.Number)
		switch {
		case err == nil:
			report.Skipped++
			continue
		case !errors.Is(err, vehicleserrors.ErrNotFound):
			return report, err
		}

		if err := s.repo.Insert(ctx, v); err != nil {
			if errors.Is(err, vehicleserrors.ErrDuplicateNumber) {
				report.Skipped++
				continue
			}
			return report, err
		}
		report.Inserted++
		s.log.Info("Vehicle seeded", "id", v.ID, "number", v.Number, "locations", len(v.Locations))
	}

	s.log.Info("Fleet seeding finished", "inserted", report.Inserted, "skipped", report.Skipped)
	return report, nil
}

// Package availability answers "is vehicle V free at location L during
// window W" for a whole catalog in a single pass over the booking set.
package availability

import (
	"bikerent/internal/interval"
	"bikerent/internal/pricing"
	"bikerent/pkg/model"
)

type key struct {
	vehicleID string
	location  string
}

// Index partitions confirmed bookings by (vehicle, location). Pending and
// cancelled bookings never block a slot and are left out.
type Index struct {
	partitions map[key][]interval.Window
}

func NewIndex(bookings []*model.Booking) *Index {
	idx := &Index{partitions: make(map[key][]interval.Window)}
	for _, b := range bookings {
		idx.Add(b)
	}
	return idx
}

// Add indexes b if it is confirmed.
func (idx *Index) Add(b *model.Booking) {
	if b == nil || b.Status != model.StatusConfirmed {
		return
	}
	k := key{vehicleID: b.VehicleID, location: b.Location}
	idx.partitions[k] = append(idx.partitions[k], interval.Window{Start: b.StartTime, End: b.EndTime})
}

// Available reports whether no indexed booking for the pair overlaps w.
func (idx *Index) Available(vehicleID, location string, w interval.Window) bool {
	for _, booked := range idx.partitions[key{vehicleID: vehicleID, location: location}] {
		if interval.Overlaps(booked, w) {
			return false
		}
	}
	return true
}

// Result is the search answer for one vehicle.
type Result struct {
	Vehicle      *model.Vehicle    `json:"vehicle"`
	Availability map[string]bool   `json:"availability"`
	Price        int64             `json:"calculated_price"`
	IncludedKm   int64             `json:"calculated_included_km"`
	Duration     interval.Duration `json:"duration"`
	DurationText string            `json:"duration_text"`
}

// Compute returns one Result per vehicle in catalog order. The window is
// validated before any booking is looked at.
func Compute(vehicles []*model.Vehicle, bookings []*model.Booking, w interval.Window) ([]Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return NewIndex(bookings).Results(vehicles, w)
}

func (idx *Index) Results(vehicles []*model.Vehicle, w interval.Window) ([]Result, error) {
	results := make([]Result, 0, len(vehicles))
	for _, v := range vehicles {
		quote, err := pricing.Calculate(w, pricing.Rate{PerDay: v.PricePerDay, IncludedKmPerDay: v.IncludedKmPerDay})
		if err != nil {
			return nil, err
		}

		slots := make(map[string]bool, len(v.Locations))
		for _, loc := range v.Locations {
			slots[loc] = idx.Available(v.ID, loc, w)
		}

		results = append(results, Result{
			Vehicle:      v,
			Availability: slots,
			Price:        quote.Price,
			IncludedKm:   quote.IncludedKm,
			Duration:     quote.Duration,
			DurationText: quote.Duration.String(),
		})
	}
	return results, nil
}

package model

import "time"

type Vehicle struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	Number           string    `json:"number" bson:"number" validate:"required,min=1,max=32,fleetnumber"`
	Name             string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	PricePerDay      int64     `json:"price_per_day" bson:"price_per_day" validate:"min=0"`
	IncludedKmPerDay int64     `json:"included_km_per_day" bson:"included_km_per_day" validate:"min=0"`
	Locations        []string  `json:"locations" bson:"locations" validate:"required,min=1,max=50,unique,dive,required,max=100"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// HasLocation reports whether loc is one of the vehicle's configured locations.
func (v *Vehicle) HasLocation(loc string) bool {
	for _, l := range v.Locations {
		if l == loc {
			return true
		}
	}
	return false
}

package validator

import (
	"testing"

	"bikerent/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validVehicle() *model.Vehicle {
	return &model.Vehicle{
		ID:               "v1",
		Number:           "KA01AB1234",
		Name:             "City Cruiser",
		PricePerDay:      100,
		IncludedKmPerDay: 50,
		Locations:        []string{"Downtown", "Airport"},
	}
}

func TestVehicleValidator_Valid(t *testing.T) {
	assert.NoError(t, NewVehicleValidator().Validate(validVehicle()))
}

func TestVehicleValidator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Vehicle)
		field  string
	}{
		{name: "lower-case number", mutate: func(v *model.Vehicle) { v.Number = "ka01" }, field: "number"},
		{name: "missing name", mutate: func(v *model.Vehicle) { v.Name = "" }, field: "name"},
		{name: "negative price", mutate: func(v *model.Vehicle) { v.PricePerDay = -1 }, field: "price_per_day"},
		{name: "negative km", mutate: func(v *model.Vehicle) { v.IncludedKmPerDay = -5 }, field: "included_km_per_day"},
		{name: "no locations", mutate: func(v *model.Vehicle) { v.Locations = nil }, field: "locations"},
		{name: "duplicate locations", mutate: func(v *model.Vehicle) { v.Locations = []string{"A", "A"} }, field: "locations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validVehicle()
			tt.mutate(v)

			var errs ValidationErrors
			require.ErrorAs(t, NewVehicleValidator().Validate(v), &errs)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

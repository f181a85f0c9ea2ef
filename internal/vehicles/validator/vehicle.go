package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"bikerent/pkg/model"

	"github.com/go-playground/validator/v10"
)

var fleetNumberRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type VehicleValidator struct {
	validate *validator.Validate
}

func NewVehicleValidator() *VehicleValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	// Only fails on a programming error in the tag name.
	_ = v.RegisterValidation("fleetnumber", func(fl validator.FieldLevel) bool {
		return fleetNumberRegex.MatchString(fl.Field().String())
	})

	return &VehicleValidator{
		validate: v,
	}
}

func (v *VehicleValidator) Validate(vehicle *model.Vehicle) error {
	if err := v.validate.Struct(vehicle); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", err.Field())
		case "fleetnumber":
			message = fmt.Sprintf("%s must contain only upper-case letters, digits and dashes", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

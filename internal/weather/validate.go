package weather

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that also understands the "citycode" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("citycode", func(fl validator.FieldLevel) bool {
		return ValidCityCode(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("registering citycode validation: %v", err))
	}
	return v
}

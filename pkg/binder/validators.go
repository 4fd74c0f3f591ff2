package binder

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// notFutureYearValidator ensures an integer year is not after the current
// year. Zero passes so that the validator can be combined with omitempty or
// required.
func notFutureYearValidator(fl validator.FieldLevel) bool {
	year := fl.Field().Int()
	if year == 0 {
		return true
	}
	return year <= int64(time.Now().Year())
}

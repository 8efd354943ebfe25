package services

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	phoneCharsRegex = regexp.MustCompile(`^\+?[0-9\s().-]+$`)
	digitRegex      = regexp.MustCompile(`\d`)
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("phone_chars", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return phoneCharsRegex.MatchString(s) && len(digitRegex.FindAllString(s, -1)) >= 6
		})
	})
	return validate
}

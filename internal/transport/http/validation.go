package http

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	nationalIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,18}[A-Za-z0-9]$`)
	registerOnce      sync.Once
)

// registerValidators adds the custom binding rules to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("nationalid", func(fl validator.FieldLevel) bool {
			return nationalIDPattern.MatchString(fl.Field().String())
		})
	})
}

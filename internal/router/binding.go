package router

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/lifeflow-api/internal/model"
)

// RegisterValidations installs the custom binding tags used by request
// payloads. Safe to call more than once.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
		return model.BloodGroup(fl.Field().String()).Valid()
	})
	v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
		return model.Urgency(fl.Field().String()).Valid()
	})
}

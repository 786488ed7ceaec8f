package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator:
//   - role: one of student, teacher, admin
//   - selfrole: a role a user may pick at signup (student, teacher)
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warnf("binding engine is not go-playground/validator; custom tags unavailable")
			return
		}
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			_, ok := roles.Parse(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("selfrole", func(fl validator.FieldLevel) bool {
			r, ok := roles.Parse(fl.Field().String())
			return ok && r != roles.Admin
		})
	})
}

package handler

import (
	"errors"
	"sync"

	"stockroom/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request DTOs
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		err = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
			_, ok := model.ParseTaskStatus(fl.Field().String())
			return ok
		})
	})
	return err
}

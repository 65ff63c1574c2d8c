package server

import (
	"errors"
	"fmt"
	"sync"

	"newtab/search"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("engine", func(fl validator.FieldLevel) bool {
			return search.IsEngine(fl.Field().String())
		})
	})
	return validate
}

// formatValidationError reports the first failing field
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		e := validationErrors[0]
		return fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", e.Namespace(), e.Tag())
	}
	return err.Error()
}

// bindJSON decodes the request body into out and validates it
func bindJSON(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := getValidator().Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, formatValidationError(err))
	}
	return nil
}

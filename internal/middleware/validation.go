// internal/middleware/validation.go
package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/taskdesk/internal/models"
)

// InputValidator checks request payloads against their `validate` tags.
type InputValidator struct {
	validate *validator.Validate
}

func NewInputValidator() (*InputValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := RegisterCustomValidators(v); err != nil {
		return nil, err
	}
	return &InputValidator{validate: v}, nil
}

// RegisterCustomValidators registers the taskdesk specific tags.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("contact_email", validateContactEmail); err != nil {
		return err
	}
	if err := v.RegisterValidation("user_type", validateUserType); err != nil {
		return err
	}
	if err := v.RegisterValidation("task_status", validateTaskStatus); err != nil {
		return err
	}
	return v.RegisterValidation("task_priority", validateTaskPriority)
}

// validateContactEmail accepts anything with an @ and a dot.
func validateContactEmail(fl validator.FieldLevel) bool {
	email := fl.Field().String()
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

func validateUserType(fl validator.FieldLevel) bool {
	return models.ParseUserType(fl.Field().String()).Known
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return models.ParseTaskStatus(fl.Field().String()).Known
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	return models.ParseTaskPriority(fl.Field().String()).Known
}

// Struct validates in and converts failures to an InvalidArgument status
// naming the first offending field.
func (iv *InputValidator) Struct(in any) error {
	err := iv.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return status.Error(codes.InvalidArgument, describe(verrs[0]))
	}
	return status.Error(codes.InvalidArgument, err.Error())
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "contact_email":
		return fmt.Sprintf("%s is not a valid email address", field)
	case "user_type", "task_status", "task_priority":
		return fmt.Sprintf("%s has unknown value %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

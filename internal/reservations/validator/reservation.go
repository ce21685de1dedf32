package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

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
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields flattens the errors into the field→message map exposed at the
// HTTP boundary.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return fields
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	return &ReservationValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// Validate runs all field checks against the request and parses the
// category. The start instant must be strictly after now; it is checked
// here at request time and never re-validated on later reads.
func (v *ReservationValidator) Validate(req *model.ReservationRequest, now time.Time) (model.CarType, error) {
	var validationErrors ValidationErrors

	if err := v.validate.Struct(req); err != nil {
		var tagErrs validator.ValidationErrors
		if errors.As(err, &tagErrs) {
			validationErrors = append(validationErrors, v.translateValidationErrors(tagErrs)...)
		} else {
			return "", err
		}
	}

	var carType model.CarType
	if req.Category != "" {
		parsed, err := model.ParseCarType(req.Category)
		if err != nil {
			validationErrors = append(validationErrors, ValidationError{
				Field:   "category",
				Message: err.Error(),
			})
		} else {
			carType = parsed
		}
	}

	if !req.StartAt.IsZero() && !req.StartAt.After(now) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "startAt",
			Message: "startAt must be in the future",
		})
	}

	if len(validationErrors) > 0 {
		return "", validationErrors
	}
	return carType, nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := jsonField(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

func jsonField(structField string) string {
	switch structField {
	case "Category":
		return "category"
	case "StartAt":
		return "startAt"
	case "Days":
		return "days"
	}
	return structField
}

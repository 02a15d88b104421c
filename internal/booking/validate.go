package booking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"studiobook/internal/clock"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)
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

// StaffInput selects the engineer and services.
type StaffInput struct {
	StaffID  string   `json:"staffId"  validate:"required"`
	Services []string `json:"services" validate:"dive,required"`
}

// TimeInput selects the date and session window.
type TimeInput struct {
	Date      string `json:"date"      validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,time_of_day"`
	EndTime   string `json:"endTime"   validate:"required,time_of_day"`
}

// RoomInput selects the room.
type RoomInput struct {
	RoomID string `json:"roomId" validate:"required"`
}

// ContactInput carries the customer's contact details.
type ContactInput struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,contact_email"`
	Phone string `json:"phone" validate:"required,contact_phone"`
}

func (c *ContactInput) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

// NewValidator returns a validator with the booking flow's custom tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "contact_email", func(fl validator.FieldLevel) bool {
		return emailRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "contact_phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "time_of_day", func(fl validator.FieldLevel) bool {
		return validTimeOfDay(fl.Field().String())
	})
	return v
}

func validTimeOfDay(s string) bool {
	_, err := clock.Parse(s)
	return err == nil
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// Validate checks a step input and returns ValidationErrors on failure.
func Validate(v *validator.Validate, input any) error {
	if err := v.Struct(input); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		field := fieldName(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = requiredMessage(field)
		case "contact_email":
			message = "Invalid email format"
		case "contact_phone":
			message = "Invalid phone format (e.g., 123-456-7890)"
		case "time_of_day":
			message = fmt.Sprintf("%s must look like 9:00 AM", field)
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
		}

		out = append(out, ValidationError{Field: field, Message: message})
	}

	return out
}

func requiredMessage(field string) string {
	switch field {
	case "name":
		return "Name is required"
	case "email":
		return "Email is required"
	case "phone":
		return "Phone number is required"
	}
	return fmt.Sprintf("%s is required", field)
}

func fieldName(goName string) string {
	switch goName {
	case "StaffID":
		return "staffId"
	case "RoomID":
		return "roomId"
	}
	if goName == "" {
		return goName
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}

func fieldError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

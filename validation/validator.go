// Package validation holds the process-wide request validator shared by the
// HTTP controllers. Rules are expressed with go-playground/validator struct
// tags; field names in errors follow the json tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned when validating before Initialize.
var ErrNotInitialized = errors.New("validator not initialized")

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error is returned when input fails validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors extracts the failed fields from err.
func FieldErrors(err error) ([]FieldError, bool) {
	var verr *Error
	if !errors.As(err, &verr) {
		return nil, false
	}
	return verr.Fields, true
}

// Validator wraps a validator.Validate built once by Initialize.
type Validator struct {
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	validate *validator.Validate
}

// New returns an uninitialized Validator.
func New(logger *zap.SugaredLogger) *Validator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Validator{logger: logger}
}

// Initialize builds the underlying validator. Calling it again is a no-op.
func (v *Validator) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.validate != nil {
		return nil
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonTagName)
	v.validate = validate
	v.logger.Debugw("Validator initialized")
	return nil
}

// jsonTagName reports fields by their json name so errors match the payload.
func jsonTagName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func (v *Validator) get() (*validator.Validate, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.validate == nil {
		return nil, ErrNotInitialized
	}
	return v.validate, nil
}

// Struct validates s against its validate tags.
func (v *Validator) Struct(s interface{}) error {
	validate, err := v.get()
	if err != nil {
		return err
	}
	return convert(validate.Struct(s), "")
}

// Var validates a single value; name is used as the field name in errors.
func (v *Validator) Var(name string, value interface{}, tag string) error {
	validate, err := v.get()
	if err != nil {
		return err
	}
	return convert(validate.Var(value, tag), name)
}

func convert(err error, name string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: caller passed something that is not a struct
		return fmt.Errorf("validation could not run: %w", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if name != "" {
			field = name
		}
		fields = append(fields, FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: message(field, fe),
		})
	}
	return &Error{Fields: fields}
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

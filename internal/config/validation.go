// validation.go - fail-fast validation of environment settings.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects validation errors so all of them are reported at once.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// AddError records a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any error was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all recorded errors.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorString formats every recorded error, one per line.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// NotEmpty requires a non-empty value.
func (v *Validator) NotEmpty(key, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(key, "must not be empty")
	}
}

// Address validates a listen address of the form "host:port" or ":port".
func (v *Validator) Address(key, value string) {
	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		v.AddError(key, "must be host:port or :port")
		return
	}

	port, err := strconv.Atoi(value[idx+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// Postgres validates an optional PostgreSQL connection URL.
func (v *Validator) Postgres(key, value string) {
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "postgres://") && !strings.HasPrefix(value, "postgresql://") {
		v.AddError(key, "must be a valid PostgreSQL connection string")
	}
}

// Enum validates that a value is one of the allowed options.
func (v *Validator) Enum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// PositiveInt64 parses a positive integer, recording an error and
// returning 0 when the value is invalid.
func (v *Validator) PositiveInt64(key, value string) int64 {
	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return 0
	}

	if num <= 0 {
		v.AddError(key, "must be a positive integer")
		return 0
	}
	return num
}

// Duration parses a positive Go duration string such as "720h".
func (v *Validator) Duration(key, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 720h)")
		return 0
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
		return 0
	}
	return d
}

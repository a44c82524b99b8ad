package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateRequired returns an error if the value is empty after trimming.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateEmail returns an error if the value is not a plausible address.
// Intentionally loose: one @ with something on both sides. Deliverability
// is the SMTP provider's problem.
func ValidateEmail(field, value string) *ValidationError {
	at := strings.Index(value, "@")
	if at < 1 || at == len(value)-1 || strings.Count(value, "@") != 1 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		}
	}
	return nil
}

// ValidatePriority returns an error if the value is outside the 1-5
// priority scale.
func ValidatePriority(field string, value int) *ValidationError {
	if value < 1 || value > 5 {
		return &ValidationError{
			Field:   field,
			Message: "must be between 1 (low) and 5 (critical)",
		}
	}
	return nil
}

// ValidateHour returns an error if the value is not a valid hour of day.
func ValidateHour(field string, value int) *ValidationError {
	if value < 0 || value > 23 {
		return &ValidationError{
			Field:   field,
			Message: "must be between 0 and 23",
		}
	}
	return nil
}

// ValidateNonNegative returns an error if the value is negative.
func ValidateNonNegative(field string, value float64) *ValidationError {
	if value < 0 {
		return &ValidationError{
			Field:   field,
			Message: "must not be negative",
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range strings.ToUpper(value) {
		if !strings.ContainsRune(crockfordBase32, r) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError is returned when caller input is rejected before reaching storage.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

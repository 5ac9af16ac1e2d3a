package domain

import "fmt"

// FieldError reports an invalid entity field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func fieldError(field, msg string) error {
	return &FieldError{Field: field, Message: msg}
}

package directory

import (
	"errors"
	"fmt"
)

// ValidationError reports a draft or message the directory refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation on a ride id the directory does not hold.
type NotFoundError struct {
	RideID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ride %q not found", e.RideID)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

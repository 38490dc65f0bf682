package booking

import "errors"

// ErrSlotTaken means the requested interval overlaps a non-cancelled
// reservation. Maps to 409 at the HTTP boundary.
var ErrSlotTaken = errors.New("requested time slot is already taken")

// ValidationError carries a human-readable reason for rejecting a
// reservation submission. Maps to 400 at the HTTP boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

package storage

import "errors"

// ErrNilRecord is returned when a nil record is stored.
var ErrNilRecord = errors.New("cannot store nil metrics record")

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	RequestID string
}

func (e NotFoundError) Error() string {
	if e.RequestID == "" {
		return "metrics record not found"
	}

	return "metrics record not found: " + e.RequestID
}

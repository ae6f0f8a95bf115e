package attendance

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSession       = errors.New("invalid session, expected FN or AN")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrRegistrationRequired = errors.New("registration number required")
	ErrNotInBatch           = errors.New("student not in batch")
	ErrBatchRequired        = errors.New("batch id required")
	ErrInvalidRange         = errors.New("invalid date range")
	ErrNotFound             = errors.New("attendance record not found")
	ErrStoreUnavailable     = errors.New("attendance store unavailable")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

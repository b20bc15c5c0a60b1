package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Callers classify with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrExternalService     = errors.New("external service failure")
	ErrInvalidInput        = errors.New("invalid input")
	ErrPartialBatchFailure = errors.New("partial batch failure")
)

// NotFound reports a missing claim, remediation or collection
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Invalid reports a malformed identifier or out-of-bounds argument
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// External wraps a collaborator failure. NotFound and InvalidInput pass through unchanged
// so that a store reporting a missing record is not reclassified.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrExternalService) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}

// PartialFailure reports a batch that finished with failed items
func PartialFailure(failed, total int) error {
	return fmt.Errorf("%d of %d items failed: %w", failed, total, ErrPartialBatchFailure)
}

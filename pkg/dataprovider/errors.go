package dataprovider

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is matched by errors for operation types the
	// router does not recognize.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidParams is returned when params violate their invariants
	// (page < 1, perPage < 1, missing ids).
	ErrInvalidParams = errors.New("invalid params")
)

// UnsupportedOperationError names the operation that could not be routed.
type UnsupportedOperationError struct {
	Op OperationType
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported fetch action type %s", e.Op)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// InvalidParams wraps a params validation failure so that it matches
// ErrInvalidParams.
func InvalidParams(op OperationType, err error) error {
	return fmt.Errorf("%w for %s: %v", ErrInvalidParams, op, err)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedFormat = errors.New("unrecognized spreadsheet format")
	ErrIncompleteFields   = errors.New("required fields unresolved")
	ErrRowCoercion        = errors.New("row coercion failure")
	ErrDuplicateRecord    = errors.New("duplicate record")
	ErrRecordNotFound     = errors.New("record not found")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

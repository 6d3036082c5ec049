package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStatementNotFound   = errors.New("statement not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTemporary           = errors.New("temporary failure")
	ErrUnsupportedDocument = errors.New("unsupported document")
	ErrUnreadableDocument  = errors.New("unreadable document")
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

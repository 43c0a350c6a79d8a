package studio

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a dispatch while the feature area already has one
	// in flight.
	ErrBusy = errors.New("dispatch already in flight")

	// ErrNoSelection rejects a worksheet dispatch with nothing selected.
	ErrNoSelection = errors.New("no work items selected")

	ErrUnknownFeature  = errors.New("unknown feature area")
	ErrConfirmRequired = errors.New("confirmation required")

	// ErrInvalid wraps request validation failures.
	ErrInvalid = errors.New("invalid request")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

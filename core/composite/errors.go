package composite

import (
	"errors"
	"fmt"
)

// Sentinel kinds of InputError, matched with errors.Is.
var (
	ErrUnknownOutlet   = errors.New("unknown outlet")
	ErrInvalidWindow   = errors.New("invalid schedule window")
	ErrUnsupportedUnit = errors.New("unsupported charging rate unit")
)

// InputError reports a request that violates the caller contract. It is
// returned before any projection takes place.
type InputError struct {
	Kind error
	Msg  string
}

func (e *InputError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *InputError) Unwrap() error { return e.Kind }

func inputErrorf(kind error, format string, args ...any) error {
	return &InputError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

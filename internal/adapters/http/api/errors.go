package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrServe       = errors.New("http serve failed")
	ErrBadRequest  = errors.New("bad request")
	ErrCapacity    = errors.New("shortlist is full, remove a trainer before adding another")
	ErrUnavailable = errors.New("temporarily unavailable")
	ErrInternal    = errors.New("internal error")
)

// KindError carries the operation that failed, a sentinel kind for
// errors.Is, and the underlying cause when there is one.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind returns err classified as kind and attributed to op.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}


package engagement

import "errors"

// Sentinel error kinds for the lifecycle. These allow errors.Is from callers.
var (
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrCapacityExceeded    = errors.New("shortlist capacity exceeded")
	ErrUnknownPair         = errors.New("unknown pair")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrProjectorFailure    = errors.New("journey projection failed")
	ErrInvalidPair         = errors.New("client_id and trainer_id are required")
)

// ReasonError maps a rejection reason to its sentinel, or nil when the
// reason is not an error from the caller's point of view.
func ReasonError(r Reason) error {
	switch r {
	case ReasonInvalidTransition:
		return ErrInvalidTransition
	case ReasonCapacityExceeded:
		return ErrCapacityExceeded
	default:
		return nil
	}
}

package htlc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed amounts, mismatched batch array lengths,
	// non-positive lock durations and similar caller mistakes. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEstimationFailure is returned when the dry-run of a call reverts before submission.
	ErrEstimationFailure = errors.New("gas estimation failed")

	// ErrContractRevert is returned when the chain rejected the call: hashlock mismatch,
	// already settled commitment, or a call outside its time window. Never retried.
	ErrContractRevert = errors.New("contract reverted")

	// ErrNotFound is returned when the correlator found no matching log entry in the queried
	// transaction. Callers should look at a later transaction.
	ErrNotFound = errors.New("not found")

	// ErrDecode is returned when a matching log entry carries a malformed payload. Never retried.
	ErrDecode = errors.New("decode error")

	// ErrTimeout is returned when a confirmation wait exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrOrderingViolation is returned when the secret would be revealed before the counter-leg
	// lock has been confirmed.
	ErrOrderingViolation = errors.New("ordering violation")

	// ErrInvalidTransition is returned when a commitment is asked to leave a terminal state or
	// skip a state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// IsRetryable reports whether err may be retried by a read path. Contract reverts, decode
// failures and caller mistakes indicate a violated precondition and are surfaced instead.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrContractRevert),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrOrderingViolation),
		errors.Is(err, ErrInvalidTransition):
		return false
	default:
		return true
	}
}

// PendingLockError is returned by Lock when the lock was submitted but its confirmation was not
// observed. The lock may still land; Lock describes what was sent, without the id.
type PendingLockError struct {
	Lock LockResult
	Err  error
}

func (e *PendingLockError) Error() string {
	return fmt.Sprintf("lock %s unconfirmed: %v", e.Lock.Tx.Hash, e.Err)
}

func (e *PendingLockError) Unwrap() error {
	return e.Err
}

// PendingLock returns the submitted lock carried by err.
func PendingLock(err error) (LockResult, bool) {
	var pe *PendingLockError
	if errors.As(err, &pe) {
		return pe.Lock, true
	}

	return LockResult{}, false
}

package htlc

import (
	"fmt"
	"time"
)

// DefaultLockSeconds is used when a lock request does not name a duration.
const DefaultLockSeconds int64 = 3600

// Seconds is a helper to fill optional duration fields in requests.
func Seconds(n int64) *int64 {
	return &n
}

// GasLimit is a helper to fill optional gas limit fields in requests.
func GasLimit(n uint64) *uint64 {
	return &n
}

// ResolveLockSeconds applies the default when lockSeconds is nil and rejects non-positive
// values.
func ResolveLockSeconds(lockSeconds *int64) (int64, error) {
	if lockSeconds == nil {
		return DefaultLockSeconds, nil
	}
	if *lockSeconds <= 0 {
		return 0, fmt.Errorf("%w: lock seconds must be positive, got %d", ErrInvalidArgument, *lockSeconds)
	}

	return *lockSeconds, nil
}

// ComputeTimelock returns the absolute expiry now + lockSeconds, truncated to whole seconds as
// both chains store it.
func ComputeTimelock(now time.Time, lockSeconds *int64) (time.Time, error) {
	secs, err := ResolveLockSeconds(lockSeconds)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(now.Unix()+secs, 0).UTC(), nil
}

// CheckLegTimelocks enforces that the participant leg expires strictly before the initiator
// leg.
func CheckLegTimelocks(initiator, participant time.Time) error {
	if !participant.Before(initiator) {
		return fmt.Errorf("%w: participant timelock %s must be before initiator timelock %s",
			ErrInvalidArgument, participant.UTC().Format(time.RFC3339), initiator.UTC().Format(time.RFC3339))
	}

	return nil
}

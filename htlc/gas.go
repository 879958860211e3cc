package htlc

import (
	"context"
	"fmt"
)

// GasPolicy scales a dry-run estimate into the limit submitted with a transaction. Multipliers
// are whole percentages so the scaled value is exact: ceil(estimate * percent / 100).
type GasPolicy struct {
	// SinglePercent applies to lock, withdraw and refund.
	SinglePercent uint64 `json:"singlePercent" mapstructure:"single_percent" yaml:"single_percent"`
	// BatchPercent applies to batch withdraw.
	BatchPercent uint64 `json:"batchPercent" mapstructure:"batch_percent" yaml:"batch_percent"`
}

// DefaultGasPolicy applies the same 1.2x headroom to every call, batches included. A batch
// touches several commitments and is at least as exposed to state drift between estimation and
// inclusion as a single call.
var DefaultGasPolicy = GasPolicy{SinglePercent: 120, BatchPercent: 120}

// ReferenceGasPolicy scales single calls by 1.2x and submits batches with the raw estimate.
var ReferenceGasPolicy = GasPolicy{SinglePercent: 120, BatchPercent: 100}

// Validate rejects multipliers below 1.0.
func (p GasPolicy) Validate() error {
	if p.SinglePercent < 100 || p.BatchPercent < 100 {
		return fmt.Errorf("%w: gas multipliers must be >= 100%%, got single=%d batch=%d",
			ErrInvalidArgument, p.SinglePercent, p.BatchPercent)
	}

	return nil
}

// Single returns the scaled limit for a single-commitment call.
func (p GasPolicy) Single(estimate uint64) uint64 {
	return scale(estimate, p.SinglePercent)
}

// Batch returns the scaled limit for a batch call.
func (p GasPolicy) Batch(estimate uint64) uint64 {
	return scale(estimate, p.BatchPercent)
}

func scale(estimate, percent uint64) uint64 {
	if percent == 0 {
		percent = 100
	}

	return (estimate*percent + 99) / 100
}

// EstimateFunc performs a dry-run of a call and returns the raw gas estimate.
type EstimateFunc func(ctx context.Context) (uint64, error)

// ResolveLimit returns the explicit limit when one is given, without calling estimate.
// Otherwise it runs the dry-run and applies scaleFn. A failed dry-run is reported as
// ErrEstimationFailure.
func ResolveLimit(
	ctx context.Context, explicit *uint64, estimate EstimateFunc, scaleFn func(uint64) uint64,
) (uint64, error) {
	if explicit != nil {
		if *explicit == 0 {
			return 0, fmt.Errorf("%w: explicit gas limit must be positive", ErrInvalidArgument)
		}

		return *explicit, nil
	}

	raw, err := estimate(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEstimationFailure, err)
	}

	return scaleFn(raw), nil
}

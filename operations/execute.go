package operations

import (
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

var ErrNotSerializable = errors.New("data cannot be safely written to disk without data lost, " +
	"avoid type that can't be serialized")

// ExecuteConfig is the configuration for the ExecuteOperation function.
type ExecuteConfig struct {
	retryConfig RetryConfig
}

type ExecuteOption func(*ExecuteConfig)

type RetryConfig struct {
	// Enabled determines if the retry is enabled for the operation.
	Enabled bool

	// Policy is the retry policy to control the behavior of the retry.
	Policy RetryPolicy
}

func newDisabledRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled: false,
		Policy: RetryPolicy{
			MaxAttempts: 10,
			Delay:       time.Second,
		},
	}
}

// RetryPolicy defines the arguments to control the retry behavior.
type RetryPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
	// RetryIf filters retried errors. Defaults to htlc.IsRetryable.
	RetryIf func(error) bool
}

func (p RetryPolicy) options() []retry.Option {
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = htlc.IsRetryable
	}

	return []retry.Option{
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.Delay),
		retry.RetryIf(retryIf),
		retry.LastErrorOnly(true),
	}
}

// WithRetry is an ExecuteOption that enables the default retry for the operation.
func WithRetry() ExecuteOption {
	return func(c *ExecuteConfig) {
		c.retryConfig.Enabled = true
	}
}

// WithRetryConfig is an ExecuteOption that sets the retry configuration.
func WithRetryConfig(config RetryConfig) ExecuteOption {
	return func(c *ExecuteConfig) {
		c.retryConfig = config
	}
}

// ExecuteOperation executes an operation with the given input and dependencies.
// Execution will return the previous successful execution result and skip execution if there was a
// previous successful run found in the Reports.
// If previous unsuccessful execution was found, the execution will not be skipped.
//
// Operations that were skipped are not added to the reporter again.
//
// The returned error is the handler's own error, so callers can match it with errors.Is; the
// report only carries its message.
//
// The input and output must be JSON serializable.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
	opts ...ExecuteOption,
) (Report[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s input: %w", operation.def.ID, ErrNotSerializable)
	}

	if previousReport, found := loadPreviousSuccessfulReport[IN, OUT](b, operation.def, input); found {
		b.Logger.Infow("Operation already executed. Returning previous result", "id", operation.def.ID,
			"version", operation.def.Version, "report", previousReport.ID)

		return previousReport, nil
	}

	executeConfig := &ExecuteConfig{
		retryConfig: newDisabledRetryConfig(),
	}
	for _, opt := range opts {
		opt(executeConfig)
	}

	var output OUT
	var err error

	if executeConfig.retryConfig.Enabled {
		retryOpts := executeConfig.retryConfig.Policy.options()
		retryOpts = append(retryOpts, retry.Context(b.GetContext()))
		retryOpts = append(retryOpts, retry.OnRetry(func(attempt uint, err error) {
			b.Logger.Infow("Operation failed. Retrying...",
				"operation", operation.def.ID, "attempt", attempt, "error", err)
		}))

		output, err = retry.DoWithData(
			func() (OUT, error) {
				return operation.execute(b, deps, input)
			},
			retryOpts...,
		)
	} else {
		output, err = operation.execute(b, deps, input)
	}

	if err == nil && !IsSerializable(b.Logger, output) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s output: %w", operation.def.ID, ErrNotSerializable)
	}

	report := NewReport(operation.def, input, output, err)
	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		return Report[IN, OUT]{}, rerr
	}

	return report, err
}

// NewUnrecoverableError creates an error that stops a retried operation.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}

func loadPreviousSuccessfulReport[IN, OUT any](
	b Bundle, def Definition, input IN,
) (Report[IN, OUT], bool) {
	prevReports, err := b.reporter.GetReports()
	if err != nil {
		b.Logger.Errorw("Failed to get reports", "error", err)
		return Report[IN, OUT]{}, false
	}
	currentHash, err := uniqueHash(def, input)
	if err != nil {
		b.Logger.Errorw("Failed to construct unique hash", "error", err)
		return Report[IN, OUT]{}, false
	}

	for _, report := range prevReports {
		if report.Err != nil {
			continue
		}
		reportHash, err := uniqueHash(report.Def, report.Input)
		if err != nil {
			b.Logger.Errorw("Failed to construct unique hash for previous report", "error", err)
			continue
		}
		if reportHash != currentHash {
			continue
		}
		typedReport, ok := typeReport[IN, OUT](report)
		if !ok {
			b.Logger.Debugw("Previous execution found but its output doesn't match the operation",
				"id", def.ID, "report", report.ID)
			continue
		}

		return typedReport, true
	}

	return Report[IN, OUT]{}, false
}

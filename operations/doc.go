/*
Package operations journals the side effects of a swap.

Every step that touches a chain is an Operation: a versioned Definition plus a handler that
performs at most one side effect (one transaction or message send) or one read. Running an
operation through ExecuteOperation records a Report holding its input, output and error.

When a successful Report for the same definition and input is already known to the Reporter,
the handler is not run again and the recorded output is returned. A swap that is resumed with
its previous reports therefore never submits the same lock or redemption twice.

Retries are opt-in with WithRetry and are meant for reads (identifier resolution, secret
observation). Errors that htlc.IsRetryable rejects stop the retry loop.

# Basic Usage

	op := operations.NewOperation("evm-lock", semver.MustParse("1.0.0"), "lock on the evm leg", handler)

	b := operations.NewBundle(ctx, lggr, operations.NewMemoryReporter())
	report, err := operations.ExecuteOperation(b, op, adapter, input)
*/
package operations

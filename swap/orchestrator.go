// Package swap sequences a two-leg HTLC swap.
//
// The initiator locks first with timelock T1. The participant locks the same hashlock with a
// timelock T2 < T1. Only once the participant lock is confirmed is the secret revealed, by
// redeeming the participant leg; the initiator leg is then redeemed with the secret observed on
// the participant chain. A swap abandoned after the first lock waits for the timelocks and
// refunds whatever is still open.
//
// Every chain call runs as an operation journaled in the swap record, so a resumed swap never
// repeats a submission that already succeeded. A lock whose confirmation was not observed is
// kept as pending and settled against the chain before the leg is locked again or refunded.
package swap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/operations"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultRefundTimeout   = time.Hour
	DefaultResolveAttempts = 10
	DefaultResolveDelay    = 3 * time.Second
)

var errSwapBusy = errors.New("swap is already being driven")

// Leg bundles the capabilities of one chain. Only Adapter is required; Resolver is needed when
// the chain's Lock returns no id, Observer lets the participant learn the secret from chain
// data and Inspector verifies the counter-leg before the secret is revealed.
type Leg struct {
	Adapter   htlc.Adapter
	Resolver  htlc.IDResolver
	Observer  htlc.SecretObserver
	Inspector htlc.Inspector
}

// Config tunes the orchestrator.
type Config struct {
	// PollInterval between chain time and secret observation reads.
	PollInterval time.Duration
	// RefundTimeout bounds how long a refund waits past the timelock for chain time to catch up.
	RefundTimeout time.Duration
	// ResolveAttempts and ResolveDelay bound lock id resolution.
	ResolveAttempts uint
	ResolveDelay    time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RefundTimeout <= 0 {
		c.RefundTimeout = DefaultRefundTimeout
	}
	if c.ResolveAttempts == 0 {
		c.ResolveAttempts = DefaultResolveAttempts
	}
	if c.ResolveDelay <= 0 {
		c.ResolveDelay = DefaultResolveDelay
	}
}

// Orchestrator drives swap records through their phases.
type Orchestrator struct {
	legs  map[string]Leg
	store Store
	cfg   Config
	lggr  logger.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// New returns an orchestrator selecting legs by chain name.
func New(legs map[string]Leg, store Store, cfg Config, lggr logger.Logger) (*Orchestrator, error) {
	if len(legs) == 0 {
		return nil, errors.New("at least one chain leg is required")
	}
	for name, leg := range legs {
		if leg.Adapter == nil {
			return nil, fmt.Errorf("chain %q has no adapter", name)
		}
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if lggr == nil {
		lggr = logger.Nop()
	}
	cfg.applyDefaults()

	return &Orchestrator{
		legs:    legs,
		store:   store,
		cfg:     cfg,
		lggr:    lggr.Named("swap"),
		running: make(map[string]struct{}),
	}, nil
}

// Start records a new swap for plan. A zero secret is replaced by a fresh random one.
func (o *Orchestrator) Start(plan Plan, secret htlc.Secret) (*Record, error) {
	plan.applyDefaults()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	for _, chain := range []string{plan.Initiator.Chain, plan.Participant.Chain} {
		if _, ok := o.legs[chain]; !ok {
			return nil, fmt.Errorf("%w: chain %q is not configured", htlc.ErrInvalidArgument, chain)
		}
	}
	if secret.IsZero() {
		var err error
		if secret, err = htlc.NewSecret(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:          ksuid.New().String(),
		Phase:       PhaseNew,
		Hashlock:    secret.Hashlock(),
		Secret:      secret.Hex(),
		Initiator:   LegRecord{Terms: plan.Initiator},
		Participant: LegRecord{Terms: plan.Participant},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.Create(rec); err != nil {
		return nil, err
	}
	o.lggr.Infow("Swap planned", "swap", rec.ID, "hashlock", rec.Hashlock.Hex(),
		"initiator", plan.Initiator.Chain, "participant", plan.Participant.Chain)

	return rec, nil
}

// Get returns the stored record.
func (o *Orchestrator) Get(id string) (*Record, error) {
	return o.store.GetByID(id)
}

type stepFunc func(b operations.Bundle, rec *Record) error

// Run drives the swap until it completes, is refunded, fails or ctx ends. The error of the step
// that abandoned the swap is returned alongside the refunded record.
func (o *Orchestrator) Run(ctx context.Context, id string) (*Record, error) {
	var cause error
	for {
		rec, err := o.Step(ctx, id)
		if err != nil {
			if rec == nil || rec.Phase != PhaseRefunding || ctx.Err() != nil {
				return rec, errors.Join(cause, err)
			}
			if cause == nil {
				cause = err
			}
			o.lggr.Warnw("Swap abandoned, refunding open legs", "swap", id, "err", err)

			continue
		}
		if rec.Phase.Terminal() {
			if cause != nil {
				return rec, fmt.Errorf("swap %s %s: %w", id, rec.Phase, cause)
			}

			return rec, nil
		}
	}
}

// Step performs the single transition due for the swap's phase.
func (o *Orchestrator) Step(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, func(b operations.Bundle, rec *Record) error {
		switch rec.Phase {
		case PhaseNew:
			return o.lockInitiator(b, rec)
		case PhaseInitiatorLocked:
			return o.lockParticipant(b, rec)
		case PhaseParticipantLocked:
			return o.reveal(b, rec)
		case PhaseRevealed:
			return o.redeemInitiator(b, rec)
		case PhaseRefunding:
			return o.refundOpen(b, rec)
		default:
			return fmt.Errorf("%w: swap is %s", htlc.ErrInvalidTransition, rec.Phase)
		}
	})
}

// LockInitiator locks the initiator leg and recovers its id.
func (o *Orchestrator) LockInitiator(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, o.lockInitiator)
}

// LockParticipant locks and verifies the participant leg.
func (o *Orchestrator) LockParticipant(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, o.lockParticipant)
}

// Reveal redeems the participant leg, publishing the secret. It fails with
// htlc.ErrOrderingViolation unless the participant lock has been confirmed.
func (o *Orchestrator) Reveal(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, o.reveal)
}

// RedeemInitiator redeems the initiator leg with the secret observed on the participant chain.
func (o *Orchestrator) RedeemInitiator(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, o.redeemInitiator)
}

// Abandon gives the swap up: open legs are refunded once their timelocks pass.
func (o *Orchestrator) Abandon(ctx context.Context, id string) (*Record, error) {
	return o.apply(ctx, id, func(b operations.Bundle, rec *Record) error {
		if rec.Phase.Terminal() {
			return fmt.Errorf("%w: swap is %s", htlc.ErrInvalidTransition, rec.Phase)
		}
		if rec.Phase == PhaseNew && rec.Initiator.Lock == nil && rec.Initiator.Pending == nil {
			rec.Phase = PhaseRefunded
			return nil
		}
		rec.Phase = PhaseRefunding

		return o.refundOpen(b, rec)
	})
}

// apply loads the record, runs step with a journaling bundle and persists the outcome. A step
// failing once the initiator leg is locked, or may be, moves the swap to PhaseRefunding, a
// failed first lock or refund to PhaseFailed. Guard failures and cancellation leave the phase
// untouched.
func (o *Orchestrator) apply(ctx context.Context, id string, step stepFunc) (*Record, error) {
	if err := o.acquire(id); err != nil {
		return nil, err
	}
	defer o.release(id)

	rec, err := o.store.GetByID(id)
	if err != nil {
		return nil, err
	}

	reporter := operations.HookReporter{
		Reporter: operations.NewMemoryReporter(operations.WithReports(rec.Reports)),
		OnAdd: func(r operations.Report[any, any]) error {
			rec.Reports = append(rec.Reports, r)
			rec.UpdatedAt = time.Now().UTC()

			return o.store.Update(rec)
		},
	}
	b := operations.NewBundle(func() context.Context { return ctx }, o.lggr.With("swap", id), reporter)

	before := rec.Phase
	stepErr := step(b, rec)
	if stepErr != nil {
		switch {
		case errors.Is(stepErr, htlc.ErrOrderingViolation), errors.Is(stepErr, htlc.ErrInvalidTransition):
			return rec, stepErr
		case ctx.Err() != nil:
			// resumable
		case before == PhaseNew && rec.Initiator.Lock == nil && rec.Initiator.Pending == nil,
			before == PhaseRefunding:
			rec.Phase = PhaseFailed
			rec.Error = stepErr.Error()
		case !before.Terminal():
			rec.Phase = PhaseRefunding
			if rec.Error == "" {
				rec.Error = stepErr.Error()
			}
		}
	}
	rec.UpdatedAt = time.Now().UTC()
	if err = o.store.Update(rec); err != nil {
		return rec, errors.Join(stepErr, fmt.Errorf("failed to persist swap %s: %w", id, err))
	}
	if stepErr == nil && rec.Phase != before {
		o.lggr.Infow("Swap advanced", "swap", id, "from", before, "to", rec.Phase)
	}

	return rec, stepErr
}

func (o *Orchestrator) acquire(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[id]; ok {
		return fmt.Errorf("%s: %w", id, errSwapBusy)
	}
	o.running[id] = struct{}{}

	return nil
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}

func (o *Orchestrator) leg(rec *Record, role Role) (Leg, error) {
	chain := rec.Leg(role).Terms.Chain
	leg, ok := o.legs[chain]
	if !ok {
		return Leg{}, fmt.Errorf("%w: chain %q is not configured", htlc.ErrInvalidArgument, chain)
	}

	return leg, nil
}

// lock sends the leg's lock and recovers its id. A pending lock from an earlier attempt is
// settled first and the lock is only sent again once the chain rejected the earlier one.
func (o *Orchestrator) lock(b operations.Bundle, rec *Record, role Role, leg Leg) error {
	lr := rec.Leg(role)
	if lr.Pending != nil {
		landed, err := o.recoverLock(b, rec, role, leg)
		if err != nil {
			return err
		}
		if landed {
			return nil
		}
	}

	report, err := operations.ExecuteOperation(b, opLock, leg, lockInput{
		Swap:     rec.ID,
		Role:     role,
		Hashlock: rec.Hashlock,
		Terms:    lr.Terms,
	})
	if err != nil {
		if pending, ok := htlc.PendingLock(err); ok {
			lr.Pending = &pending
		} else if interrupted(b.GetContext(), err) {
			lr.Pending = &htlc.LockResult{Hashlock: rec.Hashlock}
		}

		return fmt.Errorf("%s lock: %w", role, err)
	}
	res := report.Output
	lr.Lock = &res
	if !res.ID.IsZero() {
		lr.ID = res.ID
		return nil
	}

	return o.resolveID(b, rec, role, leg)
}

// resolveID recovers the id of a lock whose chain did not return it.
func (o *Orchestrator) resolveID(b operations.Bundle, rec *Record, role Role, leg Leg) error {
	lr := rec.Leg(role)
	report, err := operations.ExecuteOperation(b, opResolveID, leg, resolveInput{
		Swap: rec.ID, Role: role, Lock: *lr.Lock,
	}, o.resolveRetry())
	if err != nil {
		return fmt.Errorf("%s lock id: %w", role, err)
	}
	lr.ID = report.Output

	return nil
}

// recoverLock settles the pending lock of role. It reports whether the lock landed; an error
// means its outcome is still unknown.
func (o *Orchestrator) recoverLock(b operations.Bundle, rec *Record, role Role, leg Leg) (bool, error) {
	lr := rec.Leg(role)
	pending := *lr.Pending
	report, err := operations.ExecuteOperation(b, opRecoverLock, leg, recoverInput{
		Swap: rec.ID, Role: role, Lock: pending,
	}, o.resolveRetry())
	switch {
	case err == nil:
		res := report.Output
		lr.Lock = &res
		lr.ID = res.ID
		lr.Pending = nil
		b.Logger.Infow("Pending lock landed", "role", role, "id", res.ID.Hex(), "tx", res.Tx.Hash)

		return true, nil
	case errors.Is(err, htlc.ErrContractRevert):
		lr.Pending = nil
		b.Logger.Warnw("Pending lock was rejected", "role", role, "tx", pending.Tx.Hash, "err", err)

		return false, nil
	default:
		return false, fmt.Errorf("%s lock outcome unknown: %w", role, err)
	}
}

func (o *Orchestrator) resolveRetry() operations.ExecuteOption {
	return operations.WithRetryConfig(operations.RetryConfig{
		Enabled: true,
		Policy:  operations.RetryPolicy{MaxAttempts: o.cfg.ResolveAttempts, Delay: o.cfg.ResolveDelay},
	})
}

// interrupted reports whether err may have cut a lock short after it was sent.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, htlc.ErrTimeout)
}

func (o *Orchestrator) lockInitiator(b operations.Bundle, rec *Record) error {
	if rec.Phase != PhaseNew {
		return fmt.Errorf("%w: initiator lock from %s", htlc.ErrInvalidTransition, rec.Phase)
	}
	leg, err := o.leg(rec, RoleInitiator)
	if err != nil {
		return err
	}
	if err = o.lock(b, rec, RoleInitiator, leg); err != nil {
		return err
	}
	rec.Initiator.Confirmed = true
	rec.Phase = PhaseInitiatorLocked
	b.Logger.Infow("Initiator leg locked", "id", rec.Initiator.ID.Hex(),
		"timelock", rec.Initiator.Lock.Timelock.Unix())

	return nil
}

func (o *Orchestrator) lockParticipant(b operations.Bundle, rec *Record) error {
	switch rec.Phase {
	case PhaseNew:
		return fmt.Errorf("%w: initiator leg is not locked", htlc.ErrOrderingViolation)
	case PhaseInitiatorLocked:
	default:
		return fmt.Errorf("%w: participant lock from %s", htlc.ErrInvalidTransition, rec.Phase)
	}
	leg, err := o.leg(rec, RoleParticipant)
	if err != nil {
		return err
	}
	t1 := rec.Initiator.Lock.Timelock

	// refuse before sending when the participant timelock would not expire first
	if rec.Participant.Lock == nil && rec.Participant.Pending == nil {
		now, err := leg.Adapter.ChainTime(b.GetContext())
		if err != nil {
			return fmt.Errorf("participant chain time: %w", err)
		}
		t2, err := htlc.ComputeTimelock(now, htlc.Seconds(rec.Participant.Terms.LockSeconds))
		if err != nil {
			return err
		}
		if err = htlc.CheckLegTimelocks(t1, t2); err != nil {
			return err
		}
	}

	if err = o.lock(b, rec, RoleParticipant, leg); err != nil {
		return err
	}
	if err = htlc.CheckLegTimelocks(t1, rec.Participant.Lock.Timelock); err != nil {
		return err
	}
	if err = o.verifyParticipant(b, rec, leg); err != nil {
		return err
	}
	rec.Participant.Confirmed = true
	rec.Phase = PhaseParticipantLocked
	b.Logger.Infow("Participant leg locked", "id", rec.Participant.ID.Hex(),
		"timelock", rec.Participant.Lock.Timelock.Unix())

	return nil
}

// verifyParticipant reads the participant commitment back when the chain supports it.
func (o *Orchestrator) verifyParticipant(b operations.Bundle, rec *Record, leg Leg) error {
	if leg.Inspector == nil {
		return nil
	}
	c, err := leg.Inspector.Commitment(b.GetContext(), rec.Participant.ID)
	if err != nil {
		return fmt.Errorf("participant commitment: %w", err)
	}
	lock := rec.Participant.Lock
	switch {
	case c.State != htlc.StateLocked:
		return fmt.Errorf("%w: participant commitment is %s", htlc.ErrContractRevert, c.State)
	case c.Hashlock != rec.Hashlock:
		return fmt.Errorf("%w: participant commitment hashlock %s, want %s", htlc.ErrContractRevert, c.Hashlock, rec.Hashlock)
	case !c.Timelock.Equal(lock.Timelock):
		return fmt.Errorf("%w: participant commitment timelock %d, want %d", htlc.ErrContractRevert,
			c.Timelock.Unix(), lock.Timelock.Unix())
	case lock.Amount != nil && c.Amount != nil && c.Amount.Cmp(lock.Amount) != 0:
		return fmt.Errorf("%w: participant commitment amount %s, want %s", htlc.ErrContractRevert, c.Amount, lock.Amount)
	}

	return nil
}

func (o *Orchestrator) reveal(b operations.Bundle, rec *Record) error {
	switch rec.Phase {
	case PhaseNew, PhaseInitiatorLocked:
		return fmt.Errorf("%w: secret can't be revealed before the participant lock is confirmed", htlc.ErrOrderingViolation)
	case PhaseParticipantLocked:
		if !rec.Participant.Confirmed {
			return fmt.Errorf("%w: participant lock is not confirmed", htlc.ErrOrderingViolation)
		}
	default:
		return fmt.Errorf("%w: reveal from %s", htlc.ErrInvalidTransition, rec.Phase)
	}
	if rec.Secret == "" {
		return fmt.Errorf("%w: secret is not known to this party", htlc.ErrInvalidArgument)
	}
	leg, err := o.leg(rec, RoleParticipant)
	if err != nil {
		return err
	}
	now, err := leg.Adapter.ChainTime(b.GetContext())
	if err != nil {
		return fmt.Errorf("participant chain time: %w", err)
	}
	if !now.Before(rec.Participant.Lock.Timelock) {
		return fmt.Errorf("%w: participant leg expired at %s", htlc.ErrTimeout,
			rec.Participant.Lock.Timelock.Format(time.RFC3339))
	}

	report, err := operations.ExecuteOperation(b, opWithdraw, leg, withdrawInput{
		Swap:     rec.ID,
		Role:     RoleParticipant,
		ID:       rec.Participant.ID,
		Secret:   rec.Secret,
		GasLimit: rec.Participant.Terms.GasLimit,
	})
	if err != nil {
		return fmt.Errorf("participant redeem: %w", err)
	}
	tx := report.Output.Tx
	rec.Participant.Redeemed = &tx
	rec.Phase = PhaseRevealed
	b.Logger.Infow("Secret revealed", "id", rec.Participant.ID.Hex(), "tx", tx.Hash)

	return nil
}

func (o *Orchestrator) redeemInitiator(b operations.Bundle, rec *Record) error {
	switch rec.Phase {
	case PhaseNew, PhaseInitiatorLocked, PhaseParticipantLocked:
		return fmt.Errorf("%w: secret has not been revealed", htlc.ErrOrderingViolation)
	case PhaseRevealed:
	default:
		return fmt.Errorf("%w: initiator redeem from %s", htlc.ErrInvalidTransition, rec.Phase)
	}
	ileg, err := o.leg(rec, RoleInitiator)
	if err != nil {
		return err
	}
	pleg, err := o.leg(rec, RoleParticipant)
	if err != nil {
		return err
	}

	secret, err := o.observeSecret(b, rec, ileg, pleg)
	if err != nil {
		return err
	}

	report, err := operations.ExecuteOperation(b, opWithdraw, ileg, withdrawInput{
		Swap:     rec.ID,
		Role:     RoleInitiator,
		ID:       rec.Initiator.ID,
		Secret:   secret.Hex(),
		GasLimit: rec.Initiator.Terms.GasLimit,
	})
	if err != nil {
		return fmt.Errorf("initiator redeem: %w", err)
	}
	tx := report.Output.Tx
	rec.Initiator.Redeemed = &tx
	rec.Phase = PhaseCompleted
	b.Logger.Infow("Initiator leg redeemed", "id", rec.Initiator.ID.Hex(), "tx", tx.Hash)

	return nil
}

// observeSecret waits for the secret to appear on the participant chain, up to the initiator
// timelock. Without an observer the recorded secret is used.
func (o *Orchestrator) observeSecret(b operations.Bundle, rec *Record, ileg, pleg Leg) (htlc.Secret, error) {
	if pleg.Observer == nil {
		if rec.Secret == "" {
			return htlc.Secret{}, fmt.Errorf("%w: no secret observer for %s and no recorded secret",
				htlc.ErrInvalidArgument, rec.Participant.Terms.Chain)
		}

		return htlc.ParseSecret(rec.Secret)
	}

	ctx := b.GetContext()
	deadline, err := o.deadline(ctx, ileg, rec.Initiator.Lock.Timelock, 0)
	if err != nil {
		return htlc.Secret{}, err
	}

	var secret htlc.Secret
	err = htlc.PollUntil(ctx, deadline, o.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		s, oerr := pleg.Observer.ObserveSecret(ctx, rec.Participant.ID, rec.Hashlock)
		switch {
		case oerr == nil:
			secret = s
			return true, nil
		case htlc.IsRetryable(oerr):
			b.Logger.Debugw("Secret not observed yet", "id", rec.Participant.ID.Hex(), "err", oerr)
			return false, nil
		default:
			return false, oerr
		}
	})
	if err != nil {
		return htlc.Secret{}, fmt.Errorf("observe secret: %w", err)
	}

	return secret, nil
}

// refundOpen refunds every open leg, the participant first since it expires first. Pending
// locks are settled first; one whose outcome stays unknown keeps the swap from reaching
// PhaseRefunded, though the other leg is still refunded.
func (o *Orchestrator) refundOpen(b operations.Bundle, rec *Record) error {
	if rec.Phase != PhaseRefunding {
		return fmt.Errorf("%w: refund from %s", htlc.ErrInvalidTransition, rec.Phase)
	}
	var unsettled error
	for _, role := range []Role{RoleParticipant, RoleInitiator} {
		lr := rec.Leg(role)
		if !lr.Open() && lr.Pending == nil {
			continue
		}
		leg, err := o.leg(rec, role)
		if err != nil {
			return err
		}
		if lr.Pending != nil {
			if _, err = o.recoverLock(b, rec, role, leg); err != nil {
				unsettled = errors.Join(unsettled, err)
				continue
			}
			if !lr.Open() {
				continue
			}
		}
		if lr.ID.IsZero() {
			if err = o.resolveID(b, rec, role, leg); err != nil {
				unsettled = errors.Join(unsettled, err)
				continue
			}
		}
		if err = o.waitUntil(b, leg, lr.Lock.Timelock); err != nil {
			return fmt.Errorf("%s refund window: %w", role, err)
		}
		report, err := operations.ExecuteOperation(b, opRefund, leg, refundInput{
			Swap:      rec.ID,
			Role:      role,
			ID:        lr.ID,
			NotBefore: lr.Lock.Timelock,
			GasLimit:  lr.Terms.GasLimit,
		})
		if err != nil {
			return fmt.Errorf("%s refund: %w", role, err)
		}
		tx := report.Output.Tx
		lr.Refunded = &tx
		b.Logger.Infow("Leg refunded", "role", role, "id", lr.ID.Hex(), "tx", tx.Hash)
	}
	if unsettled != nil {
		return unsettled
	}
	rec.Phase = PhaseRefunded

	return nil
}

// waitUntil blocks until the leg's chain time reaches t.
func (o *Orchestrator) waitUntil(b operations.Bundle, leg Leg, t time.Time) error {
	ctx := b.GetContext()
	deadline, err := o.deadline(ctx, leg, t, o.cfg.RefundTimeout)
	if err != nil {
		return err
	}

	return htlc.PollUntil(ctx, deadline, o.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		now, err := leg.Adapter.ChainTime(ctx)
		if err != nil {
			b.Logger.Debugw("Chain time read failed, retrying", "err", err)
			return false, nil
		}

		return !now.Before(t), nil
	})
}

// deadline maps the chain instant t, plus grace, to wall clock time.
func (o *Orchestrator) deadline(ctx context.Context, leg Leg, t time.Time, grace time.Duration) (time.Time, error) {
	now, err := leg.Adapter.ChainTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("chain time: %w", err)
	}
	remaining := max(t.Sub(now), 0)

	return time.Now().Add(remaining + grace), nil
}

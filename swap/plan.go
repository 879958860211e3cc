package swap

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// Terms describe what one leg locks.
type Terms struct {
	// Chain selects the leg's adapter, e.g. "evm" or "ton".
	Chain  string     `json:"chain" toml:"chain"`
	Route  htlc.Route `json:"route" toml:"route"`
	Amount string     `json:"amount" toml:"amount"`
	// LockSeconds is added to chain time to form the timelock.
	LockSeconds int64 `json:"lockSeconds" toml:"lock_seconds"`
	// GasLimit skips estimation when set.
	GasLimit uint64 `json:"gasLimit,omitempty" toml:"gas_limit"`
}

// Plan is a two-leg swap: the initiator locks first and the participant's lock must expire
// before the initiator's.
type Plan struct {
	Initiator   Terms `toml:"initiator"`
	Participant Terms `toml:"participant"`
}

// LoadPlan reads a TOML plan file.
func LoadPlan(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan: %w", err)
	}

	return ParsePlan(b)
}

// ParsePlan decodes a TOML plan and applies defaults.
func ParsePlan(b []byte) (Plan, error) {
	var p Plan
	if err := toml.Unmarshal(b, &p); err != nil {
		return Plan{}, fmt.Errorf("%w: plan: %w", htlc.ErrInvalidArgument, err)
	}
	p.applyDefaults()

	return p, p.Validate()
}

func (p *Plan) applyDefaults() {
	if p.Initiator.LockSeconds == 0 {
		p.Initiator.LockSeconds = htlc.DefaultLockSeconds
	}
	if p.Participant.LockSeconds == 0 {
		p.Participant.LockSeconds = p.Initiator.LockSeconds / 2
	}
}

// Validate checks both legs. The participant's lock period must be shorter than the
// initiator's; the timelocks themselves are checked against chain time when locking.
func (p Plan) Validate() error {
	var errs []error
	for _, leg := range []struct {
		role  Role
		terms Terms
	}{{RoleInitiator, p.Initiator}, {RoleParticipant, p.Participant}} {
		if leg.terms.Chain == "" {
			errs = append(errs, fmt.Errorf("%s: chain is required", leg.role))
		}
		if leg.terms.Amount == "" {
			errs = append(errs, fmt.Errorf("%s: amount is required", leg.role))
		}
		if _, err := htlc.ResolveLockSeconds(&leg.terms.LockSeconds); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", leg.role, err))
		}
	}
	if p.Participant.LockSeconds >= p.Initiator.LockSeconds {
		errs = append(errs, fmt.Errorf("participant lock_seconds %d must be below initiator lock_seconds %d",
			p.Participant.LockSeconds, p.Initiator.LockSeconds))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", htlc.ErrInvalidArgument, err)
	}

	return nil
}

func (t Terms) gasLimit() *uint64 {
	if t.GasLimit == 0 {
		return nil
	}

	return htlc.GasLimit(t.GasLimit)
}

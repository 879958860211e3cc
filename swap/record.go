package swap

import (
	"time"

	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/operations"
)

// Phase is the protocol position of a swap.
type Phase string

const (
	// PhaseNew is a planned swap with nothing locked.
	PhaseNew Phase = "NEW"
	// PhaseInitiatorLocked means the initiator leg is locked and its id is known.
	PhaseInitiatorLocked Phase = "INITIATOR_LOCKED"
	// PhaseParticipantLocked means the participant leg is locked under the same hashlock,
	// expires before the initiator leg and has been verified.
	PhaseParticipantLocked Phase = "PARTICIPANT_LOCKED"
	// PhaseRevealed means the participant leg was redeemed and the secret is public.
	PhaseRevealed Phase = "SECRET_REVEALED"
	// PhaseCompleted means both legs were redeemed.
	PhaseCompleted Phase = "COMPLETED"
	// PhaseRefunding means the swap was abandoned and open legs await their refund windows.
	PhaseRefunding Phase = "REFUNDING"
	// PhaseRefunded means every open leg was refunded.
	PhaseRefunded Phase = "REFUNDED"
	// PhaseFailed needs an operator: a lock may or may not have landed.
	PhaseFailed Phase = "FAILED"
)

// Terminal reports whether the orchestrator has nothing left to do.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseRefunded || p == PhaseFailed
}

// Role names the two legs.
type Role string

const (
	RoleInitiator   Role = "initiator"
	RoleParticipant Role = "participant"
)

// Record is the persisted state of one swap.
type Record struct {
	ID       string        `json:"id"`
	Phase    Phase         `json:"phase"`
	Hashlock htlc.Hashlock `json:"hashlock"`
	// Secret is the hex preimage, present on the initiator's side. It is persisted so a swap
	// can be resumed and is never logged.
	Secret      string    `json:"secret,omitempty"`
	Initiator   LegRecord `json:"initiator"`
	Participant LegRecord `json:"participant"`
	// Reports journals every executed operation.
	Reports   []operations.Report[any, any] `json:"reports,omitempty"`
	Error     string                        `json:"error,omitempty"`
	CreatedAt time.Time                     `json:"createdAt"`
	UpdatedAt time.Time                     `json:"updatedAt"`
}

// LegRecord is the state of one leg.
type LegRecord struct {
	Terms Terms            `json:"terms"`
	ID    htlc.ID          `json:"id"`
	Lock  *htlc.LockResult `json:"lock,omitempty"`
	// Confirmed is set once the lock was verified on chain.
	Confirmed bool        `json:"confirmed"`
	Redeemed  *htlc.TxRef `json:"redeemed,omitempty"`
	Refunded  *htlc.TxRef `json:"refunded,omitempty"`
	// Pending is a lock that was submitted, or may have been, without a confirmation. It must
	// be settled against the chain before the leg is locked again or the swap is closed.
	Pending *htlc.LockResult `json:"pending,omitempty"`
}

// Open reports whether the leg holds locked value that was neither redeemed nor refunded.
func (l LegRecord) Open() bool {
	return l.Lock != nil && l.Redeemed == nil && l.Refunded == nil
}

// Leg returns the record of role.
func (r *Record) Leg(role Role) *LegRecord {
	if role == RoleParticipant {
		return &r.Participant
	}

	return &r.Initiator
}

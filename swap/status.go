package swap

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Status is the operator view of a swap. It never carries the secret.
type Status struct {
	ID          string    `yaml:"id"`
	Phase       Phase     `yaml:"phase"`
	Hashlock    string    `yaml:"hashlock"`
	Initiator   LegStatus `yaml:"initiator"`
	Participant LegStatus `yaml:"participant"`
	Operations  int       `yaml:"operations"`
	Error       string    `yaml:"error,omitempty"`
	UpdatedAt   time.Time `yaml:"updatedAt"`
}

// LegStatus summarizes one leg.
type LegStatus struct {
	Chain     string `yaml:"chain"`
	Amount    string `yaml:"amount"`
	ID        string `yaml:"id,omitempty"`
	Timelock  string `yaml:"timelock,omitempty"`
	LockTx    string `yaml:"lockTx,omitempty"`
	Confirmed bool   `yaml:"confirmed"`
	RedeemTx  string `yaml:"redeemTx,omitempty"`
	RefundTx  string `yaml:"refundTx,omitempty"`
	// PendingTx is the unconfirmed lock, "unknown" when it was interrupted before a
	// transaction was recorded.
	PendingTx string `yaml:"pendingTx,omitempty"`
}

// NewStatus builds the status view of rec.
func NewStatus(rec *Record) Status {
	return Status{
		ID:          rec.ID,
		Phase:       rec.Phase,
		Hashlock:    rec.Hashlock.Hex(),
		Initiator:   legStatus(rec.Initiator),
		Participant: legStatus(rec.Participant),
		Operations:  len(rec.Reports),
		Error:       rec.Error,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func legStatus(l LegRecord) LegStatus {
	s := LegStatus{
		Chain:     l.Terms.Chain,
		Amount:    l.Terms.Amount,
		Confirmed: l.Confirmed,
	}
	if !l.ID.IsZero() {
		s.ID = l.ID.Hex()
	}
	if l.Lock != nil {
		s.Timelock = l.Lock.Timelock.UTC().Format(time.RFC3339)
		s.LockTx = l.Lock.Tx.Hash
	}
	if l.Redeemed != nil {
		s.RedeemTx = l.Redeemed.Hash
	}
	if l.Refunded != nil {
		s.RefundTx = l.Refunded.Hash
	}
	if l.Pending != nil {
		s.PendingTx = l.Pending.Tx.Hash
		if s.PendingTx == "" {
			s.PendingTx = "unknown"
		}
	}

	return s
}

// state names where the leg's value is.
func (l LegRecord) state() string {
	switch {
	case l.Refunded != nil:
		return "refunded"
	case l.Redeemed != nil:
		return "redeemed"
	case l.Pending != nil:
		return "pending"
	case l.Lock != nil:
		return "locked"
	default:
		return "-"
	}
}

// WriteStatus writes the records as a YAML document stream.
func WriteStatus(w io.Writer, recs ...*Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, rec := range recs {
		if err := enc.Encode(NewStatus(rec)); err != nil {
			return fmt.Errorf("failed to encode status of %s: %w", rec.ID, err)
		}
	}

	return enc.Close()
}

// WriteStatusTable writes one table row per record.
func WriteStatusTable(w io.Writer, recs ...*Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Phase", "Initiator", "Participant", "Updated", "Error"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, rec := range recs {
		table.Append([]string{
			rec.ID,
			string(rec.Phase),
			legSummary(rec.Initiator),
			legSummary(rec.Participant),
			rec.UpdatedAt.UTC().Format(time.RFC3339),
			rec.Error,
		})
	}
	table.Render()
}

func legSummary(l LegRecord) string {
	return fmt.Sprintf("%s %s %s", l.Terms.Chain, l.Terms.Amount, l.state())
}

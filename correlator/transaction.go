package correlator

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/tvm/cell"

	tonadapter "github.com/hashlock-labs/htlc-swap/chain/ton/adapter"
	"github.com/hashlock-labs/htlc-swap/htlc"
)

// Message types as reported by indexers.
const (
	MsgTypeInternal    = "int_msg"
	MsgTypeExternalIn  = "ext_in_msg"
	MsgTypeExternalOut = "ext_out_msg"
)

// Message is one inbound or outbound message of a transaction.
type Message struct {
	MsgType string `json:"msg_type"`
	// OpCode is the 0x prefixed opcode when the indexer reports it.
	OpCode string `json:"op_code,omitempty"`
	// RawBody is the hex encoded BOC of the message body.
	RawBody string `json:"raw_body,omitempty"`
}

// ComputePhase is the outcome of the VM run of a transaction.
type ComputePhase struct {
	Skipped  bool  `json:"skipped"`
	Success  bool  `json:"success"`
	ExitCode int32 `json:"exit_code"`
}

// Transaction is an account transaction with its messages.
type Transaction struct {
	Hash    string    `json:"hash"`
	LT      uint64    `json:"lt"`
	Utime   int64     `json:"utime"`
	InMsg   *Message  `json:"in_msg,omitempty"`
	OutMsgs []Message `json:"out_msgs"`
	// Success is false when the compute or action phase failed. A failed transaction triggered
	// by a bounceable message sends the value back.
	Success      bool          `json:"success"`
	Aborted      bool          `json:"aborted"`
	ComputePhase *ComputePhase `json:"compute_phase,omitempty"`
}

// Failed reports whether the account rejected the inbound message.
func (tx Transaction) Failed() bool {
	return tx.Aborted || !tx.Success
}

// failure describes why tx failed.
func (tx Transaction) failure() string {
	if cp := tx.ComputePhase; cp != nil && !cp.Skipped && !cp.Success {
		return fmt.Sprintf("tx %s failed with exit code %d", tx.Hash, cp.ExitCode)
	}

	return fmt.Sprintf("tx %s failed", tx.Hash)
}

// TxSource lists account transactions.
type TxSource interface {
	// Transactions returns up to limit of the latest transactions of account, newest first.
	Transactions(ctx context.Context, account string, limit int) ([]Transaction, error)
}

// Body decodes the message body cell.
func (m Message) Body() (*cell.Cell, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(m.RawBody), "0x")
	if raw == "" {
		return nil, fmt.Errorf("%w: empty raw body", htlc.ErrDecode)
	}
	boc, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: raw body is not hex: %w", htlc.ErrDecode, err)
	}
	c, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("%w: raw body is not a bag of cells: %w", htlc.ErrDecode, err)
	}

	return c, nil
}

// Op returns the message opcode. The indexer's value is preferred; otherwise the leading 32 bits
// of the body are read. ok is false when neither is available.
func (m Message) Op() (op uint64, ok bool) {
	if m.OpCode != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(m.OpCode), "0x"), 16, 32)
		if err == nil {
			return v, true
		}
	}
	body, err := m.Body()
	if err != nil {
		return 0, false
	}
	v, err := tonadapter.Opcode(body)
	if err != nil {
		return 0, false
	}

	return v, true
}

// BodyHash returns the hex encoded hash of the body cell, or "" when the body can't be decoded.
func (m Message) BodyHash() string {
	body, err := m.Body()
	if err != nil {
		return ""
	}

	return hex.EncodeToString(body.Hash())
}

// ParseEmit returns the commitment id carried by the first external out message of tx tagged
// with the commit-emitted opcode. Other messages are ignored. It fails with htlc.ErrNotFound when
// tx has no such message and with htlc.ErrDecode when the tagged payload is malformed.
func ParseEmit(tx Transaction) (htlc.ID, error) {
	for _, m := range tx.OutMsgs {
		if m.MsgType != MsgTypeExternalOut {
			continue
		}
		if op, ok := m.Op(); !ok || op != tonadapter.OpCommitEmitted {
			continue
		}

		body, err := m.Body()
		if err != nil {
			return htlc.ID{}, fmt.Errorf("tx %s: %w", tx.Hash, err)
		}
		id, err := tonadapter.DecodeCommitEmitted(body)
		if err != nil {
			return htlc.ID{}, fmt.Errorf("tx %s: %w", tx.Hash, err)
		}

		return id, nil
	}

	return htlc.ID{}, fmt.Errorf("%w: no commit emitted by tx %s", htlc.ErrNotFound, tx.Hash)
}

// findRedeem returns the secret of a Redeem{id} message carried by tx whose image is hashlock.
func findRedeem(tx Transaction, id htlc.ID, hashlock htlc.Hashlock) (htlc.Secret, bool) {
	if tx.InMsg == nil || tx.InMsg.MsgType != MsgTypeInternal {
		return htlc.Secret{}, false
	}
	if op, ok := tx.InMsg.Op(); !ok || op != tonadapter.OpRedeem {
		return htlc.Secret{}, false
	}
	body, err := tx.InMsg.Body()
	if err != nil {
		return htlc.Secret{}, false
	}
	lockID, secret, err := tonadapter.DecodeRedeem(body)
	if err != nil || lockID != id || !hashlock.Matches(secret) {
		return htlc.Secret{}, false
	}

	return secret, true
}

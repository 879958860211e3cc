package correlator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	tonchain "github.com/hashlock-labs/htlc-swap/chain/ton"
)

// LiteAPI is the subset of the liteserver client used to list transactions.
type LiteAPI interface {
	CurrentMasterchainInfo(ctx context.Context) (*ton.BlockIDExt, error)
	GetAccount(ctx context.Context, block *ton.BlockIDExt, addr *address.Address) (*tlb.Account, error)
	ListTransactions(ctx context.Context, addr *address.Address, num uint32, lt uint64, txHash []byte) ([]*tlb.Transaction, error)
}

// LiteSource reads account transactions straight from liteservers.
type LiteSource struct {
	api LiteAPI
}

var _ TxSource = (*LiteSource)(nil)

// NewLiteSource returns a source reading through api, typically a ton.Chain's client.
func NewLiteSource(api LiteAPI) *LiteSource {
	return &LiteSource{api: api}
}

// Transactions implements TxSource.
func (s *LiteSource) Transactions(ctx context.Context, account string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 1
	}
	addr, err := tonchain.ParseAddress(account)
	if err != nil {
		return nil, err
	}

	master, err := s.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	acc, err := s.api.GetAccount(ctx, master, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", account, err)
	}
	if acc == nil || acc.LastTxLT == 0 {
		return nil, nil
	}

	txs, err := s.api.ListTransactions(ctx, addr, uint32(limit), acc.LastTxLT, acc.LastTxHash)
	if err != nil {
		if errors.Is(err, ton.ErrNoTransactionsWereFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list transactions of %s: %w", account, err)
	}

	// liteservers answer oldest first
	out := make([]Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		tx, err := fromTLB(txs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}

	return out, nil
}

func fromTLB(tx *tlb.Transaction) (Transaction, error) {
	out := Transaction{
		Hash:    hex.EncodeToString(tx.Hash),
		LT:      tx.LT,
		Utime:   int64(tx.Now),
		Success: true,
	}
	if d, ok := tx.Description.(tlb.TransactionDescriptionOrdinary); ok {
		applyOutcome(&out, d)
	}
	if tx.IO.In != nil {
		m := fromTLBMessage(*tx.IO.In)
		out.InMsg = &m
	}
	if tx.IO.Out != nil {
		msgs, err := tx.IO.Out.ToSlice()
		if err != nil {
			return Transaction{}, fmt.Errorf("tx %s: failed to read out messages: %w", out.Hash, err)
		}
		for _, m := range msgs {
			out.OutMsgs = append(out.OutMsgs, fromTLBMessage(m))
		}
	}

	return out, nil
}

// applyOutcome copies the compute and action phase results of an ordinary transaction.
func applyOutcome(out *Transaction, d tlb.TransactionDescriptionOrdinary) {
	out.Aborted = d.Aborted
	switch p := d.ComputePhase.Phase.(type) {
	case tlb.ComputePhaseVM:
		out.ComputePhase = &ComputePhase{Success: p.Success, ExitCode: p.Details.ExitCode}
		out.Success = p.Success
	case tlb.ComputePhaseSkipped:
		out.ComputePhase = &ComputePhase{Skipped: true}
		out.Success = false
	}
	if d.ActionPhase != nil && !d.ActionPhase.Success {
		out.Success = false
	}
}

func fromTLBMessage(m tlb.Message) Message {
	out := Message{}
	switch m.MsgType {
	case tlb.MsgTypeInternal:
		out.MsgType = MsgTypeInternal
	case tlb.MsgTypeExternalIn:
		out.MsgType = MsgTypeExternalIn
	case tlb.MsgTypeExternalOut:
		out.MsgType = MsgTypeExternalOut
	}
	if m.Msg != nil {
		out.RawBody = bodyHex(m.Msg.Payload())
	}

	return out
}

func bodyHex(c *cell.Cell) string {
	if c == nil {
		return ""
	}

	return hex.EncodeToString(c.ToBOC())
}

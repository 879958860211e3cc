package ton

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/hashlock-labs/htlc-swap/chain/internal/common"
)

type ChainMetadata = common.ChainMetadata

var errNoClient = errors.New("ton chain has no liteserver client")

// Chain represents a TON chain.
type Chain struct {
	ChainMetadata                  // Contains canonical chain identifier
	Client        *ton.APIClient   // Liteserver API, proofs checked
	Wallet        *wallet.Wallet   // Signs and sends internal messages
	WalletAddress *address.Address // Address of the signing wallet
	URL           string           // Global config URL the connection pool was built from
	Amount        tlb.Coins        // Default value attached to contract messages
}

// LatestBlockTime returns the generation time of the latest masterchain block.
func (c Chain) LatestBlockTime(ctx context.Context) (time.Time, error) {
	if c.Client == nil {
		return time.Time{}, errNoClient
	}

	master, err := c.Client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	block, err := c.Client.GetBlockData(ctx, master)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get block %d: %w", master.SeqNo, err)
	}

	return time.Unix(int64(block.BlockInfo.GenUtime), 0).UTC(), nil
}

// WalletSeqno runs the seqno get-method of the signing wallet. The value increases by one with
// every external message the wallet accepts.
func (c Chain) WalletSeqno(ctx context.Context) (uint64, error) {
	if c.Client == nil {
		return 0, errNoClient
	}
	if c.WalletAddress == nil {
		return 0, errors.New("ton chain has no wallet address")
	}

	master, err := c.Client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	res, err := c.Client.RunGetMethod(ctx, master, c.WalletAddress, "seqno")
	if err != nil {
		return 0, fmt.Errorf("failed to run seqno on %s: %w", c.WalletAddress, err)
	}
	seqno, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to read seqno of %s: %w", c.WalletAddress, err)
	}

	return seqno.Uint64(), nil
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/swap"
)

// Output formats accepted by --output.
const (
	outputYAML  = "yaml"
	outputTable = "table"
)

func validateOutput(format string) error {
	switch format {
	case outputYAML, outputTable:
		return nil
	default:
		return fmt.Errorf("%w: unknown output format %q, want %s or %s", htlc.ErrInvalidArgument, format, outputYAML, outputTable)
	}
}

// printYAML writes v to the command's output as a YAML document.
func printYAML(cmd *cobra.Command, v any) error {
	return writeYAML(cmd.OutOrStdout(), v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	return enc.Close()
}

// loadConfig loads the configuration once per command invocation.
func (c *Commands) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := c.deps.ConfigLoader(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	return cfg, nil
}

func (c *Commands) initLogger() error {
	if c.deps.LoggerFactory == nil {
		return nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	lggr, err := c.deps.LoggerFactory(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	c.lggr = lggr

	return nil
}

// openLeg connects to a single chain family.
func (c *Commands) openLeg(ctx context.Context, family string) (swap.Leg, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return swap.Leg{}, err
	}
	legs, err := c.deps.LegsOpener(ctx, cfg, c.lggr, family)
	if err != nil {
		return swap.Leg{}, err
	}
	leg, ok := legs[family]
	if !ok || leg.Adapter == nil {
		return swap.Leg{}, fmt.Errorf("no %s leg configured", family)
	}

	return leg, nil
}

// txView is the printed form of a transaction reference.
type txView struct {
	Hash    string `yaml:"hash"`
	Account string `yaml:"account,omitempty"`
	Index   int    `yaml:"index,omitempty"`
	Block   uint64 `yaml:"block,omitempty"`
}

func newTxView(ref htlc.TxRef) txView {
	return txView{Hash: ref.Hash, Account: ref.Account, Index: ref.Index, Block: ref.Block}
}

type lockView struct {
	ID       string `yaml:"id"`
	Hashlock string `yaml:"hashlock"`
	// Secret is only printed when the command generated it.
	Secret   string `yaml:"secret,omitempty"`
	Timelock int64  `yaml:"timelock"`
	Amount   string `yaml:"amount"`
	GasLimit uint64 `yaml:"gasLimit,omitempty"`
	Tx       txView `yaml:"tx"`
}

type withdrawView struct {
	ID       string `yaml:"id"`
	GasLimit uint64 `yaml:"gasLimit,omitempty"`
	Tx       txView `yaml:"tx"`
}

type batchEntryView struct {
	ID       string  `yaml:"id"`
	Redeemed bool    `yaml:"redeemed"`
	Error    string  `yaml:"error,omitempty"`
	Tx       *txView `yaml:"tx,omitempty"`
}

type batchView struct {
	GasLimit uint64           `yaml:"gasLimit,omitempty"`
	Entries  []batchEntryView `yaml:"entries"`
}

func newBatchView(res *htlc.BatchResult) batchView {
	v := batchView{GasLimit: res.GasLimit, Entries: make([]batchEntryView, 0, len(res.Entries))}
	for _, e := range res.Entries {
		ev := batchEntryView{ID: e.ID.Hex(), Redeemed: e.Redeemed}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		if e.Tx != nil {
			tx := newTxView(*e.Tx)
			ev.Tx = &tx
		}
		v.Entries = append(v.Entries, ev)
	}

	return v
}

// writeBatchTable writes one row per batch entry.
func writeBatchTable(w io.Writer, res *htlc.BatchResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "Redeemed", "Tx", "Error"})
	table.SetAutoWrapText(false)
	for i, e := range res.Entries {
		row := []string{strconv.Itoa(i), e.ID.Hex(), strconv.FormatBool(e.Redeemed), "", ""}
		if e.Tx != nil {
			row[3] = e.Tx.Hash
		}
		if e.Err != nil {
			row[4] = e.Err.Error()
		}
		table.Append(row)
	}
	if res.GasLimit > 0 {
		table.SetFooter([]string{"", "", "", "gas limit", strconv.FormatUint(res.GasLimit, 10)})
	}
	table.Render()
}

type commitmentView struct {
	ID                   string `yaml:"id"`
	State                string `yaml:"state"`
	Sender               string `yaml:"sender"`
	Recipient            string `yaml:"recipient"`
	Amount               string `yaml:"amount"`
	Hashlock             string `yaml:"hashlock"`
	Timelock             int64  `yaml:"timelock"`
	ReceiverChainID      uint64 `yaml:"receiverChainId"`
	ReceiverChainAddress string `yaml:"receiverChainAddress,omitempty"`
	Preimage             string `yaml:"preimage,omitempty"`
}

func newCommitmentView(c *htlc.Commitment) commitmentView {
	v := commitmentView{
		ID:                   c.ID.Hex(),
		State:                string(c.State),
		Sender:               c.Sender,
		Recipient:            c.Recipient,
		Hashlock:             c.Hashlock.Hex(),
		Timelock:             c.Timelock.Unix(),
		ReceiverChainID:      c.ReceiverChainID,
		ReceiverChainAddress: c.ReceiverChainAddress,
	}
	if c.Amount != nil {
		v.Amount = c.Amount.String()
	}
	if c.Preimage != nil {
		v.Preimage = c.Preimage.Hex()
	}

	return v
}

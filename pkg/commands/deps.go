package commands

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
	"github.com/hashlock-labs/htlc-swap/swap"
)

// ConfigLoaderFunc loads the configuration from path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// LegsOpenerFunc connects to the named chain families.
type LegsOpenerFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger, families ...string) (map[string]swap.Leg, error)

// EmitParser reads the commitment id emitted by a transaction of an account.
type EmitParser interface {
	EmitAt(ctx context.Context, account string, index int) (htlc.ID, error)
}

// EmitParserOpenerFunc builds an EmitParser for the TON contract.
type EmitParserOpenerFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger) (EmitParser, string, error)

// StoreOpenerFunc opens the swap store. The returned close func releases it.
type StoreOpenerFunc func(path string) (swap.Store, func() error, error)

// LoggerFactoryFunc builds a logger for a level name.
type LoggerFactoryFunc func(level string) (logger.Logger, error)

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// LegsOpener connects to chains.
	// Default: OpenLegs
	LegsOpener LegsOpenerFunc

	// EmitParserOpener builds the TON correlator used by parse-emit. It also returns the
	// default account to read.
	// Default: OpenEmitParser
	EmitParserOpener EmitParserOpenerFunc

	// StoreOpener opens the swap store.
	// Default: OpenBboltStore
	StoreOpener StoreOpenerFunc

	// LoggerFactory rebuilds the logger at the configured log.level before a command runs.
	// Default: nil, the logger passed to New is kept
	LoggerFactory LoggerFactoryFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.LegsOpener == nil {
		d.LegsOpener = OpenLegs
	}
	if d.EmitParserOpener == nil {
		d.EmitParserOpener = OpenEmitParser
	}
	if d.StoreOpener == nil {
		d.StoreOpener = OpenBboltStore
	}
}

// OpenBboltStore opens or creates the bbolt swap database at path.
func OpenBboltStore(path string) (swap.Store, func() error, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open swap store %s: %w", path, err)
	}
	store, err := swap.NewBboltStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return store, db.Close, nil
}

// Package bootstrap turns a loaded configuration into the node's storage,
// parameters and genesis.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"seedchain/config"
	"seedchain/core"
	"seedchain/crypto"
	"seedchain/storage"
)

// OpenDatabase opens the state backend selected by cfg.Backend.
func OpenDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"), nil)
	case config.BackendLevelDB, "":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Params converts the module sections of cfg.
func Params(cfg *config.Config) (core.Params, error) {
	challengeParams, err := cfg.ChallengeParams()
	if err != nil {
		return core.Params{}, err
	}
	seedsParams, err := cfg.SeedsParams()
	if err != nil {
		return core.Params{}, err
	}
	return core.Params{Challenge: challengeParams, Seeds: seedsParams}, nil
}

// Genesis converts the [genesis] section of cfg.
func Genesis(cfg *config.Config) (core.Genesis, error) {
	var g core.Genesis
	for i, acc := range cfg.Genesis.Accounts {
		address, err := crypto.ParseAccount(acc.Address)
		if err != nil {
			return g, fmt.Errorf("genesis account %d: %w", i, err)
		}
		balance, err := config.ParseAmount(acc.Balance)
		if err != nil {
			return g, fmt.Errorf("genesis account %d: %w", i, err)
		}
		g.Accounts = append(g.Accounts, core.GenesisAccount{Address: address, Balance: balance})
	}
	for i, edge := range cfg.Genesis.Edges {
		from, err := crypto.ParseAccount(edge.From)
		if err != nil {
			return g, fmt.Errorf("genesis edge %d: %w", i, err)
		}
		to, err := crypto.ParseAccount(edge.To)
		if err != nil {
			return g, fmt.Errorf("genesis edge %d: %w", i, err)
		}
		g.Edges = append(g.Edges, [2][20]byte{from, to})
	}
	bonus, err := cfg.GenesisBonus()
	if err != nil {
		return g, err
	}
	g.Bonus = bonus
	return g, nil
}

package core

import (
	"errors"

	"github.com/holiman/uint256"

	"seedchain/core/events"
)

var genesisKey = []byte("node/genesis")

// ErrGenesisApplied is returned when a database already carries a genesis.
var ErrGenesisApplied = errors.New("node: genesis already applied")

// GenesisAccount credits Balance to Address.
type GenesisAccount struct {
	Address [20]byte
	Balance *uint256.Int
}

// Genesis is the initial state of a fresh database.
type Genesis struct {
	Accounts []GenesisAccount
	Edges    [][2][20]byte
	Bonus    *uint256.Int
}

// ApplyGenesis writes g once. Later calls fail with ErrGenesisApplied.
func (n *Node) ApplyGenesis(g Genesis) ([]events.Event, error) {
	return n.Execute("genesis", func(m *Modules) error {
		var applied bool
		if _, err := m.State.KVGet(genesisKey, &applied); err != nil {
			return err
		}
		if applied {
			return ErrGenesisApplied
		}
		for _, acc := range g.Accounts {
			if err := m.Bank.Credit(acc.Address, acc.Balance); err != nil {
				return err
			}
		}
		for _, edge := range g.Edges {
			if err := m.Graph.AddEdge(edge[0], edge[1]); err != nil {
				return err
			}
		}
		if err := m.Bank.FundBonus(g.Bonus); err != nil {
			return err
		}
		return m.State.KVPut(genesisKey, true)
	})
}

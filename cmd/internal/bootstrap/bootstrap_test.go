package bootstrap

import (
	"testing"

	"seedchain/config"
	"seedchain/crypto"
)

func TestGenesisFromConfig(t *testing.T) {
	var alice [20]byte
	alice[0] = 0xaa
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Genesis = config.Genesis{
		Accounts: []config.GenesisAccount{{Address: crypto.FromAccount(alice).String(), Balance: "1500"}},
		Edges:    []config.GenesisEdge{{From: "0x00000000000000000000000000000000000000aa", To: crypto.FromAccount(alice).String()}},
		Bonus:    "20",
	}
	g, err := Genesis(cfg)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if len(g.Accounts) != 1 || g.Accounts[0].Address != alice || g.Accounts[0].Balance.Uint64() != 1500 {
		t.Fatalf("unexpected accounts %+v", g.Accounts)
	}
	if len(g.Edges) != 1 || g.Edges[0][1] != alice || g.Bonus.Uint64() != 20 {
		t.Fatalf("unexpected edges/bonus %+v", g)
	}

	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	params, err := Params(cfg)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Seeds.Deep != 4 || params.Challenge.ChallengeStake.Uint64() != 100 {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestGenesisRejectsBadAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Genesis.Accounts = []config.GenesisAccount{{Address: "nope", Balance: "1"}}
	if _, err := Genesis(cfg); err == nil {
		t.Fatalf("expected address error")
	}
}

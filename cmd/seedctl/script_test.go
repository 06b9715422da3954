package main

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"seedchain/core"
	"seedchain/crypto"
	"seedchain/storage"
)

func account(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

const sampleScript = `
steps:
  - op: trust.addEdge
    caller: 0x0000000000000000000000000000000000000001
    target: 0x0000000000000000000000000000000000000009
  - op: seeds.add
    caller: 0x0000000000000000000000000000000000000001
    target: 0x0000000000000000000000000000000000000009
    score: 40
  - op: seeds.add
    caller: 0x0000000000000000000000000000000000000001
    target: 0x0000000000000000000000000000000000000009
    score: 41
    expect: already registered
  - advance: 300
  - op: seeds.harvestSeed
    caller: 0x0000000000000000000000000000000000000001
    target: 0x0000000000000000000000000000000000000009
`

func TestScriptRun(t *testing.T) {
	script, err := ParseScript(strings.NewReader(sampleScript))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(script.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(script.Steps))
	}

	node, err := core.NewNode(storage.NewMemDB(), core.DefaultParams(), nil, nil)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if _, err := node.ApplyGenesis(core.Genesis{Accounts: []core.GenesisAccount{{Address: account(1), Balance: uint256.NewInt(3000)}}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	results, err := script.Run(node)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 5 || results[3].Height != 300 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[2].Err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestScriptRejectsUnknownFieldsAndBadDigests(t *testing.T) {
	if _, err := ParseScript(strings.NewReader("steps:\n  - op: seeds.add\n    bogus: 1\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	step := Step{
		Op:     "seeds.replyHash",
		Caller: crypto.FromAccount(account(1)).String(),
		Target: crypto.FromAccount(account(9)).String(),
		Hashes: []hashStep{{Order: "00", Score: 1, Digest: "abcd"}},
	}
	if _, err := step.Tx(); err == nil {
		t.Fatalf("expected digest length error")
	}
}

func TestScriptStopsOnUnexpectedFailure(t *testing.T) {
	node, err := core.NewNode(storage.NewMemDB(), core.DefaultParams(), nil, nil)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	script := &Script{Steps: []Step{{
		Op:     "seeds.add",
		Caller: "0x0000000000000000000000000000000000000001",
		Target: "0x0000000000000000000000000000000000000009",
		Score:  1,
	}}}
	if _, err := script.Run(node); err == nil {
		t.Fatalf("unfunded registration should stop the script")
	}
}

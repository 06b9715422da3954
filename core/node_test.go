package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"

	"seedchain/core/events"
	"seedchain/native/reputation"
	"seedchain/native/seeds"
	"seedchain/storage"
)

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *captureEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestNode(t *testing.T, db storage.Database) (*Node, *captureEmitter) {
	t.Helper()
	emitter := &captureEmitter{}
	node, err := NewNode(db, DefaultParams(), emitter, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node, emitter
}

func balanceOf(t *testing.T, node *Node, account [20]byte) uint64 {
	t.Helper()
	var bal *uint256.Int
	if err := node.View(func(m *Modules) error {
		var err error
		bal, err = m.Bank.Balance(account)
		return err
	}); err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Uint64()
}

func TestGenesisAppliedOnce(t *testing.T) {
	node, _ := newTestNode(t, storage.NewMemDB())
	alice := addr(1)
	g := Genesis{
		Accounts: []GenesisAccount{{Address: alice, Balance: uint256.NewInt(2000)}},
		Edges:    [][2][20]byte{{alice, addr(2)}},
		Bonus:    uint256.NewInt(400),
	}
	if _, err := node.ApplyGenesis(g); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := node.ApplyGenesis(g); !errors.Is(err, ErrGenesisApplied) {
		t.Fatalf("expected ErrGenesisApplied, got %v", err)
	}
	if got := balanceOf(t, node, alice); got != 2000 {
		t.Fatalf("balance credited twice: %d", got)
	}
	err := node.View(func(m *Modules) error {
		ok, err := m.Graph.IsEdgeValid(alice, addr(2))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("genesis edge missing")
		}
		bonus, err := m.Bank.BonusAmount()
		if err != nil {
			return err
		}
		if bonus.Uint64() != 400 {
			t.Fatalf("bonus: %s", bonus)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	node, emitter := newTestNode(t, storage.NewMemDB())
	alice, target := addr(1), addr(9)
	if _, err := node.ApplyGenesis(Genesis{Accounts: []GenesisAccount{{Address: alice, Balance: uint256.NewInt(1500)}}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	emitter.events = nil

	evts, err := node.Apply(Tx{Op: OpAdd, Caller: alice, Target: target, Score: 50})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(evts) != 1 || evts[0].EventType() != seeds.EventTypeCandidateAdded {
		t.Fatalf("unexpected events %v", emitter.types())
	}
	if got := balanceOf(t, node, alice); got != 500 {
		t.Fatalf("stake not taken: %d", got)
	}

	if _, err := node.Apply(Tx{Op: OpAdd, Caller: alice, Target: target, Score: 60}); !errors.Is(err, seeds.ErrCandidateExists) {
		t.Fatalf("expected ErrCandidateExists, got %v", err)
	}
	if _, err := node.Apply(Tx{Op: OpAdd, Caller: alice, Target: addr(10), Score: 60}); err == nil {
		t.Fatalf("expected insufficient funds")
	}
	if got := balanceOf(t, node, alice); got != 500 {
		t.Fatalf("failed calls changed balance: %d", got)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("reverted calls leaked events: %v", emitter.types())
	}
	if _, err := node.Apply(Tx{Op: "seeds.bogus"}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("expected ErrUnknownOp, got %v", err)
	}
}

func TestHarvestClosesRound(t *testing.T) {
	node, emitter := newTestNode(t, storage.NewMemDB())
	alice, target := addr(1), addr(9)
	if _, err := node.ApplyGenesis(Genesis{Accounts: []GenesisAccount{{Address: alice, Balance: uint256.NewInt(2000)}}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := node.Apply(Tx{Op: OpAdd, Caller: alice, Target: target, Score: 50}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := node.Apply(Tx{Op: OpHarvestSeed, Caller: alice, Target: target}); !errors.Is(err, seeds.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, err := node.Advance(node.Params().Seeds.ConfirmPeriod); err != nil {
		t.Fatalf("advance: %v", err)
	}
	emitter.events = nil
	if _, err := node.Apply(Tx{Op: OpHarvestSeed, Caller: alice, Target: target}); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got := balanceOf(t, node, alice); got != 2000 {
		t.Fatalf("confirmed seed should recover its stake, balance %d", got)
	}
	var sawClosed bool
	for _, kind := range emitter.types() {
		if kind == reputation.EventTypeRoundClosed {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Fatalf("round not closed: %v", emitter.types())
	}
	err := node.View(func(m *Modules) error {
		round, err := m.Reputation.Round()
		if err != nil {
			return err
		}
		if round.Nonce != 1 || round.Harvesting {
			t.Fatalf("unexpected round %+v", round)
		}
		isSeed, err := m.Registry.IsSeed(target)
		if err != nil {
			return err
		}
		if !isSeed {
			t.Fatalf("target not registered as seed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestHeightSurvivesRestart(t *testing.T) {
	db := storage.NewMemDB()
	node, _ := newTestNode(t, db)
	if _, err := node.Advance(42); err != nil {
		t.Fatalf("advance: %v", err)
	}
	node.Close()
	if _, err := node.Advance(1); !errors.Is(err, ErrNodeClosed) {
		t.Fatalf("expected ErrNodeClosed, got %v", err)
	}
	reopened, _ := newTestNode(t, db)
	if got := reopened.Height(); got != 42 {
		t.Fatalf("height not restored: %d", got)
	}
}

func TestApplyLogsAbbreviatedCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	node, err := NewNode(storage.NewMemDB(), DefaultParams(), nil, logger)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.Apply(Tx{Op: OpAddEdge, Caller: addr(1), Target: addr(2)}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var line map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["caller"] != "0x0000..0001" {
		t.Fatalf("caller not abbreviated: %v", line["caller"])
	}
	if line["target"] != "0x0000000000000000000000000000000000000002" {
		t.Fatalf("target not logged in full: %v", line["target"])
	}
	if line["op"] != string(OpAddEdge) {
		t.Fatalf("unexpected op %v", line["op"])
	}
}

func TestNewNodeRejectsUnanswerableCountDispute(t *testing.T) {
	params := DefaultParams()
	params.Challenge.MaxUpdateCount = params.Seeds.MaxShortestPath
	if _, err := NewNode(storage.NewMemDB(), params, nil, nil); err == nil {
		t.Fatalf("expected upload limit error")
	}
}

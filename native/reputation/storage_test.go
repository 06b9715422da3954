package reputation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"seedchain/core/events"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if encoded, ok := m.data[string(key)]; ok {
		if err := rlp.DecodeBytes(encoded, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	return m.KVPut(key, append(list, value))
}

func (m *memoryStore) KVGetList(key []byte, out interface{}) error {
	encoded, ok := m.data[string(key)]
	if !ok {
		return nil
	}
	return rlp.DecodeBytes(encoded, out)
}

type recorder struct {
	types []string
}

func (r *recorder) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

func TestRoundLifecycle(t *testing.T) {
	engine := NewEngine(newMemoryStore())
	rec := &recorder{}
	engine.SetEmitter(rec)

	round, err := engine.Round()
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if round != (Round{}) {
		t.Fatalf("expected zero round, got %+v", round)
	}
	round, err = engine.BeginHarvest(42)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !round.Harvesting || round.StartedAt != 42 {
		t.Fatalf("unexpected round %+v", round)
	}
	var seed [20]byte
	seed[0] = 0x11
	if _, err := engine.Confirm(seed, 900, 50); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	round, err = engine.CloseRound()
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if round.Nonce != 1 || round.Harvesting {
		t.Fatalf("unexpected closed round %+v", round)
	}

	stored, err := engine.Ledger().Seed(seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if stored.Score != 900 || stored.Round != 0 || stored.ConfirmedAt != 50 {
		t.Fatalf("unexpected seed %+v", stored)
	}
	seeds, err := engine.Ledger().RoundSeeds(0)
	if err != nil || len(seeds) != 1 || seeds[0] != seed {
		t.Fatalf("unexpected round seeds %v %v", seeds, err)
	}
	want := []string{EventTypeRoundHarvesting, EventTypeSeedConfirmed, EventTypeRoundClosed}
	if len(rec.types) != len(want) {
		t.Fatalf("unexpected events %v", rec.types)
	}
	for i := range want {
		if rec.types[i] != want[i] {
			t.Fatalf("event %d: expected %s got %s", i, want[i], rec.types[i])
		}
	}
}

func TestSeedMissing(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	if _, err := ledger.Seed([20]byte{1}); !errors.Is(err, ErrSeedNotFound) {
		t.Fatalf("expected ErrSeedNotFound, got %v", err)
	}
	if err := ledger.PutSeed(&SeedScore{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

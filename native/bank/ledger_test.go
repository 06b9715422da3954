package bank

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"seedchain/core/state"
	storagepkg "seedchain/storage"
)

func newTestLedger() *Ledger {
	return NewLedger(state.NewManager(storagepkg.NewMemDB()))
}

func mustUint(t *testing.T) func(v *uint256.Int, err error) uint64 {
	return func(v *uint256.Int, err error) uint64 {
		t.Helper()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return v.Uint64()
	}
}

func TestStakeAndRelease(t *testing.T) {
	l := newTestLedger()
	alice := [20]byte{1}
	bob := [20]byte{2}
	if err := l.Credit(alice, uint256.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Stake(alice, uint256.NewInt(600)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := l.Stake(alice, uint256.NewInt(300)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if got := mustUint(t)(l.Balance(alice)); got != 200 {
		t.Fatalf("expected balance 200, got %d", got)
	}
	if got := mustUint(t)(l.Escrow()); got != 300 {
		t.Fatalf("expected escrow 300, got %d", got)
	}
	if err := l.Release(bob, uint256.NewInt(301)); !errors.Is(err, ErrEscrowUnderflow) {
		t.Fatalf("expected ErrEscrowUnderflow, got %v", err)
	}
	if err := l.Release(bob, uint256.NewInt(300)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := mustUint(t)(l.Balance(bob)); got != 300 {
		t.Fatalf("expected bob 300, got %d", got)
	}
}

func TestBonusPool(t *testing.T) {
	l := newTestLedger()
	alice := [20]byte{1}
	if err := l.Credit(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Stake(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := l.AddBonus(uint256.NewInt(40)); err != nil {
		t.Fatalf("add bonus: %v", err)
	}
	if err := l.CutBonus(uint256.NewInt(41)); !errors.Is(err, ErrBonusTooLow) {
		t.Fatalf("expected ErrBonusTooLow, got %v", err)
	}
	if err := l.CutBonus(uint256.NewInt(15)); err != nil {
		t.Fatalf("cut bonus: %v", err)
	}
	if got := mustUint(t)(l.BonusAmount()); got != 25 {
		t.Fatalf("expected bonus 25, got %d", got)
	}
	if got := mustUint(t)(l.Escrow()); got != 75 {
		t.Fatalf("expected escrow 75, got %d", got)
	}
}

func TestCreditOverflow(t *testing.T) {
	l := newTestLedger()
	alice := [20]byte{1}
	max := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	max.SubUint64(max, 1)
	if err := l.Credit(alice, max); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(alice, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

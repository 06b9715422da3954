package bank

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// storage abstracts the subset of state manager functionality required by the
// ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix = []byte("bank/balance/")
	escrowKey     = []byte("bank/escrow")
	bonusKey      = []byte("bank/bonus")
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover a stake.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrEscrowUnderflow is returned when a release exceeds the escrowed total.
	ErrEscrowUnderflow = errors.New("bank: escrow underflow")
	// ErrBonusTooLow is returned when the bonus pool cannot cover a cut.
	ErrBonusTooLow = errors.New("bank: bonus pool too low")
	// ErrOverflow is returned when a balance would leave the 128-bit range.
	ErrOverflow = errors.New("bank: amount overflow")
)

func balanceKey(account [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", balancePrefix, account))
}

// Ledger keeps account balances, the module escrow holding every staked
// amount, and the bonus pool shared by confirmed seeds.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) read(key []byte) (*uint256.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: storage not configured")
	}
	value := new(uint256.Int)
	ok, err := l.store.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return value, nil
}

func (l *Ledger) write(key []byte, value *uint256.Int) error {
	return l.store.KVPut(key, value)
}

func add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow || sum.BitLen() > 128 {
		return nil, ErrOverflow
	}
	return sum, nil
}

func positive(amount *uint256.Int) bool {
	return amount != nil && !amount.IsZero()
}

// Balance returns the spendable balance of account.
func (l *Ledger) Balance(account [20]byte) (*uint256.Int, error) {
	return l.read(balanceKey(account))
}

// Escrow returns the total held on behalf of the staking modules.
func (l *Ledger) Escrow() (*uint256.Int, error) {
	return l.read(escrowKey)
}

// BonusAmount returns the current bonus pool.
func (l *Ledger) BonusAmount() (*uint256.Int, error) {
	return l.read(bonusKey)
}

// Credit mints amount into account. It is used by genesis allocations and
// tests.
func (l *Ledger) Credit(account [20]byte, amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	bal, err := l.Balance(account)
	if err != nil {
		return err
	}
	next, err := add(bal, amount)
	if err != nil {
		return err
	}
	return l.write(balanceKey(account), next)
}

// Stake moves amount from account into escrow.
func (l *Ledger) Stake(account [20]byte, amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	bal, err := l.Balance(account)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, bal.Dec(), amount.Dec())
	}
	escrow, err := l.Escrow()
	if err != nil {
		return err
	}
	nextEscrow, err := add(escrow, amount)
	if err != nil {
		return err
	}
	if err := l.write(balanceKey(account), new(uint256.Int).Sub(bal, amount)); err != nil {
		return err
	}
	return l.write(escrowKey, nextEscrow)
}

// Release pays amount out of escrow to account.
func (l *Ledger) Release(account [20]byte, amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	escrow, err := l.Escrow()
	if err != nil {
		return err
	}
	if escrow.Lt(amount) {
		return fmt.Errorf("%w: escrow %s, release %s", ErrEscrowUnderflow, escrow.Dec(), amount.Dec())
	}
	bal, err := l.Balance(account)
	if err != nil {
		return err
	}
	next, err := add(bal, amount)
	if err != nil {
		return err
	}
	if err := l.write(escrowKey, new(uint256.Int).Sub(escrow, amount)); err != nil {
		return err
	}
	return l.write(balanceKey(account), next)
}

// AddBonus moves amount from escrow into the bonus pool.
func (l *Ledger) AddBonus(amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	escrow, err := l.Escrow()
	if err != nil {
		return err
	}
	if escrow.Lt(amount) {
		return ErrEscrowUnderflow
	}
	bonus, err := l.BonusAmount()
	if err != nil {
		return err
	}
	next, err := add(bonus, amount)
	if err != nil {
		return err
	}
	if err := l.write(escrowKey, new(uint256.Int).Sub(escrow, amount)); err != nil {
		return err
	}
	return l.write(bonusKey, next)
}

// CutBonus moves amount from the bonus pool back into escrow so it can be
// released to a seed.
func (l *Ledger) CutBonus(amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	bonus, err := l.BonusAmount()
	if err != nil {
		return err
	}
	if bonus.Lt(amount) {
		return ErrBonusTooLow
	}
	escrow, err := l.Escrow()
	if err != nil {
		return err
	}
	next, err := add(escrow, amount)
	if err != nil {
		return err
	}
	if err := l.write(bonusKey, new(uint256.Int).Sub(bonus, amount)); err != nil {
		return err
	}
	return l.write(escrowKey, next)
}

// FundBonus credits the bonus pool from outside the ledger, e.g. a genesis
// endowment.
func (l *Ledger) FundBonus(amount *uint256.Int) error {
	if !positive(amount) {
		return nil
	}
	bonus, err := l.BonusAmount()
	if err != nil {
		return err
	}
	next, err := add(bonus, amount)
	if err != nil {
		return err
	}
	return l.write(bonusKey, next)
}

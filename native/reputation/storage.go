package reputation

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	roundKey          = []byte("reputation/round")
	seedScorePrefix   = []byte("reputation/seed/")
	roundSeedsPrefix  = []byte("reputation/round-seeds/")
	errLedgerNotReady = errors.New("reputation: ledger not initialised")
)

// ErrSeedNotFound marks accounts that were never confirmed as seeds.
var ErrSeedNotFound = errors.New("reputation: seed not found")

func seedScoreKey(account [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", seedScorePrefix, account))
}

func roundSeedsKey(nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", roundSeedsPrefix, nonce))
}

// Ledger persists the round marker and the scores of confirmed seeds.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return errLedgerNotReady
	}
	return nil
}

// Round loads the current round marker. A fresh ledger starts at nonce zero.
func (l *Ledger) Round() (Round, error) {
	if err := l.ready(); err != nil {
		return Round{}, err
	}
	var round Round
	if _, err := l.store.KVGet(roundKey, &round); err != nil {
		return Round{}, err
	}
	return round, nil
}

// PutRound persists the round marker.
func (l *Ledger) PutRound(round Round) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.store.KVPut(roundKey, &round)
}

// PutSeed stores a confirmed seed score, replacing the account's previous
// confirmation.
func (l *Ledger) PutSeed(score *SeedScore) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := score.Validate(); err != nil {
		return err
	}
	if err := l.store.KVPut(seedScoreKey(score.Account), score); err != nil {
		return err
	}
	return l.store.KVAppend(roundSeedsKey(score.Round), score.Account[:])
}

// Seed returns the latest confirmation of account.
func (l *Ledger) Seed(account [20]byte) (*SeedScore, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	var stored SeedScore
	ok, err := l.store.KVGet(seedScoreKey(account), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSeedNotFound
	}
	return &stored, nil
}

// RoundSeeds lists the accounts confirmed during round nonce in
// confirmation order.
func (l *Ledger) RoundSeeds(nonce uint64) ([][20]byte, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	var raw [][]byte
	if err := l.store.KVGetList(roundSeedsKey(nonce), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		var account [20]byte
		copy(account[:], item)
		out = append(out, account)
	}
	return out, nil
}

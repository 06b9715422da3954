package reputation

import (
	"seedchain/core/events"
	"seedchain/core/types"
)

// Engine wires round transitions and seed confirmations against the ledger and
// publishes the matching events.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage) *Engine {
	e := &Engine{emitter: events.NoopEmitter{}}
	if store != nil {
		e.ledger = NewLedger(store)
	}
	return e
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e.emitter != nil && evt != nil {
		e.emitter.Emit(evt)
	}
}

// Ledger exposes the underlying ledger for read paths.
func (e *Engine) Ledger() *Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

// Round loads the current round marker.
func (e *Engine) Round() (Round, error) {
	if e == nil || e.ledger == nil {
		return Round{}, errLedgerNotReady
	}
	return e.ledger.Round()
}

// BeginHarvest flags the round as harvesting from height on.
func (e *Engine) BeginHarvest(height uint64) (Round, error) {
	round, err := e.Round()
	if err != nil {
		return Round{}, err
	}
	round.Harvesting = true
	round.StartedAt = height
	if err := e.ledger.PutRound(round); err != nil {
		return Round{}, err
	}
	e.emit(NewRoundHarvestingEvent(round))
	return round, nil
}

// CloseRound clears the harvesting flag and advances the nonce.
func (e *Engine) CloseRound() (Round, error) {
	round, err := e.Round()
	if err != nil {
		return Round{}, err
	}
	closed := round
	round.Nonce++
	round.Harvesting = false
	round.StartedAt = 0
	if err := e.ledger.PutRound(round); err != nil {
		return Round{}, err
	}
	e.emit(NewRoundClosedEvent(closed))
	return round, nil
}

// Confirm records account as a seed of the current round.
func (e *Engine) Confirm(account [20]byte, score uint64, height uint64) (*SeedScore, error) {
	round, err := e.Round()
	if err != nil {
		return nil, err
	}
	record := &SeedScore{Round: round.Nonce, Account: account, Score: score, ConfirmedAt: height}
	if err := e.ledger.PutSeed(record); err != nil {
		return nil, err
	}
	e.emit(NewSeedConfirmedEvent(record))
	return record, nil
}

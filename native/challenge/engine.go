package challenge

import (
	"fmt"

	"github.com/holiman/uint256"

	"seedchain/core/events"
	"seedchain/core/types"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Staking moves funds between accounts and the module escrow. Stake fails
// when the account cannot cover the amount, Release when the escrow cannot.
type Staking interface {
	Stake(account [20]byte, amount *uint256.Int) error
	Release(account [20]byte, amount *uint256.Int) error
}

// Engine implements the dispute state machine shared by every disputable
// feature. It knows nothing about what is disputed: protocol-specific checks
// are injected per call as verifiers and run inside the same operation.
type Engine struct {
	state    engineState
	staking  Staking
	emitter  events.Emitter
	params   Params
	heightFn func() uint64
}

// NewEngine creates an engine with default parameters and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		params:   DefaultParams(),
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetStaking configures the stake ledger collaborator.
func (e *Engine) SetStaking(staking Staking) { e.staking = staking }

// SetParams overrides the engine parameters.
func (e *Engine) SetParams(p Params) { e.params = p }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// SetHeightFunc overrides the block height source.
func (e *Engine) SetHeightFunc(fn func() uint64) {
	if fn == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = fn
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.staking == nil {
		return errNilStaking
	}
	return nil
}

func recordKey(app AppID, target [20]byte) []byte {
	return []byte(fmt.Sprintf("challenge/%s/%x", app, target))
}

// Get returns a copy of the record stored for (app, target).
func (e *Engine) Get(app AppID, target [20]byte) (*Record, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var rec Record
	ok, err := e.state.KVGet(recordKey(app, target), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	rec.normalize()
	return &rec, true, nil
}

func (e *Engine) load(app AppID, target [20]byte) (*Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rec, ok, err := e.Get(app, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return rec, nil
}

func (e *Engine) store(app AppID, target [20]byte, rec *Record) error {
	rec.normalize()
	return e.state.KVPut(recordKey(app, target), rec)
}

// Launch opens a dispute against target. An existing record must be Free; its
// pool is carried over and topped up with meta.Pool and the challenger's
// deposit.
func (e *Engine) Launch(app AppID, target [20]byte, meta *Record) error {
	if err := e.ready(); err != nil {
		return err
	}
	if meta == nil || meta.Challenger == ([20]byte{}) {
		return ErrInvalidMetadata
	}
	existing, exists, err := e.Get(app, target)
	if err != nil {
		return err
	}
	if exists && existing.Status != StatusFree {
		return ErrNoChallengeAllowed
	}
	pool := meta.Pool.clone()
	pathfinder := meta.Pathfinder
	if exists {
		if pool, err = existing.Pool.add(pool); err != nil {
			return err
		}
		if pathfinder == ([20]byte{}) {
			pathfinder = existing.Pathfinder
		}
	}
	if pathfinder == ([20]byte{}) {
		return ErrInvalidMetadata
	}
	if pathfinder == meta.Challenger {
		return ErrPermission
	}
	deposit := cloneAmount(e.params.ChallengeStake)
	if pool, err = pool.add(Pool{Staking: deposit}); err != nil {
		return err
	}
	rec := &Record{
		Pool:       pool,
		LastUpdate: e.height(),
		Remark:     meta.Remark,
		Score:      meta.Score,
		Pathfinder: pathfinder,
		Challenger: meta.Challenger,
		Status:     StatusExamine,
	}
	if err := e.staking.Stake(meta.Challenger, deposit); err != nil {
		return err
	}
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	e.emit(NewLaunchedEvent(app, target, rec))
	return nil
}

// advance moves Done forward by count against the announced Total.
func (e *Engine) advance(p Progress, count uint32) (Progress, error) {
	if count > e.params.MaxUpdateCount {
		return p, ErrTooMany
	}
	done := uint64(p.Done) + uint64(count)
	if done > uint64(p.Total) {
		return p, ErrProgress
	}
	p.Done = uint32(done)
	return p, nil
}

// Next resumes an incomplete upload. In Reply the pathfinder uploads, in
// Evidence the challenger does.
func (e *Engine) Next(app AppID, who [20]byte, target [20]byte, count uint32, verifier UploadVerifier) error {
	rec, err := e.load(app, target)
	if err != nil {
		return err
	}
	switch rec.Status {
	case StatusReply:
		if who != rec.Pathfinder {
			return ErrPermission
		}
	case StatusEvidence:
		if who != rec.Challenger {
			return ErrPermission
		}
	default:
		return ErrStatus
	}
	if rec.Progress.AllDone() || count == 0 {
		return ErrProgress
	}
	progress, err := e.advance(rec.Progress, count)
	if err != nil {
		return err
	}
	score, remark, err := verifier.VerifyUpload(rec.Score, rec.Remark, progress.AllDone())
	if err != nil {
		return err
	}
	rec.Progress = progress
	rec.Score = score
	rec.Remark = remark
	rec.LastUpdate = e.height()
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	e.emit(NewUploadedEvent(app, target, rec))
	return nil
}

// Examine lets the challenger pick the index to interrogate once the
// pathfinder's reply is fully uploaded.
func (e *Engine) Examine(app AppID, who [20]byte, target [20]byte, index uint32) error {
	rec, err := e.load(app, target)
	if err != nil {
		return err
	}
	if rec.Status != StatusReply {
		return ErrStatus
	}
	if who != rec.Challenger {
		return ErrPermission
	}
	if !rec.Progress.AllDone() {
		return ErrUploadIncomplete
	}
	rec.Status = StatusExamine
	rec.Remark = index
	rec.Progress = Progress{}
	rec.LastUpdate = e.height()
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	e.emit(NewExaminedEvent(app, target, rec))
	return nil
}

// Reply answers an examination. The pathfinder announces total items and
// uploads the first count of them.
func (e *Engine) Reply(app AppID, who [20]byte, target [20]byte, total, count uint32, verifier UploadVerifier) error {
	rec, err := e.load(app, target)
	if err != nil {
		return err
	}
	if rec.Status != StatusExamine {
		return ErrStatus
	}
	if who != rec.Pathfinder {
		return ErrPermission
	}
	progress, err := e.advance(Progress{Total: total}, count)
	if err != nil {
		return err
	}
	score, remark, err := verifier.VerifyUpload(rec.Score, rec.Remark, progress.AllDone())
	if err != nil {
		return err
	}
	rec.Status = StatusReply
	rec.Progress = progress
	rec.Score = score
	rec.Remark = remark
	rec.LastUpdate = e.height()
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	e.emit(NewRepliedEvent(app, target, rec))
	return nil
}

// Evidence lets the challenger answer a complete reply with proof. Evidence
// larger than one call enters StatusEvidence and continues through Next.
func (e *Engine) Evidence(app AppID, who [20]byte, target [20]byte, total, count uint32, verifier EvidenceVerifier) error {
	rec, err := e.load(app, target)
	if err != nil {
		return err
	}
	if rec.Status != StatusReply {
		return ErrStatus
	}
	if who != rec.Challenger {
		return ErrPermission
	}
	if !rec.Progress.AllDone() {
		return ErrUploadIncomplete
	}
	progress, err := e.advance(Progress{Total: total}, count)
	if err != nil {
		return err
	}
	outcome, err := verifier.VerifyEvidence(rec.Score, rec.Remark, progress.AllDone())
	if err != nil {
		return err
	}
	rec.LastUpdate = e.height()
	rec.Score = outcome.Score
	switch {
	case !progress.AllDone():
		rec.Status = StatusEvidence
		rec.Progress = progress
	case outcome.Arbitral:
		rec.Status = StatusArbitral
		rec.Progress = progress
		if outcome.Transfer {
			rec.Pathfinder = rec.Challenger
		}
	default:
		pathfinder := rec.Pathfinder
		if outcome.Transfer {
			pathfinder = rec.Challenger
		}
		restart(rec, pathfinder, outcome.Score)
	}
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	if rec.Status == StatusFree {
		e.emit(NewRestartedEvent(app, target, rec))
	} else {
		e.emit(NewEvidenceEvent(app, target, rec))
	}
	return nil
}

// Arbitral handles a submission against an escalated dispute. The current
// challenger may submit at any time. Anyone else may take over once the
// record has been idle for ChallengeTimeout blocks, staking the standard
// deposit.
func (e *Engine) Arbitral(app AppID, who [20]byte, target [20]byte, verifier ArbitralVerifier) error {
	rec, err := e.load(app, target)
	if err != nil {
		return err
	}
	if rec.Status != StatusArbitral {
		return ErrStatus
	}
	var deposit *uint256.Int
	if who != rec.Challenger {
		if e.height() < rec.LastUpdate+e.params.ChallengeTimeout {
			return ErrNotStale
		}
		deposit = cloneAmount(e.params.ChallengeStake)
		if rec.Pool, err = rec.Pool.add(Pool{Staking: deposit}); err != nil {
			return err
		}
	}
	outcome, err := verifier.VerifyArbitral(rec.Score, rec.Remark)
	if err != nil {
		return err
	}
	// A joint split between one account and itself pays it the whole pool.
	if outcome.JointBenefits && !outcome.Restart && who == rec.Pathfinder {
		return ErrSelfJoint
	}
	if deposit != nil {
		if err := e.staking.Stake(who, deposit); err != nil {
			return err
		}
	}
	applyArbitral(rec, who, outcome)
	rec.LastUpdate = e.height()
	if err := e.store(app, target, rec); err != nil {
		return err
	}
	if rec.Status == StatusFree {
		e.emit(NewRestartedEvent(app, target, rec))
	} else {
		e.emit(NewArbitralEvent(app, target, rec))
	}
	return nil
}

// applyArbitral is the settlement routine shared by arbitration outcomes.
func applyArbitral(rec *Record, who [20]byte, outcome ArbitralOutcome) {
	switch {
	case outcome.Restart:
		restart(rec, who, outcome.Score)
	case outcome.JointBenefits:
		rec.JointBenefits = true
		rec.Challenger = who
		rec.Score = outcome.Score
	default:
		rec.Score = outcome.Score
	}
}

func restart(rec *Record, pathfinder [20]byte, score uint64) {
	rec.Status = StatusFree
	rec.Pathfinder = pathfinder
	rec.Score = score
	rec.Remark = 0
	rec.JointBenefits = false
	rec.Progress = Progress{}
}

package seeds

import (
	"fmt"

	"github.com/holiman/uint256"

	"seedchain/core/events"
	"seedchain/core/types"
	"seedchain/native/challenge"
	"seedchain/native/reputation"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Game is the dispute engine driven by the protocol.
type Game interface {
	Launch(app challenge.AppID, target [20]byte, meta *challenge.Record) error
	Next(app challenge.AppID, who, target [20]byte, count uint32, verifier challenge.UploadVerifier) error
	Examine(app challenge.AppID, who, target [20]byte, index uint32) error
	Reply(app challenge.AppID, who, target [20]byte, total, count uint32, verifier challenge.UploadVerifier) error
	Evidence(app challenge.AppID, who, target [20]byte, total, count uint32, verifier challenge.EvidenceVerifier) error
	Arbitral(app challenge.AppID, who, target [20]byte, verifier challenge.ArbitralVerifier) error
	Harvest(app challenge.AppID, who, target [20]byte) (*challenge.Payout, error)
	Get(app challenge.AppID, target [20]byte) (*challenge.Record, bool, error)
	Params() challenge.Params
}

// Treasury holds seed deposits and the bonus pool.
type Treasury interface {
	Stake(account [20]byte, amount *uint256.Int) error
	Release(account [20]byte, amount *uint256.Int) error
	BonusAmount() (*uint256.Int, error)
	CutBonus(amount *uint256.Int) error
	AddBonus(amount *uint256.Int) error
}

// Graph answers trust edge queries.
type Graph interface {
	IsValidWalk(nodes [][20]byte) (bool, error)
}

// Registry is the set of confirmed seeds.
type Registry interface {
	IsSeed(account [20]byte) (bool, error)
	AddSeed(account [20]byte) error
	SeedCount() (uint32, error)
	RemoveAll() error
}

// Rounds persists round transitions and confirmed seed scores.
type Rounds interface {
	BeginHarvest(height uint64) (reputation.Round, error)
	CloseRound() (reputation.Round, error)
	Confirm(account [20]byte, score uint64, height uint64) (*reputation.SeedScore, error)
}

var (
	candidatePrefix = []byte("seeds/candidate/")
	candidateIndex  = []byte("seeds/candidates")
	disputePrefix   = []byte("seeds/dispute/")
	levelPrefix     = []byte("seeds/level/")
	pathsPrefix     = []byte("seeds/paths/")
	scoreListKey    = []byte("seeds/scores")
	bonusSnapshot   = []byte("seeds/bonus-snapshot")
)

func candidateKey(target [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", candidatePrefix, target))
}

func disputeKey(target [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", disputePrefix, target))
}

func levelKey(target [20]byte, depth uint32) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", levelPrefix, target, depth))
}

func pathsKey(target [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", pathsPrefix, target))
}

// Engine implements candidate registration, the bisection dispute protocol on
// top of the challenge game and the seed harvest.
type Engine struct {
	state    engineState
	game     Game
	treasury Treasury
	graph    Graph
	registry Registry
	rounds   Rounds
	emitter  events.Emitter
	params   Params
	heightFn func() uint64
}

// NewEngine creates an engine with default parameters.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		params:   DefaultParams(),
		heightFn: func() uint64 { return 0 },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

// SetGame configures the dispute engine the protocol drives.
func (e *Engine) SetGame(game Game) { e.game = game }

func (e *Engine) SetTreasury(t Treasury) { e.treasury = t }

func (e *Engine) SetGraph(g Graph) { e.graph = g }

func (e *Engine) SetRegistry(r Registry) { e.registry = r }

func (e *Engine) SetRounds(r Rounds) { e.rounds = r }

// SetParams overrides the protocol parameters.
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

func (e *Engine) height() uint64 {
	if e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.game == nil || e.treasury == nil || e.graph == nil || e.registry == nil || e.rounds == nil {
		return errNilDeps
	}
	return nil
}

// Candidate returns the registered candidate for target.
func (e *Engine) Candidate(target [20]byte) (*Candidate, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var cand Candidate
	ok, err := e.state.KVGet(candidateKey(target), &cand)
	if err != nil || !ok {
		return nil, false, err
	}
	if cand.Pledge == nil {
		cand.Pledge = new(uint256.Int)
	}
	return &cand, true, nil
}

func (e *Engine) loadCandidate(target [20]byte) (*Candidate, error) {
	cand, ok, err := e.Candidate(target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCandidateNotFound
	}
	return cand, nil
}

func (e *Engine) storeCandidate(target [20]byte, cand *Candidate) error {
	if cand.Pledge == nil {
		cand.Pledge = new(uint256.Int)
	}
	return e.state.KVPut(candidateKey(target), cand)
}

// Candidates lists registered targets in registration order.
func (e *Engine) Candidates() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(candidateIndex, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		var target [20]byte
		copy(target[:], item)
		out = append(out, target)
	}
	return out, nil
}

// Dispute returns the protocol state of target's open challenge.
func (e *Engine) Dispute(target [20]byte) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var d Dispute
	if _, err := e.state.KVGet(disputeKey(target), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (e *Engine) storeDispute(target [20]byte, d *Dispute) error {
	return e.state.KVPut(disputeKey(target), d)
}

// Level returns the committed hash level at depth for target.
func (e *Engine) Level(target [20]byte, depth uint32) ([]ResultHash, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var level []ResultHash
	if _, err := e.state.KVGet(levelKey(target, depth), &level); err != nil {
		return nil, err
	}
	return level, nil
}

// Paths returns the uploaded path set for target.
func (e *Engine) Paths(target [20]byte) ([]PathRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var paths []PathRecord
	if _, err := e.state.KVGet(pathsKey(target), &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// Scores returns the live score list.
func (e *Engine) Scores() (ScoreList, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var list ScoreList
	if _, err := e.state.KVGet(scoreListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (e *Engine) updateScore(old, next uint64, insertOnly bool) error {
	list, err := e.Scores()
	if err != nil {
		return err
	}
	if !insertOnly {
		list = list.Remove(old)
	}
	list = list.Insert(next)
	return e.state.KVPut(scoreListKey, list)
}

func (e *Engine) removeScore(score uint64) error {
	list, err := e.Scores()
	if err != nil {
		return err
	}
	list = list.Remove(score)
	if len(list) == 0 {
		return e.state.KVDelete(scoreListKey)
	}
	return e.state.KVPut(scoreListKey, list)
}

// resetDispute drops every protocol artefact of target's dispute.
func (e *Engine) resetDispute(target [20]byte) error {
	for depth := uint32(1); depth <= e.params.Deep; depth++ {
		if err := e.state.KVDelete(levelKey(target, depth)); err != nil {
			return err
		}
	}
	if err := e.state.KVDelete(pathsKey(target)); err != nil {
		return err
	}
	return e.state.KVDelete(disputeKey(target))
}

// syncRestart mirrors a dispute that resolved back to Free onto the
// candidate: the record's pathfinder and score become the candidate's claim.
func (e *Engine) syncRestart(target [20]byte) error {
	rec, ok, err := e.game.Get(AppID, target)
	if err != nil || !ok || rec.Status != challenge.StatusFree {
		return err
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return err
	}
	if cand.Score != rec.Score {
		if err := e.updateScore(cand.Score, rec.Score, false); err != nil {
			return err
		}
	}
	cand.Pathfinder = rec.Pathfinder
	cand.Score = rec.Score
	if err := e.storeCandidate(target, cand); err != nil {
		return err
	}
	if err := e.resetDispute(target); err != nil {
		return err
	}
	e.emit(NewCandidateUpdatedEvent(target, cand))
	return nil
}

// Add registers a centrality claim of score on target, staking the seed
// deposit from the caller.
func (e *Engine) Add(ctx Context, target [20]byte, score uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if ctx.harvesting() {
		return ErrHarvesting
	}
	if target == ([20]byte{}) {
		return ErrInvalidTarget
	}
	if _, exists, err := e.Candidate(target); err != nil {
		return err
	} else if exists {
		return ErrCandidateExists
	}
	pledge, underflow := new(uint256.Int).SubOverflow(e.params.SeedStake, e.params.SeedReserve)
	if underflow {
		return fmt.Errorf("seeds: reserve exceeds stake")
	}
	if err := e.treasury.Stake(ctx.Caller, e.params.SeedStake); err != nil {
		return err
	}
	cand := &Candidate{
		Score:      score,
		Pathfinder: ctx.Caller,
		Staker:     ctx.Caller,
		AddAt:      e.height(),
		Pledge:     pledge,
	}
	if err := e.storeCandidate(target, cand); err != nil {
		return err
	}
	if err := e.state.KVAppend(candidateIndex, target[:]); err != nil {
		return err
	}
	if err := e.updateScore(0, score, true); err != nil {
		return err
	}
	e.emit(NewCandidateAddedEvent(target, cand))
	return nil
}

// Challenge disputes target's claim with the caller's counter-claim score.
// The first dispute moves the candidate's pledge into the pool.
func (e *Engine) Challenge(ctx Context, target [20]byte, score uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if ctx.harvesting() {
		return ErrHarvesting
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return err
	}
	if e.height() > cand.AddAt+e.params.ConfirmPeriod {
		return ErrConfirmPeriodOver
	}
	if ctx.Caller == cand.Pathfinder {
		return ErrPermission
	}
	meta := &challenge.Record{
		Pool:       challenge.Pool{Staking: cand.Pledge},
		Score:      score,
		Pathfinder: cand.Pathfinder,
		Challenger: ctx.Caller,
	}
	if err := e.game.Launch(AppID, target, meta); err != nil {
		return err
	}
	cand.Pledge = new(uint256.Int)
	cand.HasChallenge = true
	if err := e.storeCandidate(target, cand); err != nil {
		return err
	}
	if err := e.resetDispute(target); err != nil {
		return err
	}
	e.emit(NewChallengedEvent(target, ctx.Caller, score))
	return nil
}

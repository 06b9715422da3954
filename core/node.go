package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"seedchain/core/events"
	"seedchain/core/state"
	"seedchain/native/bank"
	"seedchain/native/challenge"
	"seedchain/native/reputation"
	"seedchain/native/seeds"
	"seedchain/native/trust"
	"seedchain/observability/logging"
	"seedchain/observability/metrics"
	"seedchain/storage"
)

var heightKey = []byte("node/height")

// ErrNodeClosed is returned by calls made after Close.
var ErrNodeClosed = errors.New("node: closed")

// Node is the central controller. It serialises transactions, binds every
// native module to a fresh state overlay per call and commits or discards the
// overlay as a whole.
type Node struct {
	db      storage.Database
	mu      sync.Mutex
	height  uint64
	closed  bool
	params  Params
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.SeedsMetrics
}

// Params bundles the module parameters a node runs with.
type Params struct {
	Challenge challenge.Params
	Seeds     seeds.Params
}

// DefaultParams returns the default module parameters.
func DefaultParams() Params {
	return Params{Challenge: challenge.DefaultParams(), Seeds: seeds.DefaultParams()}
}

// Modules are the native engines bound to one state overlay.
type Modules struct {
	State      *state.Manager
	Bank       *bank.Ledger
	Graph      *trust.Graph
	Registry   *trust.Registry
	Reputation *reputation.Engine
	Challenge  *challenge.Engine
	Seeds      *seeds.Engine
}

// Context loads the current round and returns the call context for caller.
func (m *Modules) Context(caller [20]byte) (seeds.Context, error) {
	round, err := m.Reputation.Round()
	if err != nil {
		return seeds.Context{}, err
	}
	return seeds.Context{Caller: caller, Round: &round}, nil
}

// NewNode opens a node over db. A nil emitter discards committed events.
func NewNode(db storage.Database, params Params, emitter events.Emitter, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if err := params.Challenge.Validate(); err != nil {
		return nil, err
	}
	if err := params.Seeds.Validate(); err != nil {
		return nil, err
	}
	if err := params.Seeds.CheckUploadLimit(params.Challenge.MaxUpdateCount); err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n := &Node{
		db:      db,
		params:  params,
		emitter: emitter,
		logger:  logging.Component(logger, "node"),
		metrics: metrics.Seeds(),
	}
	var height uint64
	if _, err := state.NewManager(db).KVGet(heightKey, &height); err != nil {
		return nil, fmt.Errorf("node: load height: %w", err)
	}
	n.height = height
	return n, nil
}

// Height returns the current block height.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Params returns the module parameters.
func (n *Node) Params() Params { return n.params }

// Advance moves the block height forward and persists it.
func (n *Node) Advance(blocks uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return 0, ErrNodeClosed
	}
	next := n.height + blocks
	if next < n.height {
		return 0, fmt.Errorf("node: height overflow")
	}
	manager := state.NewManager(n.db)
	if err := manager.KVPut(heightKey, next); err != nil {
		return 0, err
	}
	if err := manager.Commit(); err != nil {
		return 0, err
	}
	n.height = next
	return next, nil
}

func (n *Node) bind(manager *state.Manager, emitter events.Emitter, height uint64) *Modules {
	heightFn := func() uint64 { return height }

	ledger := bank.NewLedger(manager)
	graph := trust.NewGraph(manager)
	registry := trust.NewRegistry(manager)

	rep := reputation.NewEngine(manager)
	rep.SetEmitter(emitter)

	game := challenge.NewEngine()
	game.SetState(manager)
	game.SetStaking(ledger)
	game.SetParams(n.params.Challenge)
	game.SetHeightFunc(heightFn)
	game.SetEmitter(emitter)

	engine := seeds.NewEngine()
	engine.SetState(manager)
	engine.SetGame(game)
	engine.SetTreasury(ledger)
	engine.SetGraph(graph)
	engine.SetRegistry(registry)
	engine.SetRounds(rep)
	engine.SetParams(n.params.Seeds)
	engine.SetHeightFunc(heightFn)
	engine.SetEmitter(emitter)

	return &Modules{
		State:      manager,
		Bank:       ledger,
		Graph:      graph,
		Registry:   registry,
		Reputation: rep,
		Challenge:  game,
		Seeds:      engine,
	}
}

// Execute runs fn as one transaction at the current height. Every write made
// through the bound modules is committed when fn succeeds and dropped when it
// fails. Events reach the node emitter only after a successful commit.
func (n *Node) Execute(op string, fn func(*Modules) error) ([]events.Event, error) {
	return n.execute(op, nil, fn)
}

func (n *Node) execute(op string, attrs []slog.Attr, fn func(*Modules) error) ([]events.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}

	start := time.Now()
	buffer := &events.Buffer{}
	manager := state.NewManager(n.db)
	mods := n.bind(manager, buffer, n.height)

	err := fn(mods)
	if err == nil {
		err = manager.Commit()
	}
	n.metrics.ObserveTx(op, err, time.Since(start))
	if err != nil {
		manager.Discard()
		buffer.Reset()
		n.logger.LogAttrs(context.Background(), slog.LevelDebug, "transaction reverted",
			append(attrs,
				logging.MaskField("op", op),
				slog.Uint64("height", n.height),
				slog.Any("error", err))...)
		return nil, err
	}

	emitted := buffer.Events()
	buffer.Flush(events.Multi{n.emitter, n.metrics})
	n.observeState()
	n.logger.LogAttrs(context.Background(), slog.LevelInfo, "transaction committed",
		append(attrs,
			logging.MaskField("op", op),
			slog.Uint64("height", n.height),
			slog.Int("events", len(emitted)))...)
	return emitted, nil
}

// View runs fn against a read-only overlay that is always discarded.
func (n *Node) View(fn func(*Modules) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	manager := state.NewManager(n.db)
	defer manager.Discard()
	return fn(n.bind(manager, events.NoopEmitter{}, n.height))
}

func (n *Node) observeState() {
	mods := n.bind(state.NewManager(n.db), events.NoopEmitter{}, n.height)
	if targets, err := mods.Seeds.Candidates(); err == nil {
		n.metrics.SetCandidates(len(targets))
	}
	if round, err := mods.Reputation.Round(); err == nil {
		n.metrics.SetRoundNonce(round.Nonce)
	}
}

// Close marks the node closed. The database is owned by the caller.
func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

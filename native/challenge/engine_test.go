package challenge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"seedchain/core/events"
	"seedchain/core/state"
	"seedchain/core/types"
	"seedchain/storage"
)

const testApp AppID = "seeds"

type mockStaking struct {
	balances map[[20]byte]*uint256.Int
	escrow   *uint256.Int
}

func newMockStaking() *mockStaking {
	return &mockStaking{balances: make(map[[20]byte]*uint256.Int), escrow: new(uint256.Int)}
}

func (m *mockStaking) fund(addr [20]byte, amount uint64) {
	m.balances[addr] = uint256.NewInt(amount)
}

func (m *mockStaking) balance(addr [20]byte) uint64 {
	if bal, ok := m.balances[addr]; ok {
		return bal.Uint64()
	}
	return 0
}

func (m *mockStaking) Stake(account [20]byte, amount *uint256.Int) error {
	bal := m.balances[account]
	if bal == nil || bal.Lt(amount) {
		return errors.New("insufficient funds")
	}
	bal.Sub(bal, amount)
	m.escrow.Add(m.escrow, amount)
	return nil
}

func (m *mockStaking) Release(account [20]byte, amount *uint256.Int) error {
	if m.escrow.Lt(amount) {
		return errors.New("escrow underflow")
	}
	m.escrow.Sub(m.escrow, amount)
	bal := m.balances[account]
	if bal == nil {
		bal = new(uint256.Int)
		m.balances[account] = bal
	}
	bal.Add(bal, amount)
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	evt, _ := c.events[len(c.events)-1].(*types.Event)
	return evt
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type fixture struct {
	engine  *Engine
	staking *mockStaking
	emitter *captureEmitter
	height  uint64

	target     [20]byte
	pathfinder [20]byte
	challenger [20]byte
	sweeper    [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		staking:    newMockStaking(),
		emitter:    &captureEmitter{},
		height:     10,
		target:     newTestAddress(0x01),
		pathfinder: newTestAddress(0x02),
		challenger: newTestAddress(0x03),
		sweeper:    newTestAddress(0x04),
	}
	f.staking.fund(f.challenger, 1_000)
	f.staking.fund(f.sweeper, 1_000)
	// Pool funds handed to Launch are assumed to be escrowed already.
	f.staking.escrow.SetUint64(1_000)
	f.engine = NewEngine()
	f.engine.SetState(state.NewManager(storage.NewMemDB()))
	f.engine.SetStaking(f.staking)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetHeightFunc(func() uint64 { return f.height })
	return f
}

func (f *fixture) launch(t *testing.T) {
	t.Helper()
	meta := &Record{
		Pool:       Pool{Staking: uint256.NewInt(1_000)},
		Score:      42,
		Pathfinder: f.pathfinder,
		Challenger: f.challenger,
	}
	if err := f.engine.Launch(testApp, f.target, meta); err != nil {
		t.Fatalf("launch: %v", err)
	}
}

func (f *fixture) record(t *testing.T) *Record {
	t.Helper()
	rec, ok, err := f.engine.Get(testApp, f.target)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("record missing")
	}
	return rec
}

func accept(score uint64, remark uint32, _ bool) (uint64, uint32, error) {
	return score, remark, nil
}

func TestLaunchAddsDepositToPool(t *testing.T) {
	f := newFixture(t)
	f.launch(t)

	rec := f.record(t)
	if rec.Status != StatusExamine {
		t.Fatalf("expected examine, got %s", rec.Status)
	}
	if got := rec.Pool.Staking.Uint64(); got != 1_100 {
		t.Fatalf("expected pool 1100, got %d", got)
	}
	if rec.Progress != (Progress{}) {
		t.Fatalf("expected empty progress, got %+v", rec.Progress)
	}
	if rec.LastUpdate != 10 || rec.Score != 42 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got := f.staking.balance(f.challenger); got != 900 {
		t.Fatalf("expected challenger balance 900, got %d", got)
	}
	if evt := f.emitter.last(); evt == nil || evt.Type != EventTypeLaunched {
		t.Fatalf("expected launched event, got %+v", evt)
	}
}

func TestLaunchRejectsActiveDispute(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	err := f.engine.Launch(testApp, f.target, &Record{Challenger: f.sweeper})
	if !errors.Is(err, ErrNoChallengeAllowed) {
		t.Fatalf("expected ErrNoChallengeAllowed, got %v", err)
	}
	if got := f.staking.balance(f.sweeper); got != 1_000 {
		t.Fatalf("failed launch moved funds: %d", got)
	}
}

func TestLaunchWithoutFundsLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	poor := newTestAddress(0x09)
	err := f.engine.Launch(testApp, f.target, &Record{Pathfinder: f.pathfinder, Challenger: poor})
	if err == nil {
		t.Fatalf("expected stake failure")
	}
	if _, ok, _ := f.engine.Get(testApp, f.target); ok {
		t.Fatalf("record persisted after failed stake")
	}
}

func TestLaunchRejectsPoolOverflow(t *testing.T) {
	f := newFixture(t)
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	huge.SubUint64(huge, 50)
	err := f.engine.Launch(testApp, f.target, &Record{
		Pool:       Pool{Staking: huge},
		Pathfinder: f.pathfinder,
		Challenger: f.challenger,
	})
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := f.staking.balance(f.challenger); got != 1_000 {
		t.Fatalf("overflowing launch staked funds")
	}
}

func TestReplyRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	before := f.record(t)

	calls := 0
	verifier := UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		calls++
		return score, remark, nil
	})
	err := f.engine.Reply(testApp, f.pathfinder, f.target, 100, 300, verifier)
	if !errors.Is(err, ErrTooMany) {
		t.Fatalf("expected ErrTooMany, got %v", err)
	}
	err = f.engine.Reply(testApp, f.pathfinder, f.target, 100, 101, verifier)
	if !errors.Is(err, ErrProgress) {
		t.Fatalf("expected ErrProgress, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("verifier invoked on rejected batch")
	}
	after := f.record(t)
	if after.Progress != before.Progress || after.Status != before.Status {
		t.Fatalf("record mutated: %+v", after)
	}
}

func TestReplyNextExamineCycle(t *testing.T) {
	f := newFixture(t)
	f.launch(t)

	if err := f.engine.Reply(testApp, f.challenger, f.target, 4, 2, UploadFunc(accept)); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if err := f.engine.Reply(testApp, f.pathfinder, f.target, 4, 2, UploadFunc(accept)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := f.engine.Examine(testApp, f.challenger, f.target, 1); !errors.Is(err, ErrUploadIncomplete) {
		t.Fatalf("expected ErrUploadIncomplete, got %v", err)
	}
	if err := f.engine.Next(testApp, f.challenger, f.target, 2, UploadFunc(accept)); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if err := f.engine.Next(testApp, f.pathfinder, f.target, 3, UploadFunc(accept)); !errors.Is(err, ErrProgress) {
		t.Fatalf("expected ErrProgress, got %v", err)
	}

	var sawDone bool
	final := UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		sawDone = done
		return score + 1, 7, nil
	})
	f.height = 20
	if err := f.engine.Next(testApp, f.pathfinder, f.target, 2, final); err != nil {
		t.Fatalf("next: %v", err)
	}
	if !sawDone {
		t.Fatalf("verifier not told upload is complete")
	}
	rec := f.record(t)
	if !rec.Progress.AllDone() || rec.Score != 43 || rec.Remark != 7 || rec.LastUpdate != 20 {
		t.Fatalf("unexpected record after next: %+v", rec)
	}
	if err := f.engine.Next(testApp, f.pathfinder, f.target, 1, UploadFunc(accept)); !errors.Is(err, ErrProgress) {
		t.Fatalf("expected ErrProgress on completed upload, got %v", err)
	}

	if err := f.engine.Examine(testApp, f.pathfinder, f.target, 3); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if err := f.engine.Examine(testApp, f.challenger, f.target, 3); err != nil {
		t.Fatalf("examine: %v", err)
	}
	rec = f.record(t)
	if rec.Status != StatusExamine || rec.Remark != 3 || rec.Progress != (Progress{}) {
		t.Fatalf("unexpected record after examine: %+v", rec)
	}
}

func TestVerifierErrorAbortsReply(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	boom := errors.New("bad digest")
	err := f.engine.Reply(testApp, f.pathfinder, f.target, 2, 2, UploadFunc(func(uint64, uint32, bool) (uint64, uint32, error) {
		return 0, 0, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected verifier error, got %v", err)
	}
	if rec := f.record(t); rec.Status != StatusExamine {
		t.Fatalf("status changed after failed verification: %s", rec.Status)
	}
}

func (f *fixture) replyComplete(t *testing.T) {
	t.Helper()
	if err := f.engine.Reply(testApp, f.pathfinder, f.target, 1, 1, UploadFunc(accept)); err != nil {
		t.Fatalf("reply: %v", err)
	}
}

func TestEvidenceRestartTransfersPathfinder(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	f.replyComplete(t)
	err := f.engine.Evidence(testApp, f.challenger, f.target, 1, 1, EvidenceFunc(func(score uint64, remark uint32, done bool) (EvidenceOutcome, error) {
		return EvidenceOutcome{Transfer: true, Score: 99}, nil
	}))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	rec := f.record(t)
	if rec.Status != StatusFree || rec.Pathfinder != f.challenger || rec.Score != 99 {
		t.Fatalf("unexpected restart record: %+v", rec)
	}
	if evt := f.emitter.last(); evt == nil || evt.Type != EventTypeRestarted {
		t.Fatalf("expected restarted event")
	}
}

func TestEvidenceIncompleteThenNext(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	f.replyComplete(t)
	outcome := EvidenceFunc(func(score uint64, remark uint32, done bool) (EvidenceOutcome, error) {
		return EvidenceOutcome{Score: score}, nil
	})
	if err := f.engine.Evidence(testApp, f.challenger, f.target, 3, 1, outcome); err != nil {
		t.Fatalf("evidence: %v", err)
	}
	rec := f.record(t)
	if rec.Status != StatusEvidence || rec.Progress != (Progress{Total: 3, Done: 1}) {
		t.Fatalf("unexpected evidence record: %+v", rec)
	}
	if err := f.engine.Next(testApp, f.pathfinder, f.target, 1, UploadFunc(accept)); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if err := f.engine.Next(testApp, f.challenger, f.target, 2, UploadFunc(accept)); err != nil {
		t.Fatalf("next: %v", err)
	}
}

func TestArbitralOutcomes(t *testing.T) {
	f := newFixture(t)
	f.launch(t)
	f.replyComplete(t)
	escalate := EvidenceFunc(func(score uint64, remark uint32, done bool) (EvidenceOutcome, error) {
		return EvidenceOutcome{Arbitral: true, Score: score}, nil
	})
	if err := f.engine.Evidence(testApp, f.challenger, f.target, 1, 1, escalate); err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if rec := f.record(t); rec.Status != StatusArbitral {
		t.Fatalf("expected arbitral, got %s", rec.Status)
	}

	joint := ArbitralFunc(func(score uint64, remark uint32) (ArbitralOutcome, error) {
		return ArbitralOutcome{JointBenefits: true, Score: 50}, nil
	})
	if err := f.engine.Arbitral(testApp, f.sweeper, f.target, joint); !errors.Is(err, ErrNotStale) {
		t.Fatalf("expected ErrNotStale, got %v", err)
	}
	if got := f.staking.balance(f.sweeper); got != 1_000 {
		t.Fatalf("rejected takeover moved funds, balance %d", got)
	}
	// The current challenger needs neither a timeout nor a deposit.
	same := ArbitralFunc(func(score uint64, remark uint32) (ArbitralOutcome, error) {
		return ArbitralOutcome{Score: 45}, nil
	})
	if err := f.engine.Arbitral(testApp, f.challenger, f.target, same); err != nil {
		t.Fatalf("challenger arbitral: %v", err)
	}
	if rec := f.record(t); rec.Score != 45 || rec.Pool.Staking.Uint64() != 1_100 {
		t.Fatalf("unexpected challenger update: %+v", rec)
	}

	f.height += 100
	if err := f.engine.Arbitral(testApp, f.sweeper, f.target, joint); err != nil {
		t.Fatalf("arbitral: %v", err)
	}
	rec := f.record(t)
	if rec.Status != StatusArbitral || !rec.JointBenefits || rec.Challenger != f.sweeper || rec.Score != 50 {
		t.Fatalf("unexpected joint record: %+v", rec)
	}
	if got := rec.Pool.Staking.Uint64(); got != 1_200 {
		t.Fatalf("expected third party deposit in pool, got %d", got)
	}
	if got := f.staking.balance(f.sweeper); got != 900 {
		t.Fatalf("expected arbiter balance 900, got %d", got)
	}

	f.staking.fund(f.pathfinder, 1_000)
	f.height += 100
	if err := f.engine.Arbitral(testApp, f.pathfinder, f.target, joint); !errors.Is(err, ErrSelfJoint) {
		t.Fatalf("expected ErrSelfJoint, got %v", err)
	}
	if got := f.staking.balance(f.pathfinder); got != 1_000 {
		t.Fatalf("rejected joint claim moved funds, balance %d", got)
	}

	restartOutcome := ArbitralFunc(func(score uint64, remark uint32) (ArbitralOutcome, error) {
		return ArbitralOutcome{Restart: true, Score: 7}, nil
	})
	if err := f.engine.Arbitral(testApp, f.pathfinder, f.target, restartOutcome); err != nil {
		t.Fatalf("arbitral restart: %v", err)
	}
	rec = f.record(t)
	if rec.Status != StatusFree || rec.Pathfinder != f.pathfinder || rec.Score != 7 || rec.JointBenefits {
		t.Fatalf("unexpected restart record: %+v", rec)
	}
	if got := rec.Pool.Staking.Uint64(); got != 1_300 {
		t.Fatalf("expected pathfinder deposit in pool, got %d", got)
	}
}

func TestHarvestSweeperTiming(t *testing.T) {
	f := newFixture(t)
	f.launch(t)

	f.height = 10 + 150
	if _, err := f.engine.Harvest(testApp, f.sweeper, f.target); !errors.Is(err, ErrNotAllowedSweeper) {
		t.Fatalf("expected ErrNotAllowedSweeper, got %v", err)
	}
	f.height = 10 + 50
	if _, err := f.engine.Harvest(testApp, f.challenger, f.target); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}

	f.height = 10 + 400
	escrowBefore := f.staking.escrow.Uint64()
	payout, err := f.engine.Harvest(testApp, f.sweeper, f.target)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	// Two elapsed periods at 100 bps each.
	if got := payout.SweeperFee.Uint64(); got != 22 {
		t.Fatalf("expected sweeper fee 22, got %d", got)
	}
	if payout.Beneficiary != BeneficiaryChallenger || !payout.HasScore || payout.Score != 42 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if got := f.staking.balance(f.challenger); got != 900+1_078 {
		t.Fatalf("expected challenger balance 1978, got %d", got)
	}
	if got := escrowBefore - f.staking.escrow.Uint64(); got != 1_100 {
		t.Fatalf("expected full pool released, released %d", got)
	}
	if _, ok, _ := f.engine.Get(testApp, f.target); ok {
		t.Fatalf("record not removed")
	}
	if evt := f.emitter.last(); evt == nil || evt.Type != EventTypeHarvested || evt.Attributes["beneficiary"] != "challenger" {
		t.Fatalf("unexpected harvest event %+v", evt)
	}
}

func TestSettleRouting(t *testing.T) {
	params := DefaultParams()
	pf, ch := newTestAddress(0x0A), newTestAddress(0x0B)
	base := Record{
		Pool:       Pool{Staking: uint256.NewInt(1_000), Earnings: uint256.NewInt(1)},
		Score:      5,
		Pathfinder: pf,
		Challenger: ch,
	}
	cases := []struct {
		name     string
		status   Status
		progress Progress
		joint    bool
		want     Beneficiary
		score    bool
	}{
		{"free", StatusFree, Progress{}, false, BeneficiaryPathfinder, false},
		{"reply done", StatusReply, Progress{Total: 2, Done: 2}, false, BeneficiaryPathfinder, false},
		{"reply pending", StatusReply, Progress{Total: 2, Done: 1}, false, BeneficiaryChallenger, false},
		{"examine", StatusExamine, Progress{}, false, BeneficiaryChallenger, true},
		{"evidence done", StatusEvidence, Progress{Total: 1, Done: 1}, false, BeneficiaryChallenger, true},
		{"evidence pending", StatusEvidence, Progress{Total: 3, Done: 1}, false, BeneficiaryPathfinder, false},
		{"arbitral", StatusArbitral, Progress{}, false, BeneficiaryPathfinder, true},
		{"arbitral joint", StatusArbitral, Progress{}, true, BeneficiaryJoint, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := base
			rec.Status = tc.status
			rec.Progress = tc.progress
			rec.JointBenefits = tc.joint
			payout, err := Settle(&rec, pf, params.ChallengeTimeout, params)
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			if payout.Beneficiary != tc.want || payout.HasScore != tc.score {
				t.Fatalf("unexpected payout %+v", payout)
			}
			sum := new(uint256.Int).Set(payout.SweeperFee)
			for _, award := range payout.Awards {
				sum.Add(sum, award.Amount)
			}
			if sum.Uint64() != 1_001 {
				t.Fatalf("payout does not conserve pool: %d", sum.Uint64())
			}
		})
	}
}

func TestSettleSweeperFeeCapped(t *testing.T) {
	params := DefaultParams()
	rec := &Record{Pool: Pool{Staking: uint256.NewInt(10_000)}, Status: StatusFree}
	payout, err := Settle(rec, newTestAddress(0x0C), 100*params.SweeperPeriod, params)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := payout.SweeperFee.Uint64(); got != 1_000 {
		t.Fatalf("expected capped fee 1000, got %d", got)
	}
}

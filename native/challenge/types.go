package challenge

import (
	"fmt"

	"github.com/holiman/uint256"
)

// AppID namespaces challenge records so several disputable features can share
// one engine. The engine never interprets it.
type AppID string

// Status enumerates the lifecycle states of a challenge record.
type Status uint8

const (
	StatusFree Status = iota
	StatusExamine
	StatusReply
	StatusEvidence
	StatusArbitral
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusExamine:
		return "examine"
	case StatusReply:
		return "reply"
	case StatusEvidence:
		return "evidence"
	case StatusArbitral:
		return "arbitral"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Pool holds the amounts escrowed for a record.
type Pool struct {
	Staking  *uint256.Int
	Earnings *uint256.Int
}

// Total returns Staking + Earnings, failing when the sum leaves the 128-bit
// range.
func (p Pool) Total() (*uint256.Int, error) {
	return addAmount(p.Staking, p.Earnings)
}

func (p Pool) clone() Pool {
	return Pool{Staking: cloneAmount(p.Staking), Earnings: cloneAmount(p.Earnings)}
}

func (p Pool) add(other Pool) (Pool, error) {
	staking, err := addAmount(p.Staking, other.Staking)
	if err != nil {
		return Pool{}, err
	}
	earnings, err := addAmount(p.Earnings, other.Earnings)
	if err != nil {
		return Pool{}, err
	}
	out := Pool{Staking: staking, Earnings: earnings}
	if _, err := out.Total(); err != nil {
		return Pool{}, err
	}
	return out, nil
}

// Progress tracks a resumable upload. Done never exceeds Total.
type Progress struct {
	Total uint32
	Done  uint32
}

// AllDone reports whether every announced item has been uploaded.
func (p Progress) AllDone() bool { return p.Done == p.Total }

// Record is the persisted state of one dispute.
type Record struct {
	Pool          Pool
	JointBenefits bool
	Progress      Progress
	LastUpdate    uint64
	Remark        uint32
	Score         uint64
	Pathfinder    [20]byte
	Challenger    [20]byte
	Status        Status
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Pool = r.Pool.clone()
	return &clone
}

func (r *Record) normalize() {
	if r.Pool.Staking == nil {
		r.Pool.Staking = new(uint256.Int)
	}
	if r.Pool.Earnings == nil {
		r.Pool.Earnings = new(uint256.Int)
	}
}

// Params are the deployment constants of the engine.
type Params struct {
	// ChallengeStake is the deposit staked by a challenger on Launch and by a
	// third party entering arbitration.
	ChallengeStake *uint256.Int
	// ChallengeTimeout is the number of blocks after LastUpdate at which an
	// unresolved record becomes harvestable.
	ChallengeTimeout uint64
	// SweeperPeriod is the grace period before third parties may harvest.
	SweeperPeriod uint64
	// SweeperFeeBps is the fee earned per elapsed sweeper period.
	SweeperFeeBps uint32
	// MaxSweeperFeeBps caps the sweeper fee.
	MaxSweeperFeeBps uint32
	// MaxUpdateCount bounds the items accepted by a single upload call.
	MaxUpdateCount uint32
}

// DefaultParams returns conservative defaults suitable for local networks.
func DefaultParams() Params {
	return Params{
		ChallengeStake:   uint256.NewInt(100),
		ChallengeTimeout: 100,
		SweeperPeriod:    200,
		SweeperFeeBps:    100,
		MaxSweeperFeeBps: 1_000,
		MaxUpdateCount:   128,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if p.ChallengeStake == nil || p.ChallengeStake.IsZero() {
		return fmt.Errorf("challenge: stake must be positive")
	}
	if p.ChallengeStake.BitLen() > 128 {
		return fmt.Errorf("challenge: stake exceeds 128 bits")
	}
	if p.ChallengeTimeout == 0 {
		return fmt.Errorf("challenge: timeout must be positive")
	}
	if p.SweeperPeriod < p.ChallengeTimeout {
		return fmt.Errorf("challenge: sweeper period shorter than challenge timeout")
	}
	if p.SweeperFeeBps > p.MaxSweeperFeeBps || p.MaxSweeperFeeBps > bpsDenominator {
		return fmt.Errorf("challenge: sweeper fee bps out of range")
	}
	if p.MaxUpdateCount == 0 {
		return fmt.Errorf("challenge: max update count must be positive")
	}
	return nil
}

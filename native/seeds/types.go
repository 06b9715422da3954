package seeds

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"

	"seedchain/native/challenge"
	"seedchain/native/reputation"
)

// AppID namespaces seed disputes inside the challenge engine.
const AppID challenge.AppID = "seeds"

// Context carries the caller of an entry point and the round marker the call
// executes in. The round is updated in place when a harvest opens or closes
// a round.
type Context struct {
	Caller [20]byte
	Round  *reputation.Round
}

func (c Context) harvesting() bool {
	return c.Round != nil && c.Round.Harvesting
}

// Candidate is a registered centrality claim on a target account.
type Candidate struct {
	Score      uint64
	Pathfinder [20]byte
	// Staker paid the seed deposit and gets the reserve back at harvest.
	Staker       [20]byte
	HasChallenge bool
	AddAt        uint64
	// Pledge is the challengeable part of the deposit. It moves into the
	// dispute pool on the first challenge.
	Pledge *uint256.Int
}

// Stage tracks which part of the bisection a dispute has reached.
type Stage uint8

const (
	StageHashes Stage = iota
	StagePaths
	StageCount
	StageMissing
	StageTooLow
)

func (s Stage) String() string {
	switch s {
	case StageHashes:
		return "hashes"
	case StagePaths:
		return "paths"
	case StageCount:
		return "count"
	case StageMissing:
		return "missing"
	case StageTooLow:
		return "tooLow"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Dispute is the protocol state of an open challenge against a candidate.
type Dispute struct {
	// Depth is the number of hash levels started so far.
	Depth uint32
	// Order is the packed selection leading to the parent of the newest level,
	// or the full bucket order once paths are uploaded.
	Order uint64
	Stage Stage
	// Index is the disputed path once the dispute left the hash levels.
	Index uint32
	// Missing is the path claimed absent by the challenger.
	Missing [][20]byte
	// Evidence collects the walks presented against an undercounted path.
	Evidence []PathRecord
}

// ResultHash commits to one bucket of a level: the bucket selector, the summed
// contribution of every path in it and the digest of its child level.
type ResultHash struct {
	Order  []byte
	Score  uint64
	Digest [32]byte
}

// PathRecord is a shortest path through the target, endpoints included, with
// the number of shortest paths between the same endpoints.
type PathRecord struct {
	Nodes [][20]byte
	Total uint32
}

// Endpoints returns the first and last node.
func (p PathRecord) Endpoints() ([20]byte, [20]byte) {
	return p.Nodes[0], p.Nodes[len(p.Nodes)-1]
}

// Mid returns the interior nodes.
func (p PathRecord) Mid() [][20]byte {
	if len(p.Nodes) < 2 {
		return nil
	}
	return p.Nodes[1 : len(p.Nodes)-1]
}

func (p PathRecord) key() []byte {
	var buf bytes.Buffer
	for _, n := range p.Nodes {
		buf.Write(n[:])
	}
	return buf.Bytes()
}

func withEndpoints(start [20]byte, mid [][20]byte, stop [20]byte) [][20]byte {
	nodes := make([][20]byte, 0, len(mid)+2)
	nodes = append(nodes, start)
	nodes = append(nodes, mid...)
	return append(nodes, stop)
}

// Params are the deployment constants of the protocol.
type Params struct {
	// Deep is the number of hash levels before paths are revealed.
	Deep uint32
	// Range is the bucket selector width in bytes.
	Range uint32
	// MaxShortestPath bounds the shortest path count accepted per endpoint
	// pair.
	MaxShortestPath uint32
	// MaxSeedCount is the number of seeds confirmed per round.
	MaxSeedCount uint32
	SeedStake    *uint256.Int
	// SeedReserve is the part of SeedStake that cannot be lost in a dispute.
	SeedReserve *uint256.Int
	// ConfirmPeriod is the number of blocks after registration during which a
	// candidate may be challenged.
	ConfirmPeriod uint64
}

// DefaultParams returns defaults suitable for local networks.
func DefaultParams() Params {
	return Params{
		Deep:            4,
		Range:           1,
		MaxShortestPath: 8,
		MaxSeedCount:    20,
		SeedStake:       uint256.NewInt(1_000),
		SeedReserve:     uint256.NewInt(200),
		ConfirmPeriod:   300,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if p.Deep == 0 || p.Range == 0 {
		return fmt.Errorf("seeds: deep and range must be positive")
	}
	if uint64(p.Deep)*uint64(p.Range) > maxOrderWidth {
		return fmt.Errorf("seeds: deep*range exceeds %d bytes", maxOrderWidth)
	}
	if p.MaxShortestPath == 0 {
		return fmt.Errorf("seeds: max shortest path must be positive")
	}
	if p.MaxSeedCount == 0 {
		return fmt.Errorf("seeds: max seed count must be positive")
	}
	if p.SeedStake == nil || p.SeedReserve == nil {
		return fmt.Errorf("seeds: stake amounts required")
	}
	if p.SeedStake.BitLen() > 128 {
		return fmt.Errorf("seeds: seed stake exceeds 128 bits")
	}
	if p.SeedReserve.Gt(p.SeedStake) {
		return fmt.Errorf("seeds: reserve exceeds stake")
	}
	if p.ConfirmPeriod == 0 {
		return fmt.Errorf("seeds: confirm period must be positive")
	}
	return nil
}

// CheckUploadLimit reports whether a count dispute can be answered within
// one upload of at most maxUpdateCount items. ReplyNum has no continuation.
func (p Params) CheckUploadLimit(maxUpdateCount uint32) error {
	if uint64(p.MaxShortestPath)+1 > uint64(maxUpdateCount) {
		return fmt.Errorf("seeds: max shortest path %d needs an upload limit above %d", p.MaxShortestPath, maxUpdateCount)
	}
	return nil
}

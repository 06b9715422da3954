package challenge

import (
	"github.com/holiman/uint256"
)

// Beneficiary names who receives the principal share of a harvested pool.
type Beneficiary uint8

const (
	BeneficiaryPathfinder Beneficiary = iota
	BeneficiaryChallenger
	BeneficiaryJoint
)

func (b Beneficiary) String() string {
	switch b {
	case BeneficiaryPathfinder:
		return "pathfinder"
	case BeneficiaryChallenger:
		return "challenger"
	case BeneficiaryJoint:
		return "joint"
	default:
		return "unknown"
	}
}

// Award is a single transfer out of the escrowed pool.
type Award struct {
	Account [20]byte
	Amount  *uint256.Int
}

// Payout is the result of settling a record.
type Payout struct {
	// Sweeper is set when a third party harvested the record.
	Sweeper    [20]byte
	SweeperFee *uint256.Int
	Total      *uint256.Int
	Awards     []Award
	// Beneficiary and Winner identify the side that won the dispute.
	Beneficiary Beneficiary
	Winner      [20]byte
	Status      Status
	// Score is the score carried by the winning side, meaningful only when
	// HasScore is set.
	Score    uint64
	HasScore bool
}

// Settle computes the payout of rec when harvested by caller at height. It
// does not touch state.
func Settle(rec *Record, caller [20]byte, height uint64, params Params) (*Payout, error) {
	if rec == nil {
		return nil, ErrChallengeNotFound
	}
	rec = rec.Clone()
	rec.normalize()
	total, err := rec.Pool.Total()
	if err != nil {
		return nil, err
	}
	principal := caller == rec.Pathfinder || caller == rec.Challenger
	elapsed := uint64(0)
	if height > rec.LastUpdate {
		elapsed = height - rec.LastUpdate
	}
	var feeBps uint32
	if !principal {
		if params.SweeperPeriod == 0 || elapsed < params.SweeperPeriod {
			return nil, ErrNotAllowedSweeper
		}
		periods := elapsed / params.SweeperPeriod
		scaled := periods * uint64(params.SweeperFeeBps)
		if periods != 0 && scaled/periods != uint64(params.SweeperFeeBps) {
			scaled = uint64(params.MaxSweeperFeeBps)
		}
		if scaled > uint64(params.MaxSweeperFeeBps) {
			scaled = uint64(params.MaxSweeperFeeBps)
		}
		feeBps = uint32(scaled)
	}
	if rec.Status != StatusFree && elapsed < params.ChallengeTimeout {
		return nil, ErrNotExpired
	}

	fee := bpsOf(total, feeBps)
	rest, err := subAmount(total, fee)
	if err != nil {
		return nil, err
	}
	payout := &Payout{
		SweeperFee: fee,
		Total:      total,
		Status:     rec.Status,
	}
	if !principal {
		payout.Sweeper = caller
	}
	toPathfinder := func(withScore bool) {
		payout.Beneficiary = BeneficiaryPathfinder
		payout.Winner = rec.Pathfinder
		payout.Awards = []Award{{Account: rec.Pathfinder, Amount: rest}}
		payout.HasScore = withScore
		if withScore {
			payout.Score = rec.Score
		}
	}
	toChallenger := func(withScore bool) {
		payout.Beneficiary = BeneficiaryChallenger
		payout.Winner = rec.Challenger
		payout.Awards = []Award{{Account: rec.Challenger, Amount: rest}}
		payout.HasScore = withScore
		if withScore {
			payout.Score = rec.Score
		}
	}

	switch rec.Status {
	case StatusFree:
		toPathfinder(false)
	case StatusReply:
		if rec.Progress.AllDone() {
			toPathfinder(false)
		} else {
			toChallenger(false)
		}
	case StatusExamine:
		toChallenger(true)
	case StatusEvidence:
		if rec.Progress.AllDone() {
			toChallenger(true)
		} else {
			toPathfinder(false)
		}
	case StatusArbitral:
		if rec.JointBenefits {
			half := new(uint256.Int).Rsh(rest, 1)
			remainder, err := subAmount(rest, half)
			if err != nil {
				return nil, err
			}
			payout.Beneficiary = BeneficiaryJoint
			payout.Winner = rec.Pathfinder
			payout.Awards = []Award{
				{Account: rec.Pathfinder, Amount: half},
				{Account: rec.Challenger, Amount: remainder},
			}
		} else {
			toPathfinder(true)
		}
	default:
		return nil, ErrStatus
	}
	return payout, nil
}

// Harvest settles and removes the record for (app, target), releasing the
// sweeper fee and the awards from escrow.
func (e *Engine) Harvest(app AppID, who [20]byte, target [20]byte) (*Payout, error) {
	rec, err := e.load(app, target)
	if err != nil {
		return nil, err
	}
	payout, err := Settle(rec, who, e.height(), e.params)
	if err != nil {
		return nil, err
	}
	if !payout.SweeperFee.IsZero() {
		if err := e.staking.Release(payout.Sweeper, payout.SweeperFee); err != nil {
			return nil, err
		}
	}
	for _, award := range payout.Awards {
		if award.Amount == nil || award.Amount.IsZero() {
			continue
		}
		if err := e.staking.Release(award.Account, award.Amount); err != nil {
			return nil, err
		}
	}
	if err := e.state.KVDelete(recordKey(app, target)); err != nil {
		return nil, err
	}
	e.emit(NewHarvestedEvent(app, target, who, payout))
	return payout, nil
}

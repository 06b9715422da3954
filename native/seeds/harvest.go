package seeds

import (
	"errors"

	"github.com/holiman/uint256"

	"seedchain/native/challenge"
)

// HarvestResult describes the outcome of a seed harvest.
type HarvestResult struct {
	Target    [20]byte
	Confirmed bool
	// Reward is the amount released to the pathfinder on top of the reserve
	// returned to the staker.
	Reward      *uint256.Int
	RoundClosed bool
}

// HarvestChallenge settles target's dispute through the challenge game and
// applies the outcome to the candidate: the winner becomes the pathfinder and
// a returned score replaces the claim.
func (e *Engine) HarvestChallenge(ctx Context, target [20]byte) (*challenge.Payout, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return nil, err
	}
	if !cand.HasChallenge {
		return nil, ErrNoChallenge
	}
	payout, err := e.game.Harvest(AppID, ctx.Caller, target)
	if err != nil {
		return nil, err
	}
	if payout.HasScore && payout.Score != cand.Score {
		if err := e.updateScore(cand.Score, payout.Score, false); err != nil {
			return nil, err
		}
		cand.Score = payout.Score
	}
	cand.Pathfinder = payout.Winner
	cand.HasChallenge = false
	if err := e.storeCandidate(target, cand); err != nil {
		return nil, err
	}
	if err := e.resetDispute(target); err != nil {
		return nil, err
	}
	e.emit(NewCandidateUpdatedEvent(target, cand))
	return payout, nil
}

// openHarvest starts the harvest phase of the round: every candidate must be
// undisputed and past its confirm period.
func (e *Engine) openHarvest(ctx Context, height uint64) error {
	targets, err := e.Candidates()
	if err != nil {
		return err
	}
	for _, t := range targets {
		cand, err := e.loadCandidate(t)
		if err != nil {
			return err
		}
		if cand.HasChallenge || height < cand.AddAt+e.params.ConfirmPeriod {
			return ErrNotConfirmed
		}
	}
	round, err := e.rounds.BeginHarvest(height)
	if err != nil {
		return err
	}
	*ctx.Round = round
	if err := e.registry.RemoveAll(); err != nil {
		return err
	}
	bonus, err := e.treasury.BonusAmount()
	if err != nil {
		return err
	}
	return e.state.KVPut(bonusSnapshot, bonus)
}

func (e *Engine) bonusShare() (*uint256.Int, error) {
	snapshot := new(uint256.Int)
	if _, err := e.state.KVGet(bonusSnapshot, snapshot); err != nil {
		return nil, err
	}
	return snapshot.Div(snapshot, uint256.NewInt(uint64(e.params.MaxSeedCount))), nil
}

// HarvestSeed closes target's candidacy. Candidates ranking in the top
// MaxSeedCount by score are confirmed as seeds and receive their full stake
// and a bonus share; the others get the reserve back and forfeit the pledge
// to the bonus pool. The pathfinder harvests; anyone may once the sweeper
// period has passed since the harvest opened.
func (e *Engine) HarvestSeed(ctx Context, target [20]byte) (*HarvestResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if ctx.Round == nil {
		return nil, errors.New("seeds: round context required")
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return nil, err
	}
	if cand.HasChallenge {
		return nil, ErrChallengePending
	}
	height := e.height()
	startedAt := height
	if ctx.Round.Harvesting {
		startedAt = ctx.Round.StartedAt
	}
	if ctx.Caller != cand.Pathfinder && height < startedAt+e.game.Params().SweeperPeriod {
		return nil, ErrPermission
	}
	if !ctx.Round.Harvesting {
		if err := e.openHarvest(ctx, height); err != nil {
			return nil, err
		}
	}

	scores, err := e.Scores()
	if err != nil {
		return nil, err
	}
	seeds, err := e.registry.SeedCount()
	if err != nil {
		return nil, err
	}
	result := &HarvestResult{Target: target, Reward: new(uint256.Int)}
	result.Confirmed = uint64(seeds)+scores.Higher(cand.Score) < uint64(e.params.MaxSeedCount)

	if err := e.treasury.Release(cand.Staker, e.params.SeedReserve); err != nil {
		return nil, err
	}
	if result.Confirmed {
		already, err := e.registry.IsSeed(target)
		if err != nil {
			return nil, err
		}
		if already {
			return nil, ErrAlreadySeed
		}
		share, err := e.bonusShare()
		if err != nil {
			return nil, err
		}
		if err := e.treasury.CutBonus(share); err != nil {
			return nil, err
		}
		reward, overflow := new(uint256.Int).AddOverflow(cand.Pledge, share)
		if overflow || reward.BitLen() > 128 {
			return nil, ErrScoreOverflow
		}
		if err := e.treasury.Release(cand.Pathfinder, reward); err != nil {
			return nil, err
		}
		result.Reward = reward
		if err := e.registry.AddSeed(target); err != nil {
			return nil, err
		}
		if _, err := e.rounds.Confirm(target, cand.Score, height); err != nil {
			return nil, err
		}
	} else if err := e.treasury.AddBonus(cand.Pledge); err != nil {
		return nil, err
	}

	if err := e.state.KVDelete(candidateKey(target)); err != nil {
		return nil, err
	}
	if err := e.state.KVRemove(candidateIndex, target[:]); err != nil {
		return nil, err
	}
	if err := e.removeScore(cand.Score); err != nil {
		return nil, err
	}
	e.emit(NewSeedHarvestedEvent(ctx.Caller, result))

	remaining, err := e.Candidates()
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		round, err := e.rounds.CloseRound()
		if err != nil {
			return nil, err
		}
		*ctx.Round = round
		if err := e.state.KVDelete(bonusSnapshot); err != nil {
			return nil, err
		}
		result.RoundClosed = true
	}
	return result, nil
}

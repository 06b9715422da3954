package seeds

import (
	"encoding/hex"
	"strconv"

	"seedchain/core/types"
)

const (
	EventTypeCandidateAdded   = "seeds.candidateAdded"
	EventTypeCandidateUpdated = "seeds.candidateUpdated"
	EventTypeChallenged       = "seeds.challenged"
	EventTypeSeedHarvested    = "seeds.harvested"
)

func candidateAttrs(target [20]byte, c *Candidate) map[string]string {
	attrs := map[string]string{"target": hex.EncodeToString(target[:])}
	if c != nil {
		attrs["score"] = strconv.FormatUint(c.Score, 10)
		attrs["pathfinder"] = hex.EncodeToString(c.Pathfinder[:])
		attrs["addAt"] = strconv.FormatUint(c.AddAt, 10)
	}
	return attrs
}

// NewCandidateAddedEvent is emitted when a claim is registered.
func NewCandidateAddedEvent(target [20]byte, c *Candidate) *types.Event {
	return &types.Event{Type: EventTypeCandidateAdded, Attributes: candidateAttrs(target, c)}
}

// NewCandidateUpdatedEvent is emitted when a resolved dispute changes the
// holder or the score of a claim.
func NewCandidateUpdatedEvent(target [20]byte, c *Candidate) *types.Event {
	return &types.Event{Type: EventTypeCandidateUpdated, Attributes: candidateAttrs(target, c)}
}

// NewChallengedEvent is emitted when a claim is disputed.
func NewChallengedEvent(target, challenger [20]byte, score uint64) *types.Event {
	return &types.Event{Type: EventTypeChallenged, Attributes: map[string]string{
		"target":     hex.EncodeToString(target[:]),
		"challenger": hex.EncodeToString(challenger[:]),
		"score":      strconv.FormatUint(score, 10),
	}}
}

// NewSeedHarvestedEvent describes the end of a candidacy.
func NewSeedHarvestedEvent(caller [20]byte, r *HarvestResult) *types.Event {
	attrs := map[string]string{"caller": hex.EncodeToString(caller[:])}
	if r != nil {
		attrs["target"] = hex.EncodeToString(r.Target[:])
		attrs["confirmed"] = strconv.FormatBool(r.Confirmed)
		attrs["reward"] = r.Reward.Dec()
	}
	return &types.Event{Type: EventTypeSeedHarvested, Attributes: attrs}
}

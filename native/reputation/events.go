package reputation

import (
	"encoding/hex"
	"strconv"

	"seedchain/core/types"
)

const (
	// EventTypeSeedConfirmed is emitted when a candidate is confirmed as seed.
	EventTypeSeedConfirmed = "reputation.seedConfirmed"
	// EventTypeRoundHarvesting is emitted by the first seed harvest of a round.
	EventTypeRoundHarvesting = "reputation.roundHarvesting"
	// EventTypeRoundClosed is emitted when the last candidate of a round has
	// been harvested.
	EventTypeRoundClosed = "reputation.roundClosed"
)

// NewSeedConfirmedEvent returns the canonical event payload for a seed
// confirmation.
func NewSeedConfirmedEvent(s *SeedScore) *types.Event {
	attrs := make(map[string]string)
	if s == nil {
		return &types.Event{Type: EventTypeSeedConfirmed, Attributes: attrs}
	}
	attrs["account"] = hex.EncodeToString(s.Account[:])
	attrs["round"] = strconv.FormatUint(s.Round, 10)
	attrs["score"] = strconv.FormatUint(s.Score, 10)
	attrs["confirmedAt"] = strconv.FormatUint(s.ConfirmedAt, 10)
	return &types.Event{Type: EventTypeSeedConfirmed, Attributes: attrs}
}

func newRoundEvent(kind string, r Round) *types.Event {
	return &types.Event{Type: kind, Attributes: map[string]string{
		"nonce":     strconv.FormatUint(r.Nonce, 10),
		"startedAt": strconv.FormatUint(r.StartedAt, 10),
	}}
}

// NewRoundHarvestingEvent marks the start of the harvest phase of r.
func NewRoundHarvestingEvent(r Round) *types.Event {
	return newRoundEvent(EventTypeRoundHarvesting, r)
}

// NewRoundClosedEvent marks the end of the round whose marker was r.
func NewRoundClosedEvent(r Round) *types.Event {
	return newRoundEvent(EventTypeRoundClosed, r)
}

package reputation

import "errors"

// Round is the seed-selection round marker. Harvesting is set by the first
// seed harvest of a round and cleared when the last candidate has been
// harvested, at which point Nonce advances.
type Round struct {
	Nonce      uint64
	StartedAt  uint64
	Harvesting bool
}

// SeedScore records a confirmed seed and the centrality score it was
// confirmed with.
type SeedScore struct {
	Round       uint64
	Account     [20]byte
	Score       uint64
	ConfirmedAt uint64
}

// Validate ensures the record is well formed.
func (s *SeedScore) Validate() error {
	if s == nil {
		return errors.New("reputation: seed score nil")
	}
	if s.Account == ([20]byte{}) {
		return errors.New("reputation: account required")
	}
	return nil
}

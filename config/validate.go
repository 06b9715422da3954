package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"seedchain/native/challenge"
	"seedchain/native/seeds"
)

// ParseAmount parses a decimal amount bounded to 128 bits. Blank is zero.
func ParseAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, err
	}
	if amount.BitLen() > 128 {
		return nil, fmt.Errorf("amount %s exceeds 128 bits", trimmed)
	}
	return amount, nil
}

// ChallengeParams converts the [challenge] section into engine parameters.
func (c *Config) ChallengeParams() (challenge.Params, error) {
	stake, err := ParseAmount(c.Challenge.ChallengeStake)
	if err != nil {
		return challenge.Params{}, fmt.Errorf("invalid challenge.ChallengeStake: %w", err)
	}
	params := challenge.Params{
		ChallengeStake:   stake,
		ChallengeTimeout: c.Challenge.ChallengeTimeout,
		SweeperPeriod:    c.Challenge.SweeperPeriod,
		SweeperFeeBps:    c.Challenge.SweeperFeeBps,
		MaxSweeperFeeBps: c.Challenge.MaxSweeperFeeBps,
		MaxUpdateCount:   c.Challenge.MaxUpdateCount,
	}
	return params, params.Validate()
}

// SeedsParams converts the [seeds] section into protocol parameters.
func (c *Config) SeedsParams() (seeds.Params, error) {
	stake, err := ParseAmount(c.Seeds.SeedStake)
	if err != nil {
		return seeds.Params{}, fmt.Errorf("invalid seeds.SeedStake: %w", err)
	}
	reserve, err := ParseAmount(c.Seeds.SeedReserve)
	if err != nil {
		return seeds.Params{}, fmt.Errorf("invalid seeds.SeedReserve: %w", err)
	}
	params := seeds.Params{
		Deep:            c.Seeds.Deep,
		Range:           c.Seeds.Range,
		MaxShortestPath: c.Seeds.MaxShortestPath,
		MaxSeedCount:    c.Seeds.MaxSeedCount,
		SeedStake:       stake,
		SeedReserve:     reserve,
		ConfirmPeriod:   c.Seeds.ConfirmPeriod,
	}
	return params, params.Validate()
}

// GenesisBonus parses the initial bonus pool.
func (c *Config) GenesisBonus() (*uint256.Int, error) {
	bonus, err := ParseAmount(c.Genesis.Bonus)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis.Bonus: %w", err)
	}
	return bonus, nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Backend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for %s backend", c.Backend)
	}
	challengeParams, err := c.ChallengeParams()
	if err != nil {
		return err
	}
	seedsParams, err := c.SeedsParams()
	if err != nil {
		return err
	}
	if err := seedsParams.CheckUploadLimit(challengeParams.MaxUpdateCount); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit: negative limits")
	}
	for i, acc := range c.Genesis.Accounts {
		if strings.TrimSpace(acc.Address) == "" {
			return fmt.Errorf("genesis.Accounts[%d]: address required", i)
		}
		if _, err := ParseAmount(acc.Balance); err != nil {
			return fmt.Errorf("genesis.Accounts[%d]: %w", i, err)
		}
	}
	if _, err := c.GenesisBonus(); err != nil {
		return err
	}
	return nil
}

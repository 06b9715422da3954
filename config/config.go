package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration file.
type Config struct {
	DataDir string `toml:"DataDir"`
	// Backend selects the state database: leveldb, bolt or memory.
	Backend    string `toml:"Backend"`
	RPCAddress string `toml:"RPCAddress"`
	// IndexerDSN is the sqlite DSN of the event journal. Empty disables it.
	IndexerDSN string `toml:"IndexerDSN"`
	LogFile    string `toml:"LogFile"`
	Env        string `toml:"Env"`

	Challenge Challenge `toml:"challenge"`
	Seeds     Seeds     `toml:"seeds"`
	RateLimit RateLimit `toml:"ratelimit"`
	Genesis   Genesis   `toml:"genesis"`
}

// Load loads the configuration from the given path, writing defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written by createDefault.
func Default() *Config {
	return &Config{
		DataDir:    "./seed-data",
		Backend:    BackendLevelDB,
		RPCAddress: ":8080",
		IndexerDSN: "",
		Env:        "dev",
		Challenge: Challenge{
			ChallengeStake:   "100",
			ChallengeTimeout: 100,
			SweeperPeriod:    200,
			SweeperFeeBps:    100,
			MaxSweeperFeeBps: 1_000,
			MaxUpdateCount:   128,
		},
		Seeds: Seeds{
			Deep:            4,
			Range:           1,
			MaxShortestPath: 8,
			MaxSeedCount:    20,
			SeedStake:       "1000",
			SeedReserve:     "200",
			ConfirmPeriod:   300,
		},
		RateLimit: RateLimit{RequestsPerSecond: 20, Burst: 40},
	}
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendLevelDB
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

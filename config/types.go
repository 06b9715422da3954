package config

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Challenge holds the dispute engine constants. Amounts are decimal strings.
type Challenge struct {
	ChallengeStake   string
	ChallengeTimeout uint64
	SweeperPeriod    uint64
	SweeperFeeBps    uint32
	MaxSweeperFeeBps uint32
	MaxUpdateCount   uint32
}

// Seeds holds the bisection protocol constants.
type Seeds struct {
	Deep            uint32
	Range           uint32
	MaxShortestPath uint32
	MaxSeedCount    uint32
	SeedStake       string
	SeedReserve     string
	ConfirmPeriod   uint64
}

// RateLimit bounds the read API per client address.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// GenesisAccount funds an account when the state database is created.
type GenesisAccount struct {
	Address string
	Balance string
}

// GenesisEdge seeds the trust graph.
type GenesisEdge struct {
	From string
	To   string
}

// Genesis is applied once to an empty database.
type Genesis struct {
	Accounts []GenesisAccount
	Edges    []GenesisEdge
	Bonus    string
}

package config

import "fildawallet/native/lending"

// NetworkProfile pins the protocol addresses of one network. Keys follow the
// deployment profile names; empty or zero entries are derived from the admin
// key on first start.
type NetworkProfile struct {
	CompContract string `toml:"compContract"`
	CompoundLens string `toml:"compoundLens"`
	Comptroller  string `toml:"comptroller"`
	HTT          string `toml:"htt"`
	Vote         string `toml:"vote"`
	Deposit      string `toml:"deposit"`
	Borrow       string `toml:"borrow"`
	Registry     string `toml:"registry,omitempty"`
	Factory      string `toml:"factory,omitempty"`
}

// Target registers a voting target at genesis. Target is a validator address
// or a decimal pool index.
type Target struct {
	Target         string `toml:"Target"`
	RewardPerBlock string `toml:"RewardPerBlock"`
}

// Allocation credits native funds to an account at genesis.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Simulation configures the in-process lending and staking protocols. All
// amounts are decimal wei strings.
type Simulation struct {
	TargetKind                 string       `toml:"TargetKind"`
	LockBlocks                 uint64       `toml:"LockBlocks"`
	BlockIntervalMillis        uint64       `toml:"BlockIntervalMillis"`
	DepositCollateralFactorBps uint64       `toml:"DepositCollateralFactorBps"`
	BorrowCollateralFactorBps  uint64       `toml:"BorrowCollateralFactorBps"`
	ReserveFactorBps           uint64       `toml:"ReserveFactorBps"`
	FildaPerBlock              string       `toml:"FildaPerBlock"`
	FildaReserve               string       `toml:"FildaReserve"`
	StakingReserve             string       `toml:"StakingReserve"`
	BorrowLiquidity            string       `toml:"BorrowLiquidity"`
	VoteAdmin                  string       `toml:"VoteAdmin,omitempty"`
	Targets                    []Target     `toml:"Targets"`
	Faucet                     []Allocation `toml:"Faucet"`
}

// Auth configures bearer token verification on the gateway. The secret is
// read from HMACSecretEnv when set.
type Auth struct {
	HMACSecret    string `toml:"HMACSecret,omitempty"`
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
	// WriteScope must appear in the token's scope claim for mutations.
	WriteScope string `toml:"WriteScope"`
}

// RateLimit bounds requests per client on the gateway.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Quota caps the mutations and the native value a single caller may move
// through the gateway per epoch. MaxValuePerEpoch is a decimal wei string.
type Quota struct {
	MaxRequestsPerMin uint32 `toml:"MaxRequestsPerMin"`
	MaxValuePerEpoch  string `toml:"MaxValuePerEpoch"`
	EpochSeconds      uint32 `toml:"EpochSeconds"`
}

// Pauses switches off whole modules on the gateway and individual actions on
// the lending markets.
type Pauses struct {
	Factory bool                 `toml:"Factory"`
	Lending bool                 `toml:"Lending"`
	Staking bool                 `toml:"Staking"`
	Markets lending.ActionPauses `toml:"Markets"`
}

// IsPaused implements common.PauseView keyed by gateway module.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case ModuleFactory:
		return p.Factory
	case ModuleLending:
		return p.Lending
	case ModuleStaking:
		return p.Staking
	default:
		return false
	}
}

// Module names understood by Pauses.
const (
	ModuleFactory = "factory"
	ModuleLending = "lending"
	ModuleStaking = "staking"
)

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers,omitempty"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	// SampleRatio is the fraction of root spans exported; zero exports all.
	SampleRatio float64 `toml:"SampleRatio,omitempty"`
}

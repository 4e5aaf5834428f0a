package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fildawallet/crypto"

	"github.com/BurntSushi/toml"
)

// Environment overrides applied after the file is decoded.
const (
	EnvEnvironment = "WALLET_ENV"
	EnvNetwork     = "WALLET_NETWORK"
)

type Config struct {
	ListenAddress      string `toml:"ListenAddress"`
	DataDir            string `toml:"DataDir"`
	AdminKeystorePath  string `toml:"AdminKeystorePath"`
	AdminPassphraseEnv string `toml:"AdminPassphraseEnv"`
	Network            string `toml:"Network"`
	Environment        string `toml:"Environment"`
	LogLevel           string `toml:"LogLevel"`

	Networks   map[string]NetworkProfile `toml:"networks,omitempty"`
	Simulation Simulation                `toml:"simulation"`
	Auth       Auth                      `toml:"auth"`
	RateLimit  RateLimit                 `toml:"ratelimit"`
	Quota      Quota                     `toml:"quota"`
	Pauses     Pauses                    `toml:"pauses"`
	Telemetry  Telemetry                 `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// and admin keystore when none exist yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNetwork)); v != "" {
		c.Network = v
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Network) == "" {
		c.Network = NetworkDevelopment
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if c.Simulation.TargetKind == "" {
		c.Simulation.TargetKind = "pool"
	}
	if c.Quota.EpochSeconds == 0 {
		c.Quota.EpochSeconds = 3600
	}
}

// AdminPassphrase returns the keystore passphrase from the configured
// environment variable.
func (c *Config) AdminPassphrase() string {
	if c.AdminPassphraseEnv == "" {
		return ""
	}
	return os.Getenv(c.AdminPassphraseEnv)
}

// HMACSecret resolves the gateway token secret, preferring the environment.
func (c *Config) HMACSecret() string {
	if c.Auth.HMACSecretEnv != "" {
		if v := strings.TrimSpace(os.Getenv(c.Auth.HMACSecretEnv)); v != "" {
			return v
		}
	}
	return c.Auth.HMACSecret
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AdminKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, _, err := crypto.LoadOrCreateKeystore(keystorePath, cfg.AdminPassphrase()); err != nil {
		return fmt.Errorf("admin keystore: %w", err)
	}

	if cfg.AdminKeystorePath != keystorePath {
		cfg.AdminKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	return &Config{
		ListenAddress:      ":8545",
		DataDir:            "./wallet-data",
		AdminPassphraseEnv: "WALLET_ADMIN_PASSPHRASE",
		Network:            NetworkDevelopment,
		Environment:        "dev",
		LogLevel:           "info",
		Simulation: Simulation{
			TargetKind:                 "pool",
			LockBlocks:                 28_800,
			BlockIntervalMillis:        3_000,
			DepositCollateralFactorBps: 7_500,
			BorrowCollateralFactorBps:  5_000,
			ReserveFactorBps:           1_000,
			FildaPerBlock:              "1000000000000000000",
			FildaReserve:               "1000000000000000000000000",
			StakingReserve:             "1000000000000000000000000",
			BorrowLiquidity:            "100000000000000000000000",
			Targets: []Target{
				{Target: "17", RewardPerBlock: "1000000000000000000"},
				{Target: "18", RewardPerBlock: "500000000000000000"},
			},
		},
		Auth:      Auth{HMACSecretEnv: "WALLET_JWT_SECRET", Issuer: "fildawallet", Audience: "wallet-gateway", WriteScope: "wallet:write"},
		RateLimit: RateLimit{RequestsPerMinute: 120, Burst: 20},
		Quota:     Quota{MaxRequestsPerMin: 60, EpochSeconds: 3600},
		Telemetry: Telemetry{Insecure: true},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	keystorePath := defaultKeystorePath(path)
	if _, _, err := crypto.LoadOrCreateKeystore(keystorePath, cfg.AdminPassphrase()); err != nil {
		return nil, err
	}
	cfg.AdminKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
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

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.keystore")
}

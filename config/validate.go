package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/crypto"
	"fildawallet/native/protocol"
)

const maxCollateralFactorBps = 9_000

// parseAmount decodes a non-negative decimal wei amount. Empty input is zero.
func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: amount must not be negative", field)
	}
	return amount, nil
}

// parseOptionalAddress accepts an empty value as the zero address.
func parseOptionalAddress(field, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return errors.New("ListenAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("DataDir must be set")
	}
	profile, ok := c.Profile()
	if !ok {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if _, err := profile.addresses(); err != nil {
		return fmt.Errorf("network %s: %w", c.Network, err)
	}

	sim := c.Simulation
	kind, err := protocol.ParseTargetKind(sim.TargetKind)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if sim.LockBlocks == 0 {
		return errors.New("simulation: LockBlocks must be positive")
	}
	if sim.DepositCollateralFactorBps > maxCollateralFactorBps || sim.BorrowCollateralFactorBps > maxCollateralFactorBps {
		return fmt.Errorf("simulation: collateral factors must not exceed %d bps", maxCollateralFactorBps)
	}
	if sim.ReserveFactorBps > 10_000 {
		return errors.New("simulation: ReserveFactorBps must not exceed 10000")
	}
	for field, value := range map[string]string{
		"simulation.FildaPerBlock":   sim.FildaPerBlock,
		"simulation.FildaReserve":    sim.FildaReserve,
		"simulation.StakingReserve":  sim.StakingReserve,
		"simulation.BorrowLiquidity": sim.BorrowLiquidity,
		"quota.MaxValuePerEpoch":     c.Quota.MaxValuePerEpoch,
	} {
		if _, err := parseAmount(field, value); err != nil {
			return err
		}
	}
	if _, err := parseOptionalAddress("simulation.VoteAdmin", sim.VoteAdmin); err != nil {
		return err
	}
	if _, err := parseTargets(kind, sim.Targets); err != nil {
		return err
	}
	if _, err := parseFaucet(sim.Faucet); err != nil {
		return err
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit: values must not be negative")
	}
	if c.Quota.EpochSeconds == 0 {
		return errors.New("quota: EpochSeconds must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}

func parseTargets(kind protocol.TargetKind, targets []Target) ([]targetEntry, error) {
	out := make([]targetEntry, 0, len(targets))
	for i, t := range targets {
		id, err := protocol.ParseTarget(t.Target)
		if err != nil {
			return nil, fmt.Errorf("simulation.Targets[%d]: %w", i, err)
		}
		if id.Kind() != kind {
			return nil, fmt.Errorf("simulation.Targets[%d]: %s is not a %s target", i, id, kind)
		}
		reward, err := parseAmount(fmt.Sprintf("simulation.Targets[%d].RewardPerBlock", i), t.RewardPerBlock)
		if err != nil {
			return nil, err
		}
		out = append(out, targetEntry{id: id, reward: reward})
	}
	return out, nil
}

type targetEntry struct {
	id     protocol.TargetID
	reward *big.Int
}

func parseFaucet(allocs []Allocation) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(allocs))
	for i, a := range allocs {
		addr, err := crypto.ParseAddress(a.Address)
		if err != nil {
			return nil, fmt.Errorf("simulation.Faucet[%d]: %w", i, err)
		}
		amount, err := parseAmount(fmt.Sprintf("simulation.Faucet[%d].Amount", i), a.Amount)
		if err != nil {
			return nil, err
		}
		if prev, ok := out[addr]; ok {
			amount = new(big.Int).Add(prev, amount)
		}
		out[addr] = amount
	}
	return out, nil
}

package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/genesis"
	"fildawallet/native/protocol"
)

func (p NetworkProfile) addresses() (genesis.Addresses, error) {
	var out genesis.Addresses
	for _, field := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"compContract", p.CompContract, &out.RewardToken},
		{"compoundLens", p.CompoundLens, &out.Lens},
		{"comptroller", p.Comptroller, &out.Comptroller},
		{"htt", p.HTT, &out.WrappedNative},
		{"vote", p.Vote, &out.Staking},
		{"deposit", p.Deposit, &out.DepositMarket},
		{"borrow", p.Borrow, &out.BorrowMarket},
		{"registry", p.Registry, &out.Registry},
		{"factory", p.Factory, &out.Factory},
	} {
		addr, err := parseOptionalAddress(field.name, field.value)
		if err != nil {
			return genesis.Addresses{}, err
		}
		*field.dst = addr
	}
	return out, nil
}

// GenesisSpec builds the deployment for the selected network administered by
// admin.
func (c *Config) GenesisSpec(admin common.Address) (*genesis.Spec, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	profile, _ := c.Profile()
	addrs, err := profile.addresses()
	if err != nil {
		return nil, err
	}
	sim := c.Simulation
	kind, err := protocol.ParseTargetKind(sim.TargetKind)
	if err != nil {
		return nil, err
	}
	targets, err := parseTargets(kind, sim.Targets)
	if err != nil {
		return nil, err
	}
	alloc, err := parseFaucet(sim.Faucet)
	if err != nil {
		return nil, err
	}
	voteAdmin, err := parseOptionalAddress("simulation.VoteAdmin", sim.VoteAdmin)
	if err != nil {
		return nil, err
	}

	spec := &genesis.Spec{
		Network:                    c.Network,
		Admin:                      admin,
		VoteAdmin:                  voteAdmin,
		Addresses:                  addrs,
		TargetKind:                 kind,
		LockBlocks:                 sim.LockBlocks,
		DepositCollateralFactorBps: sim.DepositCollateralFactorBps,
		BorrowCollateralFactorBps:  sim.BorrowCollateralFactorBps,
		ReserveFactorBps:           sim.ReserveFactorBps,
		Pauses:                     c.Pauses.Markets,
		Alloc:                      alloc,
	}
	for _, t := range targets {
		spec.Targets = append(spec.Targets, genesis.TargetSpec{Target: t.id, RewardPerBlock: t.reward})
	}
	amounts := []struct {
		field string
		value string
		dst   **big.Int
	}{
		{"simulation.FildaPerBlock", sim.FildaPerBlock, &spec.FildaPerBlock},
		{"simulation.FildaReserve", sim.FildaReserve, &spec.FildaReserve},
		{"simulation.StakingReserve", sim.StakingReserve, &spec.StakingReserve},
		{"simulation.BorrowLiquidity", sim.BorrowLiquidity, &spec.BorrowLiquidity},
	}
	for _, a := range amounts {
		if *a.dst, err = parseAmount(a.field, a.value); err != nil {
			return nil, err
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("network %s: %w", c.Network, err)
	}
	return spec, nil
}

// MaxValuePerEpoch returns the parsed per-caller value quota. Zero disables it.
func (c *Config) MaxValuePerEpoch() *big.Int {
	amount, err := parseAmount("quota.MaxValuePerEpoch", c.Quota.MaxValuePerEpoch)
	if err != nil {
		return new(big.Int)
	}
	return amount
}

// Package genesis deploys the wallet subsystem onto a chain: the simulated
// token, lending and staking collaborators, a sealed registry pointing at
// them, and the wallet factory.
package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core"
	"fildawallet/crypto"
	"fildawallet/native/factory"
	"fildawallet/native/lending"
	"fildawallet/native/registry"
	"fildawallet/native/staking"
	"fildawallet/native/token"
)

// Deployment is the resolved set of contracts the service runs against.
type Deployment struct {
	Addresses
	// Created reports whether this call configured a fresh deployment rather
	// than attaching to one found in the database.
	Created bool

	Factory  *factory.Factory
	Registry *registry.Registry
}

// resolveAddresses fills zero entries with addresses derived from the admin.
// Each role has a fixed derivation slot so restarts resolve the same layout.
func resolveAddresses(spec *Spec) (Addresses, error) {
	addrs := spec.Addresses
	slots := []*common.Address{
		&addrs.RewardToken,
		&addrs.Lens,
		&addrs.Comptroller,
		&addrs.WrappedNative,
		&addrs.Staking,
		&addrs.DepositMarket,
		&addrs.BorrowMarket,
		&addrs.Registry,
		&addrs.Factory,
	}
	seen := make(map[common.Address]struct{}, len(slots))
	for i, slot := range slots {
		if *slot == (common.Address{}) {
			*slot = crypto.ContractAddress(spec.Admin, uint64(i))
		}
		if _, dup := seen[*slot]; dup {
			return Addresses{}, fmt.Errorf("genesis: address %s assigned twice", slot.Hex())
		}
		seen[*slot] = struct{}{}
	}
	return addrs, nil
}

// Deploy binds every contract of spec on chain. The first run on an empty
// database also funds the reserves, configures and seals the registry; later
// runs only attach to the existing state.
func Deploy(chain *core.Chain, spec *Spec) (*Deployment, error) {
	if chain == nil {
		return nil, fmt.Errorf("genesis: chain must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	addrs, err := resolveAddresses(spec)
	if err != nil {
		return nil, err
	}

	htt := token.NewWrapped(chain, addrs.WrappedNative, "HTT")
	filda := token.New(chain, addrs.RewardToken, "FILDA", 18)
	comptroller := lending.NewComptroller(chain, addrs.Comptroller, spec.Admin, addrs.RewardToken)
	deposit, err := lending.NewMarket(chain, addrs.DepositMarket, lending.MarketConfig{
		Symbol:           "fHTT",
		Underlying:       addrs.WrappedNative,
		Comptroller:      addrs.Comptroller,
		ReserveFactorBps: spec.ReserveFactorBps,
		Pauses:           spec.Pauses,
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: deposit market: %w", err)
	}
	borrow, err := lending.NewMarket(chain, addrs.BorrowMarket, lending.MarketConfig{
		Symbol:           "fHT",
		Comptroller:      addrs.Comptroller,
		ReserveFactorBps: spec.ReserveFactorBps,
		Pauses:           spec.Pauses,
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: borrow market: %w", err)
	}
	vote, err := staking.New(chain, addrs.Staking, staking.Config{
		Kind:       spec.TargetKind,
		Admin:      spec.voteAdmin(),
		LockBlocks: spec.LockBlocks,
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: staking: %w", err)
	}
	reg := registry.New(chain, addrs.Registry)
	fac := factory.New(chain, addrs.Factory)

	for _, contract := range []core.Contract{
		htt, filda, comptroller, deposit, borrow,
		lending.NewLens(chain, addrs.Lens), vote, reg, fac,
	} {
		if err := chain.Deploy(contract); err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
	}

	var sealed bool
	if err := chain.View(func() error {
		sealed = reg.Sealed()
		return nil
	}); err != nil {
		return nil, err
	}
	deployment := &Deployment{Addresses: addrs, Factory: fac, Registry: reg}
	if sealed {
		return deployment, nil
	}

	err = chain.Execute(func() error {
		if err := comptroller.SupportMarket(spec.Admin, lending.MarketListing{
			Market:              addrs.DepositMarket,
			CollateralFactorBps: spec.DepositCollateralFactorBps,
			RewardSpeed:         spec.FildaPerBlock,
		}); err != nil {
			return fmt.Errorf("list deposit market: %w", err)
		}
		if err := comptroller.SupportMarket(spec.Admin, lending.MarketListing{
			Market:              addrs.BorrowMarket,
			CollateralFactorBps: spec.BorrowCollateralFactorBps,
		}); err != nil {
			return fmt.Errorf("list borrow market: %w", err)
		}
		for _, t := range spec.Targets {
			if err := vote.RegisterTarget(spec.voteAdmin(), t.Target, t.RewardPerBlock); err != nil {
				return fmt.Errorf("register target %s: %w", t.Target, err)
			}
		}
		if err := fund(chain, spec, addrs, filda, borrow); err != nil {
			return err
		}
		return configureRegistry(reg, spec, addrs)
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	deployment.Created = true
	return deployment, nil
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }

func fund(chain *core.Chain, spec *Spec, addrs Addresses, filda *token.Token, borrow *lending.Market) error {
	if positive(spec.FildaReserve) {
		if err := filda.Mint(addrs.Comptroller, spec.FildaReserve); err != nil {
			return fmt.Errorf("fund filda reserve: %w", err)
		}
	}
	if positive(spec.StakingReserve) {
		if err := chain.Credit(addrs.Staking, spec.StakingReserve); err != nil {
			return fmt.Errorf("fund staking reserve: %w", err)
		}
	}
	if positive(spec.BorrowLiquidity) {
		if err := chain.Credit(spec.Admin, spec.BorrowLiquidity); err != nil {
			return fmt.Errorf("fund borrow liquidity: %w", err)
		}
		if _, err := borrow.Mint(spec.Admin, spec.BorrowLiquidity); err != nil {
			return fmt.Errorf("supply borrow liquidity: %w", err)
		}
	}

	// Allocations are applied in address order.
	accounts := make([]common.Address, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		accounts = append(accounts, addr)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Bytes(), accounts[j].Bytes()) < 0
	})
	for _, addr := range accounts {
		if !positive(spec.Alloc[addr]) {
			continue
		}
		if err := chain.Credit(addr, spec.Alloc[addr]); err != nil {
			return fmt.Errorf("alloc %s: %w", addr.Hex(), err)
		}
	}
	return nil
}

func configureRegistry(reg *registry.Registry, spec *Spec, addrs Addresses) error {
	if err := reg.Initialize(spec.Admin); err != nil {
		return err
	}
	roles := []struct {
		role registry.Role
		addr common.Address
	}{
		{registry.RoleLens, addrs.Lens},
		{registry.RoleStaking, addrs.Staking},
		{registry.RoleRewardToken, addrs.RewardToken},
		{registry.RoleWrappedNative, addrs.WrappedNative},
		{registry.RoleBorrowMarket, addrs.BorrowMarket},
		{registry.RoleDepositMarket, addrs.DepositMarket},
		{registry.RoleComptroller, addrs.Comptroller},
		{registry.RoleVoteAdmin, spec.voteAdmin()},
	}
	for _, entry := range roles {
		if err := reg.Set(spec.Admin, entry.role, entry.addr); err != nil {
			return err
		}
	}
	if err := reg.SetTargetKind(spec.Admin, spec.TargetKind); err != nil {
		return err
	}
	return reg.Seal(spec.Admin)
}

package genesis

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/native/lending"
	"fildawallet/native/protocol"
)

// Addresses pins every deployed contract. Zero entries are derived from the
// admin address when the deployment is first created.
type Addresses struct {
	RewardToken   common.Address `json:"compContract"`
	Lens          common.Address `json:"compoundLens"`
	Comptroller   common.Address `json:"comptroller"`
	WrappedNative common.Address `json:"htt"`
	Staking       common.Address `json:"vote"`
	DepositMarket common.Address `json:"deposit"`
	BorrowMarket  common.Address `json:"borrow"`
	Registry      common.Address `json:"registry"`
	Factory       common.Address `json:"factory"`
}

// TargetSpec registers a voting target with its reward rate.
type TargetSpec struct {
	Target         protocol.TargetID
	RewardPerBlock *big.Int
}

// Spec describes a full deployment of the wallet subsystem and the simulated
// protocols it talks to.
type Spec struct {
	Network   string
	Admin     common.Address
	VoteAdmin common.Address
	Addresses Addresses

	TargetKind protocol.TargetKind
	LockBlocks uint64
	Targets    []TargetSpec

	DepositCollateralFactorBps uint64
	BorrowCollateralFactorBps  uint64
	ReserveFactorBps           uint64
	FildaPerBlock              *big.Int
	Pauses                     lending.ActionPauses

	// Funding applied once when the deployment is created.
	FildaReserve    *big.Int
	StakingReserve  *big.Int
	BorrowLiquidity *big.Int
	Alloc           map[common.Address]*big.Int
}

func nonNegative(name string, v *big.Int) error {
	if v != nil && v.Sign() < 0 {
		return fmt.Errorf("genesis: %s must not be negative", name)
	}
	return nil
}

// Validate checks the spec for internal consistency.
func (s *Spec) Validate() error {
	if s == nil {
		return errors.New("genesis: spec must not be nil")
	}
	if s.Admin == (common.Address{}) {
		return errors.New("genesis: admin address required")
	}
	if s.TargetKind != protocol.TargetValidator && s.TargetKind != protocol.TargetPool {
		return fmt.Errorf("genesis: %w: %d", protocol.ErrUnknownTargetKind, s.TargetKind)
	}
	if s.DepositCollateralFactorBps > 9_000 || s.BorrowCollateralFactorBps > 9_000 {
		return errors.New("genesis: collateral factors must not exceed 9000 bps")
	}
	if s.ReserveFactorBps > 10_000 {
		return errors.New("genesis: reserve factor must not exceed 10000 bps")
	}
	seen := make(map[string]struct{}, len(s.Targets))
	for _, t := range s.Targets {
		if !t.Target.Valid() {
			return fmt.Errorf("genesis: %w", protocol.ErrInvalidTarget)
		}
		if t.Target.Kind() != s.TargetKind {
			return fmt.Errorf("genesis: target %s is not a %s", t.Target, s.TargetKind)
		}
		if _, dup := seen[string(t.Target.Key())]; dup {
			return fmt.Errorf("genesis: duplicate target %s", t.Target)
		}
		seen[string(t.Target.Key())] = struct{}{}
		if err := nonNegative("target reward", t.RewardPerBlock); err != nil {
			return err
		}
	}
	for name, v := range map[string]*big.Int{
		"filda per block":  s.FildaPerBlock,
		"filda reserve":    s.FildaReserve,
		"staking reserve":  s.StakingReserve,
		"borrow liquidity": s.BorrowLiquidity,
	} {
		if err := nonNegative(name, v); err != nil {
			return err
		}
	}
	for addr, amount := range s.Alloc {
		if addr == (common.Address{}) {
			return errors.New("genesis: alloc to the zero address")
		}
		if err := nonNegative("alloc "+addr.Hex(), amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spec) voteAdmin() common.Address {
	if s.VoteAdmin == (common.Address{}) {
		return s.Admin
	}
	return s.VoteAdmin
}

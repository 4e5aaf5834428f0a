package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
)

const (
	// TypeRegistryUpdated is emitted when an admin binds a role address.
	TypeRegistryUpdated = "registry.updated"
	// TypeRegistrySealed is emitted once when the registry is locked.
	TypeRegistrySealed = "registry.sealed"
	// TypeWalletCreated is emitted by the factory for every new wallet.
	TypeWalletCreated = "wallet.created"
	// TypeCollateralDeposited captures collateral supplied to the deposit market.
	TypeCollateralDeposited = "wallet.collateralDeposited"
	// TypeBorrowed captures debt drawn from the borrow market.
	TypeBorrowed = "wallet.borrowed"
	// TypeRepaid captures debt repayment including any refunded excess.
	TypeRepaid = "wallet.repaid"
	// TypeLendingRewardClaimed captures a FILDA reward sweep.
	TypeLendingRewardClaimed = "wallet.lendingRewardClaimed"
	// TypeVoted captures stake delegated to a target.
	TypeVoted = "wallet.voted"
	// TypeVoteRevoked captures the start of a cooldown.
	TypeVoteRevoked = "wallet.voteRevoked"
	// TypeVoteWithdrawn captures unlocked stake leaving the staking module.
	TypeVoteWithdrawn = "wallet.voteWithdrawn"
	// TypeStakingRewardClaimed captures a staking reward payout.
	TypeStakingRewardClaimed = "wallet.stakingRewardClaimed"
)

// RegistryUpdated records a role binding.
type RegistryUpdated struct {
	Role    string
	Address common.Address
}

// Event converts the structured payload into a broadcastable event.
func (e RegistryUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRegistryUpdated, Attributes: map[string]string{
		"role":    e.Role,
		"address": e.Address.Hex(),
	}}
}

// RegistrySealed records the registry lock.
type RegistrySealed struct {
	Admin common.Address
}

// Event converts the structured payload into a broadcastable event.
func (e RegistrySealed) Event() *types.Event {
	return &types.Event{Type: TypeRegistrySealed, Attributes: map[string]string{
		"admin": e.Admin.Hex(),
	}}
}

// WalletCreated records a new owner binding.
type WalletCreated struct {
	Owner    common.Address
	Wallet   common.Address
	Registry common.Address
}

// Event converts the structured payload into a broadcastable event.
func (e WalletCreated) Event() *types.Event {
	return &types.Event{Type: TypeWalletCreated, Attributes: map[string]string{
		"owner":    e.Owner.Hex(),
		"wallet":   e.Wallet.Hex(),
		"registry": e.Registry.Hex(),
	}}
}

// CollateralDeposited records collateral supplied by a wallet.
type CollateralDeposited struct {
	Wallet common.Address
	Source string
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{Type: TypeCollateralDeposited, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"source": e.Source,
		"amount": formatAmount(e.Amount),
	}}
}

// Borrowed records debt drawn by a wallet.
type Borrowed struct {
	Wallet common.Address
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e Borrowed) Event() *types.Event {
	return &types.Event{Type: TypeBorrowed, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"amount": formatAmount(e.Amount),
	}}
}

// Repaid records a repayment and the refunded excess.
type Repaid struct {
	Wallet   common.Address
	Repaid   *big.Int
	Refunded *big.Int
	Source   string
}

// Event converts the structured payload into a broadcastable event.
func (e Repaid) Event() *types.Event {
	attrs := map[string]string{
		"wallet":   e.Wallet.Hex(),
		"repaid":   formatAmount(e.Repaid),
		"refunded": formatAmount(e.Refunded),
	}
	if e.Source != "" {
		attrs["source"] = e.Source
	}
	return &types.Event{Type: TypeRepaid, Attributes: attrs}
}

// LendingRewardClaimed records a FILDA sweep.
type LendingRewardClaimed struct {
	Wallet common.Address
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e LendingRewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypeLendingRewardClaimed, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"amount": formatAmount(e.Amount),
	}}
}

// Voted records stake delegated to a target.
type Voted struct {
	Wallet common.Address
	Target string
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e Voted) Event() *types.Event {
	return &types.Event{Type: TypeVoted, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"target": e.Target,
		"amount": formatAmount(e.Amount),
	}}
}

// VoteRevoked records the start of an exit period.
type VoteRevoked struct {
	Wallet    common.Address
	Target    string
	Amount    *big.Int
	ExitBlock uint64
}

// Event converts the structured payload into a broadcastable event.
func (e VoteRevoked) Event() *types.Event {
	return &types.Event{Type: TypeVoteRevoked, Attributes: map[string]string{
		"wallet":    e.Wallet.Hex(),
		"target":    e.Target,
		"amount":    formatAmount(e.Amount),
		"exitBlock": strconv.FormatUint(e.ExitBlock, 10),
	}}
}

// VoteWithdrawn records unlocked stake leaving the staking module.
type VoteWithdrawn struct {
	Wallet common.Address
	Target string
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e VoteWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeVoteWithdrawn, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"target": e.Target,
		"amount": formatAmount(e.Amount),
	}}
}

// StakingRewardClaimed records a staking reward payout.
type StakingRewardClaimed struct {
	Wallet common.Address
	Target string
	Amount *big.Int
}

// Event converts the structured payload into a broadcastable event.
func (e StakingRewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakingRewardClaimed, Attributes: map[string]string{
		"wallet": e.Wallet.Hex(),
		"target": e.Target,
		"amount": formatAmount(e.Amount),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

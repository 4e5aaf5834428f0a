// Package protocol declares the boundary between the wallet subsystem and the
// external collaborators it orchestrates: the host chain, the lending market,
// the staking module and the tokens. Every call is keyed by the identity of
// the account acting in the external system.
package protocol

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
)

var (
	// ErrUnauthorized marks every access-control fault.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknownContract is returned when no contract is deployed at an address.
	ErrUnknownContract = errors.New("protocol: no contract at address")
	// ErrWrongContract is returned when the contract at an address does not
	// implement the requested interface.
	ErrWrongContract = errors.New("protocol: contract does not implement interface")
)

// ExchangeRateScale is the fixed-point scale of Market.ExchangeRate (1e18).
var ExchangeRateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Host is the execution environment shared by every contract: native value,
// per-contract storage, revertible snapshots and the event log.
type Host interface {
	BlockNumber() uint64
	Balance(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	KVGet(contract common.Address, key []byte, out interface{}) (bool, error)
	KVPut(contract common.Address, key []byte, value interface{}) error
	Snapshot() int
	RevertToSnapshot(id int)
	Emit(emitter common.Address, event *types.Event)
}

// Directory resolves addresses published in the registry to contract bindings.
type Directory interface {
	Market(addr common.Address) (Market, error)
	Comptroller(addr common.Address) (Comptroller, error)
	Lens(addr common.Address) (Lens, error)
	Staking(addr common.Address) (Staking, error)
	Token(addr common.Address) (Token, error)
	WrappedNative(addr common.Address) (WrappedNative, error)
}

// Backend is what a wallet needs from its environment.
type Backend interface {
	Host
	Directory
}

// Token is an ERC20-style token.
type Token interface {
	Address() common.Address
	BalanceOf(account common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	Approve(owner, spender common.Address, amount *big.Int) error
	Allowance(owner, spender common.Address) *big.Int
}

// WrappedNative is the wrapped form of the chain's native currency (HTT).
type WrappedNative interface {
	Token
	// Deposit wraps amount of account's native balance into tokens.
	Deposit(account common.Address, amount *big.Int) error
	// Withdraw unwraps amount of account's tokens into native balance.
	Withdraw(account common.Address, amount *big.Int) error
}

// Market is a money market share token (cToken) of the lending protocol.
type Market interface {
	Address() common.Address
	// Underlying returns the asset of the market; the zero address denotes
	// the native currency.
	Underlying() common.Address
	Mint(minter common.Address, amount *big.Int) (*big.Int, error)
	Borrow(borrower common.Address, amount *big.Int) error
	RepayBorrow(payer, borrower common.Address, amount *big.Int) (*big.Int, error)
	BorrowBalance(account common.Address) (*big.Int, error)
	BalanceOf(account common.Address) *big.Int
	BalanceOfUnderlying(account common.Address) (*big.Int, error)
	ExchangeRate() (*big.Int, error)
}

// Comptroller is the risk module of the lending protocol.
type Comptroller interface {
	Address() common.Address
	RewardToken() common.Address
	EnterMarkets(account common.Address, markets []common.Address) error
	CheckMembership(account, market common.Address) bool
	// AccountLiquidity returns the borrowable headroom and the shortfall of
	// account; at most one of them is non-zero.
	AccountLiquidity(account common.Address) (*big.Int, *big.Int, error)
	ClaimReward(holder common.Address) (*big.Int, error)
	RewardAccrued(holder common.Address) (*big.Int, error)
}

// RewardMetadata mirrors the lens view of an account's reward position.
type RewardMetadata struct {
	Balance   *big.Int       `json:"balance"`
	Votes     *big.Int       `json:"votes"`
	Delegate  common.Address `json:"delegate"`
	Allocated *big.Int       `json:"allocated"`
}

// Lens aggregates read-only views across the lending protocol.
type Lens interface {
	RewardBalanceMetadata(rewardToken, comptroller, account common.Address) (RewardMetadata, error)
}

// VotingEntry is the per-target voting summary of a voter.
type VotingEntry struct {
	Target          TargetID `json:"-"`
	Amount          *big.Int `json:"amount"`
	PendingWithdraw *big.Int `json:"pendingWithdraw"`
	ExitBlock       uint64   `json:"exitBlock"`
}

// Active reports whether the entry still holds stake or a pending withdrawal.
func (e VotingEntry) Active() bool {
	return (e.Amount != nil && e.Amount.Sign() > 0) || (e.PendingWithdraw != nil && e.PendingWithdraw.Sign() > 0)
}

// Staking is the delegated staking (vote) module.
type Staking interface {
	Address() common.Address
	TargetKind() TargetKind
	Vote(voter common.Address, target TargetID, amount *big.Int) error
	Revoke(voter common.Address, target TargetID, amount *big.Int) (uint64, error)
	IsWithdrawable(voter common.Address, target TargetID) (bool, error)
	Withdraw(voter common.Address, target TargetID) (*big.Int, error)
	PendingReward(voter common.Address, target TargetID) (*big.Int, error)
	ClaimReward(voter common.Address, target TargetID) (*big.Int, error)
	Entry(voter common.Address, target TargetID) (VotingEntry, error)
	Summary(voter common.Address) ([]VotingEntry, error)
}

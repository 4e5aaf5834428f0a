package wallet

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/events"
	"fildawallet/native/protocol"
)

// Collateral sources reported in events.
const (
	sourceNative  = "native"
	sourceWrapped = "wrapped"
	sourceHTT     = "htt"
	sourceOwner   = "owner"
	sourceStake   = "stake"
)

// RepayResult describes how a repayment was applied.
type RepayResult struct {
	Repaid   *big.Int
	Refunded *big.Int
}

// supply mints deposit-market shares for the wallet with underlying it
// already holds and makes sure the wallet counts as collateral.
func (w *Wallet) supply(b *binding, amount *big.Int, source string) error {
	if _, err := b.deposit.Mint(w.addr, amount); err != nil {
		return external(ProtocolDeposit, "mint", err)
	}
	if !b.comptroller.CheckMembership(w.addr, b.deposit.Address()) {
		if err := b.comptroller.EnterMarkets(w.addr, []common.Address{b.deposit.Address()}); err != nil {
			return external(ProtocolComptroller, "enterMarkets", err)
		}
	}
	w.publish(events.CollateralDeposited{Wallet: w.addr, Source: source, Amount: amount})
	return nil
}

func (w *Wallet) requireWrappedDeposit(b *binding) error {
	if underlying := b.deposit.Underlying(); underlying != b.cfg.WrappedNative {
		return fmt.Errorf("%w: deposit market takes %s", ErrUnsupportedUnderlying, underlying.Hex())
	}
	return nil
}

// DepositCollateral supplies amount of the owner's native currency as
// collateral, wrapping it first when the deposit market takes HTT.
func (w *Wallet) DepositCollateral(caller common.Address, amount *big.Int) error {
	value, err := positive(amount)
	if err != nil {
		return err
	}
	return w.mutate(caller, func(b *binding) error {
		if err := w.collect(b, value); err != nil {
			return err
		}
		if err := w.toUnderlying(b, b.deposit, value); err != nil {
			return err
		}
		return w.supply(b, value, sourceNative)
	})
}

// DepositWrappedNative supplies HTT the wallet already holds.
func (w *Wallet) DepositWrappedNative(caller common.Address, amount *big.Int) error {
	value, err := positive(amount)
	if err != nil {
		return err
	}
	return w.mutate(caller, func(b *binding) error {
		if err := w.requireWrappedDeposit(b); err != nil {
			return err
		}
		if err := w.approve(b, b.deposit.Address(), value); err != nil {
			return err
		}
		return w.supply(b, value, sourceWrapped)
	})
}

// DepositHTT pulls amount of HTT from the owner, using the allowance the owner
// granted the wallet, and supplies it as collateral.
func (w *Wallet) DepositHTT(caller common.Address, amount *big.Int) error {
	value, err := positive(amount)
	if err != nil {
		return err
	}
	return w.mutate(caller, func(b *binding) error {
		if err := w.requireWrappedDeposit(b); err != nil {
			return err
		}
		if granted := b.htt.Allowance(b.owner, w.addr); granted.Cmp(value) < 0 {
			return fmt.Errorf("%w: owner granted %s, need %s", ErrInsufficientAllowance, granted, value)
		}
		if err := b.htt.TransferFrom(w.addr, b.owner, w.addr, value); err != nil {
			return external(ProtocolHTT, "transferFrom", err)
		}
		if err := w.approve(b, b.deposit.Address(), value); err != nil {
			return err
		}
		return w.supply(b, value, sourceHTT)
	})
}

// Allowance returns the HTT the deposit market may pull from the wallet.
func (w *Wallet) Allowance() (*big.Int, error) {
	var out *big.Int
	err := w.view(func(b *binding) error {
		out = b.htt.Allowance(w.addr, b.deposit.Address())
		return nil
	})
	return out, err
}

// CheckMembership reports whether the wallet's deposit counts as collateral.
func (w *Wallet) CheckMembership() (bool, error) {
	var member bool
	err := w.view(func(b *binding) error {
		member = b.comptroller.CheckMembership(w.addr, b.deposit.Address())
		return nil
	})
	return member, err
}

// GetBorrowLimit returns the remaining borrowing headroom.
func (w *Wallet) GetBorrowLimit() (*big.Int, error) {
	var limit *big.Int
	err := w.view(func(b *binding) error {
		liquidity, _, err := b.comptroller.AccountLiquidity(w.addr)
		if err != nil {
			return external(ProtocolComptroller, "getAccountLiquidity", err)
		}
		limit = liquidity
		return nil
	})
	return limit, err
}

// Borrow draws amount from the debt market against the wallet's collateral
// and forwards the proceeds to the owner. The limit is enforced by the
// comptroller.
func (w *Wallet) Borrow(caller common.Address, amount *big.Int) error {
	value, err := positive(amount)
	if err != nil {
		return err
	}
	return w.mutate(caller, func(b *binding) error {
		if err := b.debt.Borrow(w.addr, value); err != nil {
			return external(ProtocolDebt, "borrow", err)
		}
		if err := w.fromUnderlying(b, b.debt, value); err != nil {
			return err
		}
		w.publish(events.Borrowed{Wallet: w.addr, Amount: value})
		return nil
	})
}

// GetBorrowed returns the wallet's outstanding debt including accrued
// interest.
func (w *Wallet) GetBorrowed() (*big.Int, error) {
	var debt *big.Int
	err := w.view(func(b *binding) error {
		var err error
		debt, err = w.borrowed(b)
		return err
	})
	return debt, err
}

func (w *Wallet) borrowed(b *binding) (*big.Int, error) {
	debt, err := b.debt.BorrowBalance(w.addr)
	if err != nil {
		return nil, external(ProtocolDebt, "borrowBalanceCurrent", err)
	}
	return debt, nil
}

// Repay pays down debt with value of the owner's native currency. Anything
// above the outstanding debt is refunded to the owner in the same call.
func (w *Wallet) Repay(caller common.Address, value *big.Int) (RepayResult, error) {
	funds, err := positive(value)
	if err != nil {
		return RepayResult{}, err
	}
	var result RepayResult
	err = w.mutate(caller, func(b *binding) error {
		debt, err := w.borrowed(b)
		if err != nil {
			return err
		}
		if debt.Sign() == 0 {
			return ErrNoDebt
		}
		if err := w.collect(b, funds); err != nil {
			return err
		}
		result, err = w.repayFromWallet(b, funds, sourceOwner)
		return err
	})
	return result, err
}

// repayFromWallet applies funds of native value held by the wallet to its
// debt and refunds the rest to the owner. Debt is read after every earlier
// step of the calling operation.
func (w *Wallet) repayFromWallet(b *binding, funds *big.Int, source string) (RepayResult, error) {
	debt, err := w.borrowed(b)
	if err != nil {
		return RepayResult{}, err
	}
	result := RepayResult{Repaid: big.NewInt(0), Refunded: new(big.Int).Set(funds)}
	if debt.Sign() > 0 && funds.Sign() > 0 {
		amount := funds
		if amount.Cmp(debt) >= 0 {
			amount = debt
		}
		if err := w.toUnderlying(b, b.debt, amount); err != nil {
			return RepayResult{}, err
		}
		repaid, err := b.debt.RepayBorrow(w.addr, w.addr, amount)
		if err != nil {
			return RepayResult{}, external(ProtocolDebt, "repayBorrow", err)
		}
		result.Repaid = repaid
		result.Refunded = new(big.Int).Sub(funds, repaid)
	}
	if err := w.forward(b, result.Refunded); err != nil {
		return RepayResult{}, err
	}
	w.publish(events.Repaid{Wallet: w.addr, Repaid: result.Repaid, Refunded: result.Refunded, Source: source})
	return result, nil
}

// GetExchangeRate returns the deposit market's share to underlying rate,
// scaled by protocol.ExchangeRateScale.
func (w *Wallet) GetExchangeRate() (*big.Int, error) {
	var rate *big.Int
	err := w.view(func(b *binding) error {
		var err error
		if rate, err = b.deposit.ExchangeRate(); err != nil {
			return external(ProtocolDeposit, "exchangeRateCurrent", err)
		}
		return nil
	})
	return rate, err
}

// ClaimFilda sweeps the wallet's FILDA allocation with one comptroller claim
// and forwards the tokens to the owner. The claim is rolled back unless the
// allocation is fully swept afterwards.
func (w *Wallet) ClaimFilda(caller common.Address) (*big.Int, error) {
	var paid *big.Int
	err := w.mutate(caller, func(b *binding) error {
		var err error
		if paid, err = b.comptroller.ClaimReward(w.addr); err != nil {
			return external(ProtocolComptroller, "claimComp", err)
		}
		meta, err := w.rewardMetadata(b)
		if err != nil {
			return err
		}
		if meta.Allocated.Sign() != 0 {
			return fmt.Errorf("%w: %s still allocated", ErrRewardNotSwept, meta.Allocated)
		}
		if paid.Sign() > 0 {
			if err := b.filda.Transfer(w.addr, b.owner, paid); err != nil {
				return external(ProtocolFilda, "transfer", err)
			}
		}
		w.publish(events.LendingRewardClaimed{Wallet: w.addr, Amount: paid})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (w *Wallet) rewardMetadata(b *binding) (protocol.RewardMetadata, error) {
	meta, err := b.lens.RewardBalanceMetadata(b.cfg.RewardToken, b.cfg.Comptroller, w.addr)
	if err != nil {
		return protocol.RewardMetadata{}, external(ProtocolLens, "getCompBalanceMetadataExt", err)
	}
	return meta, nil
}

// GetPendingRewardFilda returns the wallet's FILDA position as reported by the
// lens.
func (w *Wallet) GetPendingRewardFilda() (protocol.RewardMetadata, error) {
	var meta protocol.RewardMetadata
	err := w.view(func(b *binding) error {
		var err error
		meta, err = w.rewardMetadata(b)
		return err
	})
	return meta, err
}

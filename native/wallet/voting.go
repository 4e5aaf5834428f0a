package wallet

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/events"
	"fildawallet/native/protocol"
)

// WithdrawRepayResult describes one withdrawn target whose proceeds went to
// the wallet's debt.
type WithdrawRepayResult struct {
	Target    protocol.TargetID
	Withdrawn *big.Int
	Repaid    *big.Int
	Refunded  *big.Int
}

// Vote stakes value of the owner's native currency on target.
func (w *Wallet) Vote(caller common.Address, target protocol.TargetID, value *big.Int) error {
	amount, err := positive(value)
	if err != nil {
		return err
	}
	return w.mutate(caller, func(b *binding) error {
		if err := checkTarget(b, target); err != nil {
			return err
		}
		if err := w.collect(b, amount); err != nil {
			return err
		}
		if err := b.staking.Vote(w.addr, target, amount); err != nil {
			return external(ProtocolStaking, "vote", err)
		}
		w.publish(events.Voted{Wallet: w.addr, Target: target.String(), Amount: amount})
		return nil
	})
}

// GetVotingEntry returns the wallet's position on a single target.
func (w *Wallet) GetVotingEntry(target protocol.TargetID) (protocol.VotingEntry, error) {
	var entry protocol.VotingEntry
	err := w.view(func(b *binding) error {
		if err := checkTarget(b, target); err != nil {
			return err
		}
		var err error
		if entry, err = b.staking.Entry(w.addr, target); err != nil {
			return external(ProtocolStaking, "getUserVotingSummary", err)
		}
		return nil
	})
	return entry, err
}

// ListVotingEntries returns every target the wallet still has stake or a
// pending withdrawal on.
func (w *Wallet) ListVotingEntries() ([]protocol.VotingEntry, error) {
	var entries []protocol.VotingEntry
	err := w.view(func(b *binding) error {
		var err error
		entries, err = w.summary(b)
		return err
	})
	return entries, err
}

func (w *Wallet) summary(b *binding) ([]protocol.VotingEntry, error) {
	entries, err := b.staking.Summary(w.addr)
	if err != nil {
		return nil, external(ProtocolStaking, "getUserVotingSummary", err)
	}
	return entries, nil
}

// PendingReward returns the staking reward accrued on target.
func (w *Wallet) PendingReward(target protocol.TargetID) (*big.Int, error) {
	var reward *big.Int
	err := w.view(func(b *binding) error {
		if err := checkTarget(b, target); err != nil {
			return err
		}
		var err error
		if reward, err = b.staking.PendingReward(w.addr, target); err != nil {
			return external(ProtocolStaking, "pendingReward", err)
		}
		return nil
	})
	return reward, err
}

// Claim collects the staking reward on target and forwards it to the owner.
// Lending rewards are claimed separately with ClaimFilda.
func (w *Wallet) Claim(caller common.Address, target protocol.TargetID) (*big.Int, error) {
	var paid *big.Int
	err := w.mutate(caller, func(b *binding) error {
		if err := checkTarget(b, target); err != nil {
			return err
		}
		var err error
		if paid, err = b.staking.ClaimReward(w.addr, target); err != nil {
			return external(ProtocolStaking, "claimReward", err)
		}
		if err := w.forward(b, paid); err != nil {
			return err
		}
		w.publish(events.StakingRewardClaimed{Wallet: w.addr, Target: target.String(), Amount: paid})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// RevokeVote starts the exit period for amount staked on target and returns
// the block from which it can be withdrawn.
func (w *Wallet) RevokeVote(caller common.Address, target protocol.TargetID, amount *big.Int) (uint64, error) {
	value, err := positive(amount)
	if err != nil {
		return 0, err
	}
	var exit uint64
	err = w.mutate(caller, func(b *binding) error {
		if err := checkTarget(b, target); err != nil {
			return err
		}
		var err error
		if exit, err = b.staking.Revoke(w.addr, target, value); err != nil {
			return external(ProtocolStaking, "revokeVote", err)
		}
		w.publish(events.VoteRevoked{Wallet: w.addr, Target: target.String(), Amount: value, ExitBlock: exit})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return exit, nil
}

// IsWithdrawable reports whether revoked stake on target has unlocked.
func (w *Wallet) IsWithdrawable(target protocol.TargetID) (bool, error) {
	var ok bool
	err := w.view(func(b *binding) error {
		var err error
		ok, err = w.withdrawable(b, target)
		return err
	})
	return ok, err
}

func (w *Wallet) withdrawable(b *binding, target protocol.TargetID) (bool, error) {
	if err := checkTarget(b, target); err != nil {
		return false, err
	}
	ok, err := b.staking.IsWithdrawable(w.addr, target)
	if err != nil {
		return false, external(ProtocolStaking, "isWithdrawable", err)
	}
	return ok, nil
}

// withdraw pulls unlocked stake on target back into the wallet.
func (w *Wallet) withdraw(b *binding, target protocol.TargetID) (*big.Int, error) {
	ok, err := w.withdrawable(b, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotWithdrawable, target)
	}
	amount, err := b.staking.Withdraw(w.addr, target)
	if err != nil {
		return nil, external(ProtocolStaking, "withdrawVoting", err)
	}
	w.publish(events.VoteWithdrawn{Wallet: w.addr, Target: target.String(), Amount: amount})
	return amount, nil
}

// WithdrawVoting returns unlocked stake on target to the owner.
func (w *Wallet) WithdrawVoting(caller common.Address, target protocol.TargetID) (*big.Int, error) {
	var amount *big.Int
	err := w.mutate(caller, func(b *binding) error {
		var err error
		if amount, err = w.withdraw(b, target); err != nil {
			return err
		}
		return w.forward(b, amount)
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

func (w *Wallet) withdrawAndRepay(b *binding, target protocol.TargetID) (WithdrawRepayResult, error) {
	amount, err := w.withdraw(b, target)
	if err != nil {
		return WithdrawRepayResult{}, err
	}
	repay, err := w.repayFromWallet(b, amount, sourceStake)
	if err != nil {
		return WithdrawRepayResult{}, err
	}
	return WithdrawRepayResult{
		Target:    target,
		Withdrawn: amount,
		Repaid:    repay.Repaid,
		Refunded:  repay.Refunded,
	}, nil
}

// WithdrawAndRepay withdraws unlocked stake on target and applies it to the
// wallet's debt in one step. Proceeds above the debt go to the owner.
func (w *Wallet) WithdrawAndRepay(caller common.Address, target protocol.TargetID) (WithdrawRepayResult, error) {
	var result WithdrawRepayResult
	err := w.mutate(caller, func(b *binding) error {
		var err error
		result, err = w.withdrawAndRepay(b, target)
		return err
	})
	return result, err
}

// WithdrawAndRepayAll runs WithdrawAndRepay over every entry of the voting
// summary. If any entry is not withdrawable nothing is done and the error
// names the first such target.
func (w *Wallet) WithdrawAndRepayAll(caller common.Address) ([]WithdrawRepayResult, error) {
	var results []WithdrawRepayResult
	err := w.mutate(caller, func(b *binding) error {
		entries, err := w.summary(b)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			ok, err := w.withdrawable(b, entry.Target)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrBatchNotWithdrawable, entry.Target)
			}
		}
		results = make([]WithdrawRepayResult, 0, len(entries))
		for _, entry := range entries {
			result, err := w.withdrawAndRepay(b, entry.Target)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

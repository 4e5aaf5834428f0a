package wallet

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "fildawallet/native/common"
	"fildawallet/native/lending"
	"fildawallet/native/protocol"
)

func TestVoteRevokeWithdrawLifecycle(t *testing.T) {
	env := newWalletEnv(t, nil)
	stake := units(5)
	must(t, env.exec(func() error { return env.wallet.Vote(owner, pool17, stake) }))
	env.mine(t, 3)

	env.view(t, func() {
		entry, err := env.wallet.GetVotingEntry(pool17)
		must(t, err)
		if entry.Amount.Cmp(stake) < 0 {
			t.Fatalf("entry amount = %s, want >= %s", entry.Amount, stake)
		}
		if pid, ok := entry.Target.Pool(); !ok || pid != 17 {
			t.Fatalf("entry target = %s", entry.Target)
		}
		reward, err := env.wallet.PendingReward(pool17)
		must(t, err)
		if reward.Sign() < 0 {
			t.Fatalf("negative pending reward %s", reward)
		}
	})

	var paid *big.Int
	must(t, env.exec(func() error {
		var err error
		paid, err = env.wallet.Claim(owner, pool17)
		return err
	}))
	if paid.Cmp(units(3)) != 0 {
		t.Fatalf("claimed %s, want 3e18", paid)
	}

	var exit uint64
	must(t, env.exec(func() error {
		var err error
		exit, err = env.wallet.RevokeVote(owner, pool17, stake)
		return err
	}))
	if exit != 13 {
		t.Fatalf("exit block = %d, want 13", exit)
	}
	env.view(t, func() {
		ok, err := env.wallet.IsWithdrawable(pool17)
		must(t, err)
		if ok {
			t.Fatalf("stake must stay locked before the exit block")
		}
	})
	err := env.exec(func() error {
		_, err := env.wallet.WithdrawVoting(owner, pool17)
		return err
	})
	if !errors.Is(err, ErrNotWithdrawable) {
		t.Fatalf("expected ErrNotWithdrawable, got %v", err)
	}

	env.mine(t, 10)
	var withdrawn *big.Int
	must(t, env.exec(func() error {
		ok, err := env.wallet.IsWithdrawable(pool17)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("stake should unlock at the exit block")
		}
		withdrawn, err = env.wallet.WithdrawVoting(owner, pool17)
		return err
	}))
	if withdrawn.Cmp(stake) != 0 {
		t.Fatalf("withdrawn %s, want %s", withdrawn, stake)
	}
	env.view(t, func() {
		entries, err := env.wallet.ListVotingEntries()
		must(t, err)
		if len(entries) != 0 {
			t.Fatalf("expected no active entries, got %d", len(entries))
		}
		want := new(big.Int).Add(units(10_000), units(3))
		if got := env.chain.Balance(owner); got.Cmp(want) != 0 {
			t.Fatalf("owner balance = %s, want %s", got, want)
		}
	})
}

func TestVoteRejectsForeignTargetKind(t *testing.T) {
	env := newWalletEnv(t, nil)
	validator := protocol.ValidatorTarget(common.HexToAddress("0x000000000000000000000000000000000000dead"))
	err := env.exec(func() error { return env.wallet.Vote(owner, validator, unit) })
	var pe *ProtocolError
	if !errors.Is(err, protocol.ErrInvalidTarget) || errors.As(err, &pe) {
		t.Fatalf("expected ErrInvalidTarget before reaching the staking module, got %v", err)
	}
	env.view(t, func() {
		if _, err := env.wallet.IsWithdrawable(validator); !errors.Is(err, protocol.ErrInvalidTarget) {
			t.Fatalf("IsWithdrawable: expected ErrInvalidTarget, got %v", err)
		}
	})
	err = env.exec(func() error {
		_, err := env.wallet.RevokeVote(owner, validator, unit)
		return err
	})
	if !errors.Is(err, protocol.ErrInvalidTarget) {
		t.Fatalf("RevokeVote: expected ErrInvalidTarget, got %v", err)
	}
	env.view(t, func() {
		if got := env.chain.Balance(owner); got.Cmp(units(10_000)) != 0 {
			t.Fatalf("owner balance changed to %s", got)
		}
	})
}

func TestWithdrawAndRepayAppliesProceeds(t *testing.T) {
	env := newWalletEnv(t, nil)
	stake := units(5)
	must(t, env.exec(func() error {
		if err := env.wallet.DepositCollateral(owner, units(1_000)); err != nil {
			return err
		}
		if err := env.wallet.Borrow(owner, units(3)); err != nil {
			return err
		}
		if err := env.wallet.Vote(owner, pool17, stake); err != nil {
			return err
		}
		_, err := env.wallet.RevokeVote(owner, pool17, stake)
		return err
	}))

	err := env.exec(func() error {
		_, err := env.wallet.WithdrawAndRepay(owner, pool17)
		return err
	})
	if !errors.Is(err, ErrNotWithdrawable) {
		t.Fatalf("expected ErrNotWithdrawable, got %v", err)
	}

	env.mine(t, 10)
	var debt *big.Int
	env.view(t, func() {
		var err error
		debt, err = env.wallet.GetBorrowed()
		must(t, err)
	})
	if debt.Cmp(units(3)) <= 0 {
		t.Fatalf("expected interest on the debt, got %s", debt)
	}

	var result WithdrawRepayResult
	must(t, env.exec(func() error {
		var err error
		result, err = env.wallet.WithdrawAndRepay(owner, pool17)
		return err
	}))
	if result.Withdrawn.Cmp(stake) != 0 || result.Repaid.Cmp(debt) != 0 {
		t.Fatalf("withdrawn=%s repaid=%s, want %s/%s", result.Withdrawn, result.Repaid, stake, debt)
	}
	if refund := new(big.Int).Sub(stake, debt); result.Refunded.Cmp(refund) != 0 {
		t.Fatalf("refunded=%s, want %s", result.Refunded, refund)
	}
	env.view(t, func() {
		left, err := env.wallet.GetBorrowed()
		must(t, err)
		if left.Sign() != 0 {
			t.Fatalf("debt left: %s", left)
		}
		if env.chain.Balance(walletAt).Sign() != 0 {
			t.Fatalf("wallet kept %s", env.chain.Balance(walletAt))
		}
	})
}

// A batch with any locked entry does nothing, even for entries that are
// already withdrawable.
func TestWithdrawAndRepayAllIsAllOrNothing(t *testing.T) {
	env := newWalletEnv(t, nil)
	stake := units(2)
	must(t, env.exec(func() error {
		if err := env.wallet.DepositCollateral(owner, units(1_000)); err != nil {
			return err
		}
		if err := env.wallet.Borrow(owner, units(3)); err != nil {
			return err
		}
		for _, target := range []protocol.TargetID{pool17, pool18} {
			if err := env.wallet.Vote(owner, target, stake); err != nil {
				return err
			}
		}
		_, err := env.wallet.RevokeVote(owner, pool17, stake)
		return err
	}))
	env.mine(t, 10)

	var debtBefore *big.Int
	env.view(t, func() {
		var err error
		debtBefore, err = env.wallet.GetBorrowed()
		must(t, err)
	})

	// The transaction commits even though the batch fails, so any partial
	// effect would persist.
	var batchErr error
	must(t, env.exec(func() error {
		_, batchErr = env.wallet.WithdrawAndRepayAll(owner)
		return nil
	}))
	if !errors.Is(batchErr, ErrBatchNotWithdrawable) {
		t.Fatalf("expected ErrBatchNotWithdrawable, got %v", batchErr)
	}
	env.view(t, func() {
		entry, err := env.wallet.GetVotingEntry(pool17)
		must(t, err)
		if entry.PendingWithdraw.Cmp(stake) != 0 {
			t.Fatalf("pool 17 pending withdraw = %s, want %s", entry.PendingWithdraw, stake)
		}
		debt, err := env.wallet.GetBorrowed()
		must(t, err)
		if debt.Cmp(debtBefore) != 0 {
			t.Fatalf("debt changed from %s to %s", debtBefore, debt)
		}
	})

	must(t, env.exec(func() error {
		_, err := env.wallet.RevokeVote(owner, pool18, stake)
		return err
	}))
	env.mine(t, 10)

	var results []WithdrawRepayResult
	must(t, env.exec(func() error {
		var err error
		results, err = env.wallet.WithdrawAndRepayAll(owner)
		return err
	}))
	if len(results) != 2 {
		t.Fatalf("expected two withdrawals, got %d", len(results))
	}
	if results[0].Repaid.Cmp(stake) != 0 || results[0].Refunded.Sign() != 0 {
		t.Fatalf("first target should go fully to debt: %+v", results[0])
	}
	env.view(t, func() {
		debt, err := env.wallet.GetBorrowed()
		must(t, err)
		if debt.Sign() != 0 {
			t.Fatalf("debt left after batch: %s", debt)
		}
		entries, err := env.wallet.ListVotingEntries()
		must(t, err)
		if len(entries) != 0 {
			t.Fatalf("expected every target unstaked, got %d entries", len(entries))
		}
	})
}

func TestWithdrawAndRepayAllWithNoEntries(t *testing.T) {
	env := newWalletEnv(t, nil)
	var results []WithdrawRepayResult
	must(t, env.exec(func() error {
		var err error
		results, err = env.wallet.WithdrawAndRepayAll(owner)
		return err
	}))
	if len(results) != 0 {
		t.Fatalf("expected empty batch, got %d", len(results))
	}
}

// walletSnapshot captures every balance a failed withdraw-and-repay must
// leave untouched.
type walletSnapshot struct {
	pending map[protocol.TargetID]*big.Int
	wallet  *big.Int
	owner   *big.Int
	debt    *big.Int
}

func (e *walletEnv) snapshot(t *testing.T, targets ...protocol.TargetID) walletSnapshot {
	t.Helper()
	snap := walletSnapshot{pending: make(map[protocol.TargetID]*big.Int)}
	e.view(t, func() {
		for _, target := range targets {
			entry, err := e.wallet.GetVotingEntry(target)
			must(t, err)
			snap.pending[target] = entry.PendingWithdraw
		}
		snap.wallet = e.chain.Balance(walletAt)
		snap.owner = e.chain.Balance(owner)
		debt, err := e.wallet.GetBorrowed()
		must(t, err)
		snap.debt = debt
	})
	return snap
}

func (s walletSnapshot) requireEqual(t *testing.T, got walletSnapshot) {
	t.Helper()
	for target, pending := range s.pending {
		if got.pending[target].Cmp(pending) != 0 {
			t.Fatalf("%s pending withdraw = %s, want %s", target, got.pending[target], pending)
		}
	}
	if got.wallet.Cmp(s.wallet) != 0 || got.owner.Cmp(s.owner) != 0 || got.debt.Cmp(s.debt) != 0 {
		t.Fatalf("balances moved: wallet %s->%s owner %s->%s debt %s->%s",
			s.wallet, got.wallet, s.owner, got.owner, s.debt, got.debt)
	}
}

// Withdrawing succeeds but repaying fails; the withdrawal must be undone.
func TestWithdrawAndRepayRollsBackAfterWithdraw(t *testing.T) {
	env := newWalletEnv(t, nil)
	stake := units(5)
	must(t, env.exec(func() error {
		if err := env.wallet.DepositCollateral(owner, units(1_000)); err != nil {
			return err
		}
		if err := env.wallet.Borrow(owner, units(3)); err != nil {
			return err
		}
		if err := env.wallet.Vote(owner, pool17, stake); err != nil {
			return err
		}
		_, err := env.wallet.RevokeVote(owner, pool17, stake)
		return err
	}))
	env.mine(t, 10)
	env.debt.SetPauses(lending.ActionPauses{Repay: true})
	before := env.snapshot(t, pool17)

	var opErr error
	must(t, env.exec(func() error {
		_, opErr = env.wallet.WithdrawAndRepay(owner, pool17)
		return nil
	}))
	var pe *ProtocolError
	if !errors.As(opErr, &pe) || pe.Protocol != ProtocolDebt {
		t.Fatalf("expected a debt protocol error, got %v", opErr)
	}
	before.requireEqual(t, env.snapshot(t, pool17))
	env.view(t, func() {
		ok, err := env.wallet.IsWithdrawable(pool17)
		must(t, err)
		if !ok {
			t.Fatalf("stake must stay withdrawable after the rollback")
		}
	})
}

func TestWithdrawAndRepayAllRollsBackAfterWithdraw(t *testing.T) {
	env := newWalletEnv(t, nil)
	stake := units(2)
	must(t, env.exec(func() error {
		if err := env.wallet.DepositCollateral(owner, units(1_000)); err != nil {
			return err
		}
		if err := env.wallet.Borrow(owner, units(3)); err != nil {
			return err
		}
		for _, target := range []protocol.TargetID{pool17, pool18} {
			if err := env.wallet.Vote(owner, target, stake); err != nil {
				return err
			}
			if _, err := env.wallet.RevokeVote(owner, target, stake); err != nil {
				return err
			}
		}
		return nil
	}))
	env.mine(t, 10)
	env.debt.SetPauses(lending.ActionPauses{Repay: true})
	before := env.snapshot(t, pool17, pool18)

	var opErr error
	must(t, env.exec(func() error {
		_, opErr = env.wallet.WithdrawAndRepayAll(owner)
		return nil
	}))
	if !errors.Is(opErr, nativecommon.ErrModulePaused) {
		t.Fatalf("expected the paused repay to fail the batch, got %v", opErr)
	}
	before.requireEqual(t, env.snapshot(t, pool17, pool18))
}

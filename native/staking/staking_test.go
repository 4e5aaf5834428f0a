package staking

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core"
	"fildawallet/native/protocol"
)

var (
	voteAdmin = common.HexToAddress("0x000000000000000000000000000000000000ad02")
	voterA    = common.HexToAddress("0x000000000000000000000000000000000000a001")
	voterB    = common.HexToAddress("0x000000000000000000000000000000000000b001")
	moduleAt  = common.HexToAddress("0x0000000000000000000000000000000000000201")
	pool17    = protocol.PoolTarget(17)
	unit      = big.NewInt(1_000_000_000_000_000_000)
)

func newModule(t *testing.T, reserve *big.Int) (*core.Chain, *Module) {
	t.Helper()
	chain, err := core.NewChain(nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	module, err := New(chain, moduleAt, Config{Kind: protocol.TargetPool, Admin: voteAdmin, LockBlocks: 10})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	if err := chain.Deploy(module); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	err = chain.Execute(func() error {
		for _, who := range []common.Address{voterA, voterB} {
			if err := chain.Credit(who, new(big.Int).Mul(big.NewInt(100), unit)); err != nil {
				return err
			}
		}
		if err := chain.Credit(moduleAt, reserve); err != nil {
			return err
		}
		return module.RegisterTarget(voteAdmin, pool17, unit)
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return chain, module
}

func TestVoteAccruesRewardsProRata(t *testing.T) {
	chain, module := newModule(t, new(big.Int).Mul(big.NewInt(1000), unit))
	err := chain.Execute(func() error {
		if err := module.Vote(voterA, pool17, new(big.Int).Mul(big.NewInt(3), unit)); err != nil {
			return err
		}
		return module.Vote(voterB, pool17, unit)
	})
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := chain.Mine(4); err != nil {
		t.Fatalf("mine: %v", err)
	}
	_ = chain.View(func() error {
		a, err := module.PendingReward(voterA, pool17)
		if err != nil {
			t.Fatalf("pending A: %v", err)
		}
		b, err := module.PendingReward(voterB, pool17)
		if err != nil {
			t.Fatalf("pending B: %v", err)
		}
		if a.Cmp(new(big.Int).Mul(big.NewInt(3), unit)) != 0 || b.Cmp(unit) != 0 {
			t.Fatalf("pending A=%s B=%s, want 3e18/1e18", a, b)
		}
		entry, err := module.Entry(voterA, pool17)
		if err != nil {
			t.Fatalf("entry: %v", err)
		}
		if pid, ok := entry.Target.Pool(); !ok || pid != 17 {
			t.Fatalf("entry target = %v", entry.Target)
		}
		return nil
	})

	var paid *big.Int
	err = chain.Execute(func() error {
		var err error
		paid, err = module.ClaimReward(voterB, pool17)
		return err
	})
	if err != nil || paid.Cmp(unit) != 0 {
		t.Fatalf("claim: paid=%v err=%v", paid, err)
	}
}

func TestRevokeLocksUntilExitBlock(t *testing.T) {
	chain, module := newModule(t, big.NewInt(0))
	stake := new(big.Int).Mul(big.NewInt(5), unit)
	var exit uint64
	err := chain.Execute(func() error {
		if err := module.Vote(voterA, pool17, stake); err != nil {
			return err
		}
		var err error
		exit, err = module.Revoke(voterA, pool17, stake)
		return err
	})
	if err != nil {
		t.Fatalf("vote+revoke: %v", err)
	}
	if exit != 10 {
		t.Fatalf("exit block = %d, want 10", exit)
	}

	err = chain.Execute(func() error {
		_, err := module.Withdraw(voterA, pool17)
		return err
	})
	if !errors.Is(err, ErrNotWithdrawable) {
		t.Fatalf("expected ErrNotWithdrawable, got %v", err)
	}

	if _, err := chain.Mine(10); err != nil {
		t.Fatalf("mine: %v", err)
	}
	var withdrawn *big.Int
	err = chain.Execute(func() error {
		ok, err := module.IsWithdrawable(voterA, pool17)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("expected withdrawable at exit block")
		}
		withdrawn, err = module.Withdraw(voterA, pool17)
		return err
	})
	if err != nil || withdrawn.Cmp(stake) != 0 {
		t.Fatalf("withdraw: amount=%v err=%v", withdrawn, err)
	}
	_ = chain.View(func() error {
		summary, err := module.Summary(voterA)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if len(summary) != 0 {
			t.Fatalf("expected empty summary after full withdrawal, got %d entries", len(summary))
		}
		if chain.Balance(voterA).Cmp(new(big.Int).Mul(big.NewInt(100), unit)) != 0 {
			t.Fatalf("voter balance not restored: %s", chain.Balance(voterA))
		}
		return nil
	})
}

func TestTargetKindAndRegistrationChecks(t *testing.T) {
	chain, module := newModule(t, big.NewInt(0))
	validator := protocol.ValidatorTarget(common.HexToAddress("0x000000000000000000000000000000000000dead"))
	err := chain.Execute(func() error { return module.Vote(voterA, validator, unit) })
	if !errors.Is(err, ErrTargetKind) {
		t.Fatalf("expected ErrTargetKind, got %v", err)
	}
	err = chain.Execute(func() error { return module.Vote(voterA, protocol.PoolTarget(3), unit) })
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
	err = chain.Execute(func() error { return module.RegisterTarget(voterA, protocol.PoolTarget(3), unit) })
	if !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	err = chain.Execute(func() error { return module.RegisterTarget(voteAdmin, pool17, unit) })
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
}

func TestClaimFailsWhenReserveEmpty(t *testing.T) {
	chain, module := newModule(t, big.NewInt(0))
	if err := chain.Execute(func() error { return module.Vote(voterA, pool17, unit) }); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := chain.Mine(2); err != nil {
		t.Fatalf("mine: %v", err)
	}
	err := chain.Execute(func() error {
		_, err := module.ClaimReward(voterA, pool17)
		return err
	})
	if !errors.Is(err, ErrReserveExhausted) {
		t.Fatalf("expected ErrReserveExhausted, got %v", err)
	}
}

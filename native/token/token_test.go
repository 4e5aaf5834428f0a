package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	spender = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tokenAt = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	wrapAt  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
)

func newChain(t *testing.T) *core.Chain {
	t.Helper()
	chain, err := core.NewChain(nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return chain
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	chain := newChain(t)
	filda := New(chain, tokenAt, "filda", 18)
	err := chain.Execute(func() error {
		if err := filda.Mint(owner, big.NewInt(100)); err != nil {
			return err
		}
		if err := filda.Approve(owner, spender, big.NewInt(30)); err != nil {
			return err
		}
		return filda.TransferFrom(spender, owner, spender, big.NewInt(20))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	_ = chain.View(func() error {
		if got := filda.Allowance(owner, spender); got.Cmp(big.NewInt(10)) != 0 {
			t.Fatalf("allowance = %s, want 10", got)
		}
		if got := filda.BalanceOf(spender); got.Cmp(big.NewInt(20)) != 0 {
			t.Fatalf("spender balance = %s, want 20", got)
		}
		if filda.Symbol() != "FILDA" {
			t.Fatalf("symbol not normalised: %s", filda.Symbol())
		}
		return nil
	})

	err = chain.Execute(func() error {
		return filda.TransferFrom(spender, owner, spender, big.NewInt(11))
	})
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestMaxAllowanceIsNotDecremented(t *testing.T) {
	chain := newChain(t)
	filda := New(chain, tokenAt, "FILDA", 18)
	err := chain.Execute(func() error {
		if err := filda.Mint(owner, big.NewInt(5)); err != nil {
			return err
		}
		if err := filda.Approve(owner, spender, MaxAllowance); err != nil {
			return err
		}
		return filda.TransferFrom(spender, owner, spender, big.NewInt(5))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	_ = chain.View(func() error {
		if filda.Allowance(owner, spender).Cmp(MaxAllowance) != 0 {
			t.Fatalf("max allowance was decremented")
		}
		return nil
	})
}

func TestBurnAndOverdraw(t *testing.T) {
	chain := newChain(t)
	filda := New(chain, tokenAt, "FILDA", 18)
	err := chain.Execute(func() error {
		if err := filda.Mint(owner, big.NewInt(5)); err != nil {
			return err
		}
		return filda.Burn(owner, big.NewInt(2))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	err = chain.Execute(func() error { return filda.Transfer(owner, spender, big.NewInt(4)) })
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	_ = chain.View(func() error {
		if filda.TotalSupply().Cmp(big.NewInt(3)) != 0 {
			t.Fatalf("supply = %s, want 3", filda.TotalSupply())
		}
		return nil
	})
}

func TestWrappedRoundTrip(t *testing.T) {
	chain := newChain(t)
	htt := NewWrapped(chain, wrapAt, "HTT")
	err := chain.Execute(func() error {
		if err := chain.Credit(owner, big.NewInt(50)); err != nil {
			return err
		}
		if err := htt.Deposit(owner, big.NewInt(40)); err != nil {
			return err
		}
		return htt.Withdraw(owner, big.NewInt(15))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	_ = chain.View(func() error {
		if got := chain.Balance(owner); got.Cmp(big.NewInt(25)) != 0 {
			t.Fatalf("native balance = %s, want 25", got)
		}
		if got := htt.BalanceOf(owner); got.Cmp(big.NewInt(25)) != 0 {
			t.Fatalf("wrapped balance = %s, want 25", got)
		}
		if got := chain.Balance(wrapAt); got.Cmp(big.NewInt(25)) != 0 {
			t.Fatalf("backing = %s, want 25", got)
		}
		return nil
	})
}

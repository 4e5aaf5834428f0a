package routes

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/config"
	"fildawallet/native/protocol"
	"fildawallet/native/wallet"
)

type walletInfo struct {
	Wallet   string `json:"wallet"`
	Owner    string `json:"owner"`
	Registry string `json:"registry"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type membershipResponse struct {
	Member bool `json:"member"`
}

type rewardResponse struct {
	Balance   string `json:"balance"`
	Votes     string `json:"votes"`
	Delegate  string `json:"delegate"`
	Allocated string `json:"allocated"`
}

type votingEntry struct {
	Target          string `json:"target"`
	Amount          string `json:"amount"`
	PendingWithdraw string `json:"pendingWithdraw"`
	ExitBlock       uint64 `json:"exitBlock"`
}

type withdrawableResponse struct {
	Withdrawable bool `json:"withdrawable"`
}

type repayResponse struct {
	Repaid   string `json:"repaid"`
	Refunded string `json:"refunded"`
}

type revokeResponse struct {
	ExitBlock uint64 `json:"exitBlock"`
}

type withdrawRepayResponse struct {
	Target    string `json:"target"`
	Withdrawn string `json:"withdrawn"`
	Repaid    string `json:"repaid"`
	Refunded  string `json:"refunded"`
}

func toVotingEntry(e protocol.VotingEntry) votingEntry {
	return votingEntry{
		Target:          e.Target.String(),
		Amount:          amountString(e.Amount),
		PendingWithdraw: amountString(e.PendingWithdraw),
		ExitBlock:       e.ExitBlock,
	}
}

func toWithdrawRepay(res wallet.WithdrawRepayResult) withdrawRepayResponse {
	return withdrawRepayResponse{
		Target:    res.Target.String(),
		Withdrawn: amountString(res.Withdrawn),
		Repaid:    amountString(res.Repaid),
		Refunded:  amountString(res.Refunded),
	}
}

// viewWallet runs fn against the {wallet} of the request in a read-only
// transaction.
func (s *service) viewWallet(w http.ResponseWriter, r *http.Request, fn func(*wallet.Wallet) (interface{}, error)) {
	addr, err := addressParam(r, "wallet")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var out interface{}
	err = s.chain.View(func() error {
		wl, err := s.factory.Open(addr)
		if err != nil {
			return err
		}
		out, err = fn(wl)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// mutateWallet runs fn on behalf of the authenticated caller in one
// transaction. value is charged against the caller's quota first.
func (s *service) mutateWallet(w http.ResponseWriter, r *http.Request, module string, value *big.Int, fn func(common.Address, *wallet.Wallet) (interface{}, error)) {
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	addr, err := addressParam(r, "wallet")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if value != nil && value.Sign() > 0 {
		if err := s.quota.Charge(caller, 0, value); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	var out interface{}
	err = s.write(module, func() error {
		wl, err := s.factory.Open(addr)
		if err != nil {
			return err
		}
		out, err = fn(caller, wl)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *service) walletInfo(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		owner, err := wl.Owner()
		if err != nil {
			return nil, err
		}
		reg, err := wl.Registry()
		if err != nil {
			return nil, err
		}
		return walletInfo{Wallet: wl.Address().Hex(), Owner: owner.Hex(), Registry: reg.Hex()}, nil
	})
}

func amountView(get func() (*big.Int, error)) (interface{}, error) {
	v, err := get()
	if err != nil {
		return nil, err
	}
	return amountResponse{Amount: amountString(v)}, nil
}

func (s *service) borrowLimit(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) { return amountView(wl.GetBorrowLimit) })
}

func (s *service) borrowed(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) { return amountView(wl.GetBorrowed) })
}

func (s *service) exchangeRate(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) { return amountView(wl.GetExchangeRate) })
}

func (s *service) allowance(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) { return amountView(wl.Allowance) })
}

func (s *service) membership(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		member, err := wl.CheckMembership()
		if err != nil {
			return nil, err
		}
		return membershipResponse{Member: member}, nil
	})
}

func (s *service) rewards(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		meta, err := wl.GetPendingRewardFilda()
		if err != nil {
			return nil, err
		}
		return rewardResponse{
			Balance:   amountString(meta.Balance),
			Votes:     amountString(meta.Votes),
			Delegate:  meta.Delegate.Hex(),
			Allocated: amountString(meta.Allocated),
		}, nil
	})
}

func (s *service) votes(w http.ResponseWriter, r *http.Request) {
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		entries, err := wl.ListVotingEntries()
		if err != nil {
			return nil, err
		}
		out := make([]votingEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, toVotingEntry(e))
		}
		return out, nil
	})
}

func (s *service) vote(w http.ResponseWriter, r *http.Request) {
	target, err := targetParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		entry, err := wl.GetVotingEntry(target)
		if err != nil {
			return nil, err
		}
		return toVotingEntry(entry), nil
	})
}

func (s *service) pendingReward(w http.ResponseWriter, r *http.Request) {
	target, err := targetParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		return amountView(func() (*big.Int, error) { return wl.PendingReward(target) })
	})
}

func (s *service) withdrawable(w http.ResponseWriter, r *http.Request) {
	target, err := targetParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.viewWallet(w, r, func(wl *wallet.Wallet) (interface{}, error) {
		ok, err := wl.IsWithdrawable(target)
		if err != nil {
			return nil, err
		}
		return withdrawableResponse{Withdrawable: ok}, nil
	})
}

// amountMutation decodes an amount body and runs fn. Only native amounts are
// charged against the caller's value quota; token amounts are not.
func (s *service) amountMutation(w http.ResponseWriter, r *http.Request, module string, native bool, fn func(common.Address, *wallet.Wallet, *big.Int) (interface{}, error)) {
	amount, err := amountBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var value *big.Int
	if native {
		value = amount
	}
	s.mutateWallet(w, r, module, value, func(caller common.Address, wl *wallet.Wallet) (interface{}, error) {
		return fn(caller, wl, amount)
	})
}

func (s *service) deposit(w http.ResponseWriter, r *http.Request) {
	s.amountMutation(w, r, config.ModuleLending, true, func(caller common.Address, wl *wallet.Wallet, amount *big.Int) (interface{}, error) {
		return amountResponse{Amount: amount.String()}, wl.DepositCollateral(caller, amount)
	})
}

func (s *service) depositHTT(w http.ResponseWriter, r *http.Request) {
	s.amountMutation(w, r, config.ModuleLending, false, func(caller common.Address, wl *wallet.Wallet, amount *big.Int) (interface{}, error) {
		return amountResponse{Amount: amount.String()}, wl.DepositHTT(caller, amount)
	})
}

func (s *service) depositWrapped(w http.ResponseWriter, r *http.Request) {
	s.amountMutation(w, r, config.ModuleLending, false, func(caller common.Address, wl *wallet.Wallet, amount *big.Int) (interface{}, error) {
		return amountResponse{Amount: amount.String()}, wl.DepositWrappedNative(caller, amount)
	})
}

func (s *service) borrow(w http.ResponseWriter, r *http.Request) {
	s.amountMutation(w, r, config.ModuleLending, true, func(caller common.Address, wl *wallet.Wallet, amount *big.Int) (interface{}, error) {
		return amountResponse{Amount: amount.String()}, wl.Borrow(caller, amount)
	})
}

func (s *service) repay(w http.ResponseWriter, r *http.Request) {
	s.amountMutation(w, r, config.ModuleLending, true, func(caller common.Address, wl *wallet.Wallet, amount *big.Int) (interface{}, error) {
		res, err := wl.Repay(caller, amount)
		if err != nil {
			return nil, err
		}
		return repayResponse{Repaid: amountString(res.Repaid), Refunded: amountString(res.Refunded)}, nil
	})
}

func (s *service) claimFilda(w http.ResponseWriter, r *http.Request) {
	s.mutateWallet(w, r, config.ModuleLending, nil, func(caller common.Address, wl *wallet.Wallet) (interface{}, error) {
		return amountView(func() (*big.Int, error) { return wl.ClaimFilda(caller) })
	})
}

// targetMutation resolves {target} and applies fn to it.
func (s *service) targetMutation(w http.ResponseWriter, r *http.Request, value *big.Int, fn func(common.Address, *wallet.Wallet, protocol.TargetID) (interface{}, error)) {
	target, err := targetParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.mutateWallet(w, r, config.ModuleStaking, value, func(caller common.Address, wl *wallet.Wallet) (interface{}, error) {
		return fn(caller, wl, target)
	})
}

func (s *service) castVote(w http.ResponseWriter, r *http.Request) {
	amount, err := amountBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.targetMutation(w, r, amount, func(caller common.Address, wl *wallet.Wallet, target protocol.TargetID) (interface{}, error) {
		if err := wl.Vote(caller, target, amount); err != nil {
			return nil, err
		}
		entry, err := wl.GetVotingEntry(target)
		if err != nil {
			return nil, err
		}
		return toVotingEntry(entry), nil
	})
}

func (s *service) claim(w http.ResponseWriter, r *http.Request) {
	s.targetMutation(w, r, nil, func(caller common.Address, wl *wallet.Wallet, target protocol.TargetID) (interface{}, error) {
		return amountView(func() (*big.Int, error) { return wl.Claim(caller, target) })
	})
}

func (s *service) revoke(w http.ResponseWriter, r *http.Request) {
	amount, err := amountBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.targetMutation(w, r, nil, func(caller common.Address, wl *wallet.Wallet, target protocol.TargetID) (interface{}, error) {
		exit, err := wl.RevokeVote(caller, target, amount)
		if err != nil {
			return nil, err
		}
		return revokeResponse{ExitBlock: exit}, nil
	})
}

func (s *service) withdraw(w http.ResponseWriter, r *http.Request) {
	s.targetMutation(w, r, nil, func(caller common.Address, wl *wallet.Wallet, target protocol.TargetID) (interface{}, error) {
		return amountView(func() (*big.Int, error) { return wl.WithdrawVoting(caller, target) })
	})
}

func (s *service) withdrawAndRepay(w http.ResponseWriter, r *http.Request) {
	s.targetMutation(w, r, nil, func(caller common.Address, wl *wallet.Wallet, target protocol.TargetID) (interface{}, error) {
		res, err := wl.WithdrawAndRepay(caller, target)
		if err != nil {
			return nil, err
		}
		return toWithdrawRepay(res), nil
	})
}

func (s *service) withdrawAndRepayAll(w http.ResponseWriter, r *http.Request) {
	s.mutateWallet(w, r, config.ModuleStaking, nil, func(caller common.Address, wl *wallet.Wallet) (interface{}, error) {
		results, err := wl.WithdrawAndRepayAll(caller)
		if err != nil {
			return nil, err
		}
		out := make([]withdrawRepayResponse, 0, len(results))
		for _, res := range results {
			out = append(out, toWithdrawRepay(res))
		}
		return out, nil
	})
}

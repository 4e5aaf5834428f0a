package routes

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/config"
	"fildawallet/native/factory"
	"fildawallet/observability"
)

type walletOwner struct {
	Owner  string `json:"owner"`
	Wallet string `json:"wallet"`
}

func (s *service) makeWallet(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		made  common.Address
		count uint64
	)
	err = s.write(config.ModuleFactory, func() error {
		var err error
		if made, err = s.factory.MakeWallet(caller, s.registry); err != nil {
			return err
		}
		count = s.factory.Count()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.Chain().SetWallets(count)
	writeJSON(w, http.StatusCreated, walletOwner{Owner: caller.Hex(), Wallet: made.Hex()})
}

func (s *service) getWallet(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		made common.Address
		ok   bool
	)
	_ = s.chain.View(func() error {
		made, ok = s.factory.GetWallet(owner)
		return nil
	})
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: no wallet for owner %s", factory.ErrUnknownWallet, owner.Hex()))
		return
	}
	writeJSON(w, http.StatusOK, walletOwner{Owner: owner.Hex(), Wallet: made.Hex()})
}

func (s *service) getOwner(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "wallet")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		owner common.Address
		ok    bool
	)
	_ = s.chain.View(func() error {
		owner, ok = s.factory.GetOwner(addr)
		return nil
	})
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: %s", factory.ErrUnknownWallet, addr.Hex()))
		return
	}
	writeJSON(w, http.StatusOK, walletOwner{Owner: owner.Hex(), Wallet: addr.Hex()})
}

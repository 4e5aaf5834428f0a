package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/native/protocol"
)

// Wrapped is a token backed one-to-one by native value held at its address.
type Wrapped struct {
	*Token
}

// NewWrapped binds the wrapped native token stored under addr.
func NewWrapped(host protocol.Host, addr common.Address, symbol string) *Wrapped {
	return &Wrapped{Token: New(host, addr, symbol, 18)}
}

// Deposit locks amount of account's native balance and mints the same amount
// of tokens to account.
func (w *Wrapped) Deposit(account common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	if w == nil || w.host == nil {
		return errNilHost
	}
	if err := w.host.Transfer(account, w.addr, amount); err != nil {
		return err
	}
	return w.Mint(account, amount)
}

// Withdraw burns amount of account's tokens and releases the native backing.
func (w *Wrapped) Withdraw(account common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	if w == nil || w.host == nil {
		return errNilHost
	}
	if err := w.Burn(account, amount); err != nil {
		return err
	}
	return w.host.Transfer(w.addr, account, amount)
}

var _ protocol.WrappedNative = (*Wrapped)(nil)

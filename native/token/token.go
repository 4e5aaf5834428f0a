package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"fildawallet/core/types"
	"fildawallet/native/protocol"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrZeroAddress           = errors.New("token: zero address")
	errNilHost               = errors.New("token: host not configured")
)

const (
	// EventTransfer is emitted for every balance movement, mints and burns included.
	EventTransfer = "token.transfer"
	// EventApproval is emitted when an allowance is set.
	EventApproval = "token.approval"
)

// MaxAllowance is the sentinel allowance that is never decremented.
var MaxAllowance = new(big.Int).Set(math.MaxBig256)

var (
	supplyKey       = []byte("supply")
	balancePrefix   = "balance/"
	allowancePrefix = "allowance/"
)

// Token is a fungible token whose ledger lives in the host's contract storage.
type Token struct {
	host     protocol.Host
	addr     common.Address
	symbol   string
	decimals uint8
}

// New binds a token ledger stored under addr.
func New(host protocol.Host, addr common.Address, symbol string, decimals uint8) *Token {
	return &Token{host: host, addr: addr, symbol: strings.ToUpper(strings.TrimSpace(symbol)), decimals: decimals}
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func balanceKey(account common.Address) []byte {
	return append([]byte(balancePrefix), account.Bytes()...)
}

func allowanceKey(owner, spender common.Address) []byte {
	key := append([]byte(allowancePrefix), owner.Bytes()...)
	return append(key, spender.Bytes()...)
}

func (t *Token) load(key []byte) *big.Int {
	value := new(big.Int)
	if t == nil || t.host == nil {
		return value
	}
	if ok, err := t.host.KVGet(t.addr, key, value); err != nil || !ok {
		return new(big.Int)
	}
	return value
}

func (t *Token) store(key []byte, value *big.Int) error {
	if t == nil || t.host == nil {
		return errNilHost
	}
	return t.host.KVPut(t.addr, key, value)
}

func validAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return new(big.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return amount, nil
}

// TotalSupply returns the outstanding supply.
func (t *Token) TotalSupply() *big.Int { return t.load(supplyKey) }

// BalanceOf returns the balance held by account.
func (t *Token) BalanceOf(account common.Address) *big.Int {
	return t.load(balanceKey(account))
}

// Allowance returns how much spender may pull from owner.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	return t.load(allowanceKey(owner, spender))
}

// Approve sets the allowance of spender over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := t.store(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	t.emit(EventApproval, map[string]string{
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.String(),
	})
	return nil
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	return t.move(from, to, amount)
}

// TransferFrom moves amount on behalf of from, consuming spender's allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	if spender != from {
		allowance := t.Allowance(from, spender)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s may spend %s of %s, needs %s", ErrInsufficientAllowance, spender.Hex(), allowance, from.Hex(), amount)
		}
		if allowance.Cmp(MaxAllowance) != 0 {
			if err := t.store(allowanceKey(from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
				return err
			}
		}
	}
	return t.move(from, to, amount)
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, t.symbol, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := t.store(balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := t.store(balanceKey(to), new(big.Int).Add(t.BalanceOf(to), amount)); err != nil {
		return err
	}
	t.emitTransfer(from, to, amount)
	return nil
}

// Mint issues amount to account.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := t.store(supplyKey, new(big.Int).Add(t.TotalSupply(), amount)); err != nil {
		return err
	}
	if err := t.store(balanceKey(to), new(big.Int).Add(t.BalanceOf(to), amount)); err != nil {
		return err
	}
	t.emitTransfer(common.Address{}, to, amount)
	return nil
}

// Burn destroys amount held by account.
func (t *Token) Burn(from common.Address, amount *big.Int) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, t.symbol, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := t.store(balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := t.store(supplyKey, new(big.Int).Sub(t.TotalSupply(), amount)); err != nil {
		return err
	}
	t.emitTransfer(from, common.Address{}, amount)
	return nil
}

func (t *Token) emitTransfer(from, to common.Address, amount *big.Int) {
	t.emit(EventTransfer, map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	})
}

func (t *Token) emit(kind string, attrs map[string]string) {
	if t == nil || t.host == nil {
		return
	}
	attrs["symbol"] = t.symbol
	t.host.Emit(t.addr, &types.Event{Type: kind, Attributes: attrs})
}

var _ protocol.Token = (*Token)(nil)

// Package wallet implements the per-owner custodial account. A wallet holds
// no ledger of its own: collateral and debt live in the lending market and
// stake lives in the staking module, all keyed by the wallet's address. The
// wallet owns the decision logic that moves value between them and back to
// its owner.
package wallet

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"fildawallet/core/events"
	"fildawallet/native/protocol"
	"fildawallet/native/registry"
)

var (
	ownerKey    = []byte("owner")
	registryKey = []byte("registry")
)

// Wallet is a handle on the account stored at its address. Handles are
// stateless; any number of them may be opened for the same wallet.
type Wallet struct {
	backend protocol.Backend
	addr    common.Address
}

// New binds the wallet stored at addr.
func New(backend protocol.Backend, addr common.Address) *Wallet {
	return &Wallet{backend: backend, addr: addr}
}

// Address returns the wallet identity used in every external protocol.
func (w *Wallet) Address() common.Address { return w.addr }

// Initialize binds a fresh wallet to its owner and a sealed registry. It is
// invoked once by the factory.
func (w *Wallet) Initialize(owner, registryAddr common.Address) error {
	if w == nil || w.backend == nil {
		return errNilBackend
	}
	if owner == (common.Address{}) || registryAddr == (common.Address{}) {
		return fmt.Errorf("wallet: owner and registry must be set")
	}
	var existing common.Address
	ok, err := w.backend.KVGet(w.addr, ownerKey, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	if !registry.New(w.backend, registryAddr).Sealed() {
		return ErrRegistryNotSealed
	}
	if err := w.backend.KVPut(w.addr, ownerKey, owner); err != nil {
		return err
	}
	return w.backend.KVPut(w.addr, registryKey, registryAddr)
}

func (w *Wallet) load(key []byte) (common.Address, error) {
	if w == nil || w.backend == nil {
		return common.Address{}, errNilBackend
	}
	var addr common.Address
	ok, err := w.backend.KVGet(w.addr, key, &addr)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, errNotInitialized
	}
	return addr, nil
}

// Owner returns the account allowed to mutate the wallet.
func (w *Wallet) Owner() (common.Address, error) { return w.load(ownerKey) }

// Registry returns the registry the wallet was made against.
func (w *Wallet) Registry() (common.Address, error) { return w.load(registryKey) }

func (w *Wallet) authorize(caller common.Address) (common.Address, error) {
	owner, err := w.Owner()
	if err != nil {
		return common.Address{}, err
	}
	if caller != owner {
		return common.Address{}, ErrNotOwner
	}
	return owner, nil
}

// binding is the set of collaborators resolved from the registry for one call.
type binding struct {
	cfg         registry.Config
	owner       common.Address
	deposit     protocol.Market
	debt        protocol.Market
	comptroller protocol.Comptroller
	lens        protocol.Lens
	staking     protocol.Staking
	htt         protocol.WrappedNative
	filda       protocol.Token
}

func (w *Wallet) bind() (*binding, error) {
	owner, err := w.Owner()
	if err != nil {
		return nil, err
	}
	regAddr, err := w.Registry()
	if err != nil {
		return nil, err
	}
	cfg, err := registry.New(w.backend, regAddr).Snapshot()
	if err != nil {
		return nil, external(ProtocolRegistry, "snapshot", err)
	}
	b := &binding{cfg: cfg, owner: owner}
	if b.deposit, err = w.backend.Market(cfg.DepositMarket); err != nil {
		return nil, external(ProtocolRegistry, "resolve deposit", err)
	}
	if b.debt, err = w.backend.Market(cfg.BorrowMarket); err != nil {
		return nil, external(ProtocolRegistry, "resolve debt", err)
	}
	if b.comptroller, err = w.backend.Comptroller(cfg.Comptroller); err != nil {
		return nil, external(ProtocolRegistry, "resolve comptroller", err)
	}
	if b.lens, err = w.backend.Lens(cfg.Lens); err != nil {
		return nil, external(ProtocolRegistry, "resolve lens", err)
	}
	if b.staking, err = w.backend.Staking(cfg.Staking); err != nil {
		return nil, external(ProtocolRegistry, "resolve vote", err)
	}
	if b.htt, err = w.backend.WrappedNative(cfg.WrappedNative); err != nil {
		return nil, external(ProtocolRegistry, "resolve htt", err)
	}
	if b.filda, err = w.backend.Token(cfg.RewardToken); err != nil {
		return nil, external(ProtocolRegistry, "resolve filda", err)
	}
	return b, nil
}

// mutate runs fn for the owner as one all-or-nothing step: every state change
// made on the way is reverted if fn fails.
func (w *Wallet) mutate(caller common.Address, fn func(b *binding) error) error {
	if _, err := w.authorize(caller); err != nil {
		return err
	}
	b, err := w.bind()
	if err != nil {
		return err
	}
	snap := w.backend.Snapshot()
	if err := fn(b); err != nil {
		w.backend.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (w *Wallet) view(fn func(b *binding) error) error {
	b, err := w.bind()
	if err != nil {
		return err
	}
	return fn(b)
}

// checkTarget rejects targets of a kind the registry's staking generation
// does not accept.
func checkTarget(b *binding, target protocol.TargetID) error {
	if !target.Valid() {
		return protocol.ErrInvalidTarget
	}
	if target.Kind() != b.cfg.TargetKind {
		return fmt.Errorf("%w: %s is a %s target, registry takes %s", protocol.ErrInvalidTarget, target, target.Kind(), b.cfg.TargetKind)
	}
	return nil
}

func positive(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

func (w *Wallet) publish(payload events.Payload) {
	events.Publish(w.backend, w.addr, payload)
}

// collect moves native value from the owner into the wallet.
func (w *Wallet) collect(b *binding, amount *big.Int) error {
	return external(ProtocolBank, "transfer", w.backend.Transfer(b.owner, w.addr, amount))
}

// forward pays native value held by the wallet out to the owner.
func (w *Wallet) forward(b *binding, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return external(ProtocolBank, "transfer", w.backend.Transfer(w.addr, b.owner, amount))
}

// approve makes sure spender may pull at least amount of HTT from the wallet.
func (w *Wallet) approve(b *binding, spender common.Address, amount *big.Int) error {
	if b.htt.Allowance(w.addr, spender).Cmp(amount) >= 0 {
		return nil
	}
	return external(ProtocolHTT, "approve", b.htt.Approve(w.addr, spender, math.MaxBig256))
}

// toUnderlying converts native value held by the wallet into what market
// accepts and approves the market to pull it.
func (w *Wallet) toUnderlying(b *binding, market protocol.Market, amount *big.Int) error {
	switch underlying := market.Underlying(); underlying {
	case common.Address{}:
		return nil
	case b.cfg.WrappedNative:
		if err := b.htt.Deposit(w.addr, amount); err != nil {
			return external(ProtocolHTT, "deposit", err)
		}
		return w.approve(b, market.Address(), amount)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedUnderlying, underlying.Hex())
	}
}

// fromUnderlying pays amount of market's underlying held by the wallet to the
// owner as native value.
func (w *Wallet) fromUnderlying(b *binding, market protocol.Market, amount *big.Int) error {
	switch underlying := market.Underlying(); underlying {
	case common.Address{}:
	case b.cfg.WrappedNative:
		if err := b.htt.Withdraw(w.addr, amount); err != nil {
			return external(ProtocolHTT, "withdraw", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedUnderlying, underlying.Hex())
	}
	return w.forward(b, amount)
}

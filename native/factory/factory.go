// Package factory creates wallets and keeps the owner to wallet index. Each
// owner gets at most one wallet and entries are never removed.
package factory

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/events"
	"fildawallet/native/protocol"
	"fildawallet/native/registry"
	"fildawallet/native/wallet"
)

var (
	ErrWalletExists  = errors.New("factory: owner already has a wallet")
	ErrUnknownWallet = errors.New("factory: unknown wallet")
	ErrZeroOwner     = errors.New("factory: owner must not be the zero address")
	errNilBackend    = errors.New("factory: backend not configured")
)

var countKey = []byte("count")

// Backend is the environment wallets are created in. Wallet addresses are
// derived from the factory address and its creation nonce.
type Backend interface {
	protocol.Backend
	CreateAddress(deployer common.Address) common.Address
}

// Factory persists the owner index under its contract address.
type Factory struct {
	backend Backend
	addr    common.Address
}

// New binds the factory stored at addr.
func New(backend Backend, addr common.Address) *Factory {
	return &Factory{backend: backend, addr: addr}
}

func (f *Factory) Address() common.Address { return f.addr }

func ownerKey(owner common.Address) []byte {
	return append([]byte("owner/"), owner.Bytes()...)
}

func walletKey(w common.Address) []byte {
	return append([]byte("wallet/"), w.Bytes()...)
}

func (f *Factory) lookup(key []byte) (common.Address, bool) {
	if f == nil || f.backend == nil {
		return common.Address{}, false
	}
	var addr common.Address
	ok, err := f.backend.KVGet(f.addr, key, &addr)
	if err != nil || !ok {
		return common.Address{}, false
	}
	return addr, true
}

// MakeWallet creates a wallet owned by caller and bound to the sealed
// registry at registryAddr. A second call for the same owner fails with
// ErrWalletExists.
func (f *Factory) MakeWallet(caller, registryAddr common.Address) (common.Address, error) {
	if f == nil || f.backend == nil {
		return common.Address{}, errNilBackend
	}
	if caller == (common.Address{}) {
		return common.Address{}, ErrZeroOwner
	}
	if existing, ok := f.GetWallet(caller); ok {
		return common.Address{}, fmt.Errorf("%w: %s owns %s", ErrWalletExists, caller.Hex(), existing.Hex())
	}
	if !registry.New(f.backend, registryAddr).Sealed() {
		return common.Address{}, fmt.Errorf("%w: %s", registry.ErrRegistryNotSealed, registryAddr.Hex())
	}

	snap := f.backend.Snapshot()
	addr, err := f.create(caller, registryAddr)
	if err != nil {
		f.backend.RevertToSnapshot(snap)
		return common.Address{}, err
	}
	return addr, nil
}

func (f *Factory) create(owner, registryAddr common.Address) (common.Address, error) {
	addr := f.backend.CreateAddress(f.addr)
	if err := wallet.New(f.backend, addr).Initialize(owner, registryAddr); err != nil {
		return common.Address{}, err
	}
	if err := f.backend.KVPut(f.addr, ownerKey(owner), addr); err != nil {
		return common.Address{}, err
	}
	if err := f.backend.KVPut(f.addr, walletKey(addr), owner); err != nil {
		return common.Address{}, err
	}
	if err := f.backend.KVPut(f.addr, countKey, f.Count()+1); err != nil {
		return common.Address{}, err
	}
	events.Publish(f.backend, f.addr, events.WalletCreated{Owner: owner, Wallet: addr, Registry: registryAddr})
	return addr, nil
}

// GetWallet returns the wallet of owner, if any.
func (f *Factory) GetWallet(owner common.Address) (common.Address, bool) {
	return f.lookup(ownerKey(owner))
}

// GetOwner returns the owner of w, if w was made by this factory.
func (f *Factory) GetOwner(w common.Address) (common.Address, bool) {
	return f.lookup(walletKey(w))
}

// Open returns a handle on a wallet made by this factory.
func (f *Factory) Open(w common.Address) (*wallet.Wallet, error) {
	if f == nil || f.backend == nil {
		return nil, errNilBackend
	}
	if _, ok := f.GetOwner(w); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, w.Hex())
	}
	return wallet.New(f.backend, w), nil
}

// Count returns the number of wallets made.
func (f *Factory) Count() uint64 {
	if f == nil || f.backend == nil {
		return 0
	}
	var count uint64
	if ok, err := f.backend.KVGet(f.addr, countKey, &count); err != nil || !ok {
		return 0
	}
	return count
}

package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"fildawallet/core/state"
	"fildawallet/core/types"
	"fildawallet/crypto"
	"fildawallet/native/protocol"
	"fildawallet/storage"
)

var (
	// ErrContractExists is returned when deploying over an occupied address.
	ErrContractExists = errors.New("chain: contract already deployed at address")
	// ErrZeroAddress is returned when deploying a contract without an address.
	ErrZeroAddress = errors.New("chain: contract address must not be zero")
)

var heightKey = []byte("chain:height")

const defaultEventRetention = 1024

// Contract is anything that can be registered in the chain directory.
type Contract interface {
	Address() common.Address
}

// Chain is the single-process host the wallet subsystem executes against. It
// owns the journaled state, the block height and the contract directory.
//
// Every state access must happen inside Execute or View. The Host methods on
// Chain assume the caller already holds the execution lock.
type Chain struct {
	mu     sync.Mutex
	db     storage.Database
	state  *state.StateDB
	height uint64

	dirMu     sync.RWMutex
	contracts map[common.Address]Contract

	eventsMu  sync.RWMutex
	events    []*types.Event
	retention int
	hooks     []func([]*types.Event)

	logger *slog.Logger
}

// Option customises a Chain.
type Option func(*Chain)

// WithLogger routes chain diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventRetention bounds the number of committed events kept in memory.
func WithEventRetention(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.retention = n
		}
	}
}

// NewChain opens a chain over db, restoring the persisted block height.
func NewChain(db storage.Database, opts ...Option) (*Chain, error) {
	if db == nil {
		db = storage.NewMemDB()
	}
	c := &Chain{
		db:        db,
		state:     state.New(db),
		contracts: make(map[common.Address]Contract),
		retention: defaultEventRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	raw, err := db.Get(heightKey)
	switch {
	case err == nil:
		if err := rlp.DecodeBytes(raw, &c.height); err != nil {
			return nil, fmt.Errorf("chain: decode height: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("chain: load height: %w", err)
	}
	return c, nil
}

// Execute runs fn as one atomic transaction. Any error or panic reverts every
// state change fn made; success commits them and publishes the emitted events.
func (c *Chain) Execute(fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			c.rollback(snap)
			panic(r)
		}
	}()
	if err := fn(); err != nil {
		c.rollback(snap)
		return err
	}
	logs, err := c.state.Commit()
	if err != nil {
		c.rollback(snap)
		c.logger.Error("chain commit failed", slog.Any("error", err))
		return fmt.Errorf("chain: commit: %w", err)
	}
	c.publish(logs)
	return nil
}

// View runs fn with exclusive access to the state and discards anything it
// writes. A storage read error during fn is returned even when fn succeeds,
// since fn may have seen a zero value in place of the stored one.
func (c *Chain) View(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.state.Snapshot()
	defer c.rollback(snap)
	if err := fn(); err != nil {
		return err
	}
	if err := c.state.Error(); err != nil {
		return fmt.Errorf("chain: read: %w", err)
	}
	return nil
}

// rollback reverts to snap. After a storage read error the cached state is
// untrusted, so it is dropped and reloaded on next access.
func (c *Chain) rollback(snap int) {
	c.state.RevertToSnapshot(snap)
	if err := c.state.Error(); err != nil {
		c.logger.Warn("chain state cache discarded", slog.Any("error", err))
		c.state.Discard()
	}
}

// Mine advances the block height by n and returns the new height.
func (c *Chain) Mine(n uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.height + n
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return c.height, err
	}
	if err := c.db.Put(heightKey, encoded); err != nil {
		return c.height, fmt.Errorf("chain: persist height: %w", err)
	}
	c.height = next
	return next, nil
}

// Height returns the current block height without requiring the execution lock.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// OnCommit registers a hook invoked with the events of every committed
// transaction.
func (c *Chain) OnCommit(hook func([]*types.Event)) {
	if hook == nil {
		return
	}
	c.eventsMu.Lock()
	c.hooks = append(c.hooks, hook)
	c.eventsMu.Unlock()
}

func (c *Chain) publish(logs []*types.Event) {
	if len(logs) == 0 {
		return
	}
	c.eventsMu.Lock()
	c.events = append(c.events, logs...)
	if overflow := len(c.events) - c.retention; overflow > 0 {
		c.events = append([]*types.Event(nil), c.events[overflow:]...)
	}
	hooks := append([]func([]*types.Event){}, c.hooks...)
	c.eventsMu.Unlock()

	for _, hook := range hooks {
		hook(logs)
	}
}

// Events returns a copy of the retained committed events, oldest first.
func (c *Chain) Events() []*types.Event {
	c.eventsMu.RLock()
	defer c.eventsMu.RUnlock()
	out := make([]*types.Event, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Clone()
	}
	return out
}

// Deploy registers contract in the directory.
func (c *Chain) Deploy(contract Contract) error {
	if contract == nil {
		return fmt.Errorf("chain: nil contract")
	}
	addr := contract.Address()
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	c.dirMu.Lock()
	defer c.dirMu.Unlock()
	if _, exists := c.contracts[addr]; exists {
		return fmt.Errorf("%w: %s", ErrContractExists, addr.Hex())
	}
	c.contracts[addr] = contract
	return nil
}

// Contract returns the contract registered at addr.
func (c *Chain) Contract(addr common.Address) (Contract, bool) {
	c.dirMu.RLock()
	defer c.dirMu.RUnlock()
	contract, ok := c.contracts[addr]
	return contract, ok
}

// ---- protocol.Host ----

// BlockNumber returns the current block height.
func (c *Chain) BlockNumber() uint64 { return c.height }

// Balance returns the native balance of addr.
func (c *Chain) Balance(addr common.Address) *big.Int { return c.state.GetBalance(addr) }

// Transfer moves native value between accounts.
func (c *Chain) Transfer(from, to common.Address, amount *big.Int) error {
	return c.state.Transfer(from, to, amount)
}

// Credit issues new native value to addr. It is only used by genesis and
// development faucets.
func (c *Chain) Credit(addr common.Address, amount *big.Int) error {
	return c.state.AddBalance(addr, amount)
}

// KVGet decodes contract storage under key into out.
func (c *Chain) KVGet(contract common.Address, key []byte, out interface{}) (bool, error) {
	return c.state.KVGet(contract, key, out)
}

// KVPut stores value under key in contract storage.
func (c *Chain) KVPut(contract common.Address, key []byte, value interface{}) error {
	return c.state.KVPut(contract, key, value)
}

// Snapshot returns a revision identifier of the current state.
func (c *Chain) Snapshot() int { return c.state.Snapshot() }

// RevertToSnapshot discards every change made after the revision id.
func (c *Chain) RevertToSnapshot(id int) { c.state.RevertToSnapshot(id) }

// Emit appends event to the pending log of the current transaction.
func (c *Chain) Emit(emitter common.Address, event *types.Event) {
	if event == nil {
		return
	}
	event.Emitter = emitter
	event.Height = c.height
	c.state.AddLog(event)
}

// CreateAddress derives the next contract address of deployer and bumps its
// creation nonce.
func (c *Chain) CreateAddress(deployer common.Address) common.Address {
	nonce := c.state.GetNonce(deployer)
	c.state.SetNonce(deployer, nonce+1)
	return crypto.ContractAddress(deployer, nonce)
}

// ---- protocol.Directory ----

func (c *Chain) lookup(addr common.Address) (Contract, error) {
	contract, ok := c.Contract(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownContract, addr.Hex())
	}
	return contract, nil
}

func wrongContract(kind string, addr common.Address) error {
	return fmt.Errorf("%w: %s is not a %s", protocol.ErrWrongContract, addr.Hex(), kind)
}

// Market resolves a lending market.
func (c *Chain) Market(addr common.Address) (protocol.Market, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	market, ok := contract.(protocol.Market)
	if !ok {
		return nil, wrongContract("market", addr)
	}
	return market, nil
}

// Comptroller resolves the lending risk module.
func (c *Chain) Comptroller(addr common.Address) (protocol.Comptroller, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	comptroller, ok := contract.(protocol.Comptroller)
	if !ok {
		return nil, wrongContract("comptroller", addr)
	}
	return comptroller, nil
}

// Lens resolves the lending lens.
func (c *Chain) Lens(addr common.Address) (protocol.Lens, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	lens, ok := contract.(protocol.Lens)
	if !ok {
		return nil, wrongContract("lens", addr)
	}
	return lens, nil
}

// Staking resolves the vote module.
func (c *Chain) Staking(addr common.Address) (protocol.Staking, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	staking, ok := contract.(protocol.Staking)
	if !ok {
		return nil, wrongContract("staking module", addr)
	}
	return staking, nil
}

// Token resolves an ERC20 token.
func (c *Chain) Token(addr common.Address) (protocol.Token, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	token, ok := contract.(protocol.Token)
	if !ok {
		return nil, wrongContract("token", addr)
	}
	return token, nil
}

// WrappedNative resolves the wrapped native token.
func (c *Chain) WrappedNative(addr common.Address) (protocol.WrappedNative, error) {
	contract, err := c.lookup(addr)
	if err != nil {
		return nil, err
	}
	wrapped, ok := contract.(protocol.WrappedNative)
	if !ok {
		return nil, wrongContract("wrapped native token", addr)
	}
	return wrapped, nil
}

var _ protocol.Backend = (*Chain)(nil)

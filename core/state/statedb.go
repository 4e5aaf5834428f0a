package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"fildawallet/core/types"
	"fildawallet/storage"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the native balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would exceed 2^256-1.
	ErrBalanceOverflow = errors.New("state: balance overflow")
	// ErrNegativeAmount is returned for negative transfer amounts.
	ErrNegativeAmount = errors.New("state: negative amount")
)

var (
	balancePrefix = []byte("balance:")
	noncePrefix   = []byte("nonce:")
	kvPrefix      = []byte("kv:")
)

func balanceKey(addr common.Address) []byte {
	return ethcrypto.Keccak256(balancePrefix, addr.Bytes())
}

func nonceKey(addr common.Address) []byte {
	return ethcrypto.Keccak256(noncePrefix, addr.Bytes())
}

func storageKey(addr common.Address, key string) []byte {
	return ethcrypto.Keccak256(kvPrefix, addr.Bytes(), []byte(key))
}

// StateDB is the journaled view over the persistent key-value store. All
// mutations are recorded so that Snapshot/RevertToSnapshot can discard any
// suffix of them, and Commit flushes the surviving changes to storage.
//
// StateDB is not safe for concurrent use; the host serialises access.
type StateDB struct {
	db storage.Database

	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	storage  map[common.Address]map[string][]byte

	dirtyBalances map[common.Address]struct{}
	dirtyNonces   map[common.Address]struct{}
	dirtyStorage  map[common.Address]map[string]struct{}

	journal *journal
	logs    []*types.Event
	dbErr   error
}

// New creates a state view backed by db.
func New(db storage.Database) *StateDB {
	return &StateDB{
		db:            db,
		balances:      make(map[common.Address]*uint256.Int),
		nonces:        make(map[common.Address]uint64),
		storage:       make(map[common.Address]map[string][]byte),
		dirtyBalances: make(map[common.Address]struct{}),
		dirtyNonces:   make(map[common.Address]struct{}),
		dirtyStorage:  make(map[common.Address]map[string]struct{}),
		journal:       &journal{},
	}
}

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first storage read error observed since the last commit
// or discard.
func (s *StateDB) Error() error {
	return s.dbErr
}

// read loads key from storage. The boolean is false when the read failed, in
// which case the caller must not cache the zero value it gets back.
func (s *StateDB) read(key []byte) ([]byte, bool) {
	if s.db == nil {
		return nil, true
	}
	value, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, true
		}
		s.setError(err)
		return nil, false
	}
	return value, true
}

// Discard drops every uncommitted change, every cached read and the sticky
// read error, so the next access reloads from storage.
func (s *StateDB) Discard() {
	s.balances = make(map[common.Address]*uint256.Int)
	s.nonces = make(map[common.Address]uint64)
	s.storage = make(map[common.Address]map[string][]byte)
	s.dirtyBalances = make(map[common.Address]struct{})
	s.dirtyNonces = make(map[common.Address]struct{})
	s.dirtyStorage = make(map[common.Address]map[string]struct{})
	s.journal.reset()
	s.logs = nil
	s.dbErr = nil
}

func (s *StateDB) balance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal
	}
	bal := new(uint256.Int)
	raw, ok := s.read(balanceKey(addr))
	if !ok {
		return bal
	}
	if len(raw) > 0 {
		bal.SetBytes(raw)
	}
	s.balances[addr] = bal
	return bal
}

// GetBalance returns the native balance of addr.
func (s *StateDB) GetBalance(addr common.Address) *big.Int {
	return s.balance(addr).ToBig()
}

func (s *StateDB) setBalance(addr common.Address, value *uint256.Int) {
	prev := s.balance(addr)
	s.journal.append(balanceChange{addr: addr, prev: prev})
	s.balances[addr] = value
	s.dirtyBalances[addr] = struct{}{}
}

// AddBalance credits amount to addr.
func (s *StateDB) AddBalance(addr common.Address, amount *big.Int) error {
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	next, overflow := new(uint256.Int).AddOverflow(s.balance(addr), delta)
	if overflow {
		return ErrBalanceOverflow
	}
	s.setBalance(addr, next)
	return nil
}

// SubBalance debits amount from addr.
func (s *StateDB) SubBalance(addr common.Address, amount *big.Int) error {
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	current := s.balance(addr)
	if current.Lt(delta) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, addr.Hex(), current.Dec(), delta.Dec())
	}
	s.setBalance(addr, new(uint256.Int).Sub(current, delta))
	return nil
}

// Transfer moves native value between two accounts.
func (s *StateDB) Transfer(from, to common.Address, amount *big.Int) error {
	if err := s.SubBalance(from, amount); err != nil {
		return err
	}
	return s.AddBalance(to, amount)
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return new(uint256.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

// GetNonce returns the creation nonce of addr.
func (s *StateDB) GetNonce(addr common.Address) uint64 {
	if nonce, ok := s.nonces[addr]; ok {
		return nonce
	}
	var nonce uint64
	raw, ok := s.read(nonceKey(addr))
	if !ok {
		return nonce
	}
	if len(raw) > 0 {
		if err := rlp.DecodeBytes(raw, &nonce); err != nil {
			s.setError(err)
			return 0
		}
	}
	s.nonces[addr] = nonce
	return nonce
}

// SetNonce updates the creation nonce of addr.
func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	prev := s.GetNonce(addr)
	s.journal.append(nonceChange{addr: addr, prev: prev})
	s.nonces[addr] = nonce
	s.dirtyNonces[addr] = struct{}{}
}

func (s *StateDB) slot(addr common.Address, key string) []byte {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[string][]byte)
		s.storage[addr] = slots
	}
	if value, ok := slots[key]; ok {
		return value
	}
	value, ok := s.read(storageKey(addr, key))
	if ok {
		slots[key] = value
	}
	return value
}

// GetState returns the raw value stored by contract addr under key, or nil.
func (s *StateDB) GetState(addr common.Address, key []byte) []byte {
	value := s.slot(addr, string(key))
	if value == nil {
		return nil
	}
	return append([]byte(nil), value...)
}

// SetState stores value under key for contract addr. A nil value deletes it.
func (s *StateDB) SetState(addr common.Address, key []byte, value []byte) {
	k := string(key)
	prev := s.slot(addr, k)
	s.journal.append(storageChange{addr: addr, key: k, prev: prev})
	if value != nil {
		value = append([]byte(nil), value...)
	}
	s.storage[addr][k] = value
	dirty, ok := s.dirtyStorage[addr]
	if !ok {
		dirty = make(map[string]struct{})
		s.dirtyStorage[addr] = dirty
	}
	dirty[k] = struct{}{}
}

// KVPut rlp-encodes value and stores it under key for contract addr.
func (s *StateDB) KVPut(addr common.Address, key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	s.SetState(addr, key, encoded)
	return nil
}

// KVGet decodes the value stored under key for contract addr into out. The
// boolean return value indicates whether the key existed.
func (s *StateDB) KVGet(addr common.Address, key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data := s.slot(addr, string(key))
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from contract addr.
func (s *StateDB) KVDelete(addr common.Address, key []byte) {
	s.SetState(addr, key, nil)
}

// AddLog appends an event to the pending log.
func (s *StateDB) AddLog(event *types.Event) {
	if event == nil {
		return
	}
	s.journal.append(logChange{})
	s.logs = append(s.logs, event)
}

// Logs returns the events emitted since the last commit.
func (s *StateDB) Logs() []*types.Event {
	out := make([]*types.Event, len(s.logs))
	for i, ev := range s.logs {
		out[i] = ev.Clone()
	}
	return out
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	return s.journal.length()
}

// RevertToSnapshot undoes every modification made after the snapshot.
func (s *StateDB) RevertToSnapshot(id int) {
	if id < 0 || id > s.journal.length() {
		panic(fmt.Errorf("state: revision id %d cannot be reverted", id))
	}
	s.journal.revertTo(s, id)
}

// Commit writes all modifications to the backing store atomically and clears
// the journal. The emitted events are returned and dropped from the state.
func (s *StateDB) Commit() ([]*types.Event, error) {
	if s.dbErr != nil {
		return nil, s.dbErr
	}
	batch := make(map[string][]byte)
	for addr := range s.dirtyBalances {
		bal := s.balances[addr]
		if bal == nil || bal.IsZero() {
			batch[string(balanceKey(addr))] = nil
			continue
		}
		batch[string(balanceKey(addr))] = bal.Bytes()
	}
	for addr := range s.dirtyNonces {
		encoded, err := rlp.EncodeToBytes(s.nonces[addr])
		if err != nil {
			return nil, err
		}
		batch[string(nonceKey(addr))] = encoded
	}
	for addr, keys := range s.dirtyStorage {
		for key := range keys {
			batch[string(storageKey(addr, key))] = s.storage[addr][key]
		}
	}
	if s.db != nil && len(batch) > 0 {
		if err := s.db.Write(batch); err != nil {
			return nil, err
		}
	}
	logs := s.logs
	s.logs = nil
	s.journal.reset()
	s.dirtyBalances = make(map[common.Address]struct{})
	s.dirtyNonces = make(map[common.Address]struct{})
	s.dirtyStorage = make(map[common.Address]map[string]struct{})
	return logs, nil
}

// Package staking implements the delegated vote module: holders vote native
// value for a target, earn a per-block reward share while staked, and leave
// through a revoke period before the stake can be withdrawn.
package staking

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
	"fildawallet/native/protocol"
)

var (
	ErrInvalidAmount    = errors.New("staking: amount must be positive")
	ErrTargetKind       = errors.New("staking: target kind not accepted by this module")
	ErrUnknownTarget    = errors.New("staking: target not registered")
	ErrTargetExists     = errors.New("staking: target already registered")
	ErrInsufficientVote = errors.New("staking: revoke exceeds voted amount")
	ErrNotWithdrawable  = errors.New("staking: nothing withdrawable")
	ErrReserveExhausted = errors.New("staking: reward reserve exhausted")
	ErrNotAdmin         = fmt.Errorf("staking: caller is not the vote admin: %w", protocol.ErrUnauthorized)
	errNilHost          = errors.New("staking: host not configured")
)

const (
	EventTargetRegistered = "staking.targetRegistered"
	EventRewardRate       = "staking.rewardRate"
	EventVote             = "staking.vote"
	EventRevoke           = "staking.revoke"
	EventWithdraw         = "staking.withdraw"
	EventRewardClaimed    = "staking.rewardClaimed"

	targetsKey   = "targets"
	lockedKey    = "locked"
	targetPrefix = "target/"
	votePrefix   = "vote/"
	voterPrefix  = "voter/"
)

var accScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

// Config holds the static parameters of a staking deployment.
type Config struct {
	Kind protocol.TargetKind
	// Admin is the vote-admin role allowed to manage targets.
	Admin common.Address
	// LockBlocks is the revoke period in blocks.
	LockBlocks uint64
}

type targetRecord struct {
	Registered        bool
	TotalVotes        *big.Int
	AccRewardPerShare *big.Int
	LastRewardBlock   uint64
	RewardPerBlock    *big.Int
}

func (r *targetRecord) ensure() {
	if r.TotalVotes == nil {
		r.TotalVotes = big.NewInt(0)
	}
	if r.AccRewardPerShare == nil {
		r.AccRewardPerShare = big.NewInt(0)
	}
	if r.RewardPerBlock == nil {
		r.RewardPerBlock = big.NewInt(0)
	}
}

type voteRecord struct {
	Amount          *big.Int
	RewardDebt      *big.Int
	Unclaimed       *big.Int
	PendingWithdraw *big.Int
	ExitBlock       uint64
}

func (v *voteRecord) ensure() {
	if v.Amount == nil {
		v.Amount = big.NewInt(0)
	}
	if v.RewardDebt == nil {
		v.RewardDebt = big.NewInt(0)
	}
	if v.Unclaimed == nil {
		v.Unclaimed = big.NewInt(0)
	}
	if v.PendingWithdraw == nil {
		v.PendingWithdraw = big.NewInt(0)
	}
}

// Module is the vote module bound to a contract address.
type Module struct {
	host protocol.Host
	addr common.Address
	cfg  Config
}

// New binds a vote module stored under addr.
func New(host protocol.Host, addr common.Address, cfg Config) (*Module, error) {
	if cfg.Kind != protocol.TargetValidator && cfg.Kind != protocol.TargetPool {
		return nil, fmt.Errorf("%w: %d", protocol.ErrUnknownTargetKind, cfg.Kind)
	}
	return &Module{host: host, addr: addr, cfg: cfg}, nil
}

func (m *Module) Address() common.Address         { return m.addr }
func (m *Module) TargetKind() protocol.TargetKind { return m.cfg.Kind }
func (m *Module) Admin() common.Address           { return m.cfg.Admin }
func (m *Module) LockBlocks() uint64              { return m.cfg.LockBlocks }

func (m *Module) store(key []byte, value interface{}) error {
	return m.host.KVPut(m.addr, key, value)
}

func targetKey(target protocol.TargetID) []byte {
	return append([]byte(targetPrefix), target.Key()...)
}

func voterKey(voter common.Address) []byte {
	return append([]byte(voterPrefix), voter.Bytes()...)
}

// accrued returns amount * acc scaled back from the accumulator precision.
func accrued(amount, acc *big.Int) *big.Int {
	product := new(big.Int).Mul(amount, acc)
	return product.Quo(product, accScale)
}

func voteKey(voter common.Address, target protocol.TargetID) []byte {
	key := append([]byte(votePrefix), voter.Bytes()...)
	key = append(key, '/')
	return append(key, target.Key()...)
}

func (m *Module) check(target protocol.TargetID) error {
	if m == nil || m.host == nil {
		return errNilHost
	}
	if !target.Valid() {
		return protocol.ErrInvalidTarget
	}
	if target.Kind() != m.cfg.Kind {
		return fmt.Errorf("%w: got %s, module takes %s", ErrTargetKind, target.Kind(), m.cfg.Kind)
	}
	return nil
}

func (m *Module) target(target protocol.TargetID) (*targetRecord, error) {
	if err := m.check(target); err != nil {
		return nil, err
	}
	rec := new(targetRecord)
	if _, err := m.host.KVGet(m.addr, targetKey(target), rec); err != nil {
		return nil, err
	}
	rec.ensure()
	if !rec.Registered {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return rec, nil
}

func (m *Module) vote(voter common.Address, target protocol.TargetID) (*voteRecord, error) {
	rec := new(voteRecord)
	if _, err := m.host.KVGet(m.addr, voteKey(voter, target), rec); err != nil {
		return nil, err
	}
	rec.ensure()
	return rec, nil
}

// project advances the reward accumulator of rec to the current block.
func (m *Module) project(rec *targetRecord) {
	now := m.host.BlockNumber()
	if now <= rec.LastRewardBlock {
		return
	}
	if rec.TotalVotes.Sign() > 0 && rec.RewardPerBlock.Sign() > 0 {
		reward := new(big.Int).Mul(rec.RewardPerBlock, new(big.Int).SetUint64(now-rec.LastRewardBlock))
		reward.Mul(reward, accScale)
		reward.Quo(reward, rec.TotalVotes)
		rec.AccRewardPerShare = new(big.Int).Add(rec.AccRewardPerShare, reward)
	}
	rec.LastRewardBlock = now
}

// settle moves the reward earned since the last checkpoint into Unclaimed.
func settle(v *voteRecord, acc *big.Int) {
	earned := new(big.Int).Sub(accrued(v.Amount, acc), v.RewardDebt)
	if earned.Sign() > 0 {
		v.Unclaimed = new(big.Int).Add(v.Unclaimed, earned)
	}
}

func (m *Module) locked() (*big.Int, error) {
	value := new(big.Int)
	if _, err := m.host.KVGet(m.addr, []byte(lockedKey), value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Module) adjustLocked(delta *big.Int) error {
	current, err := m.locked()
	if err != nil {
		return err
	}
	return m.store([]byte(lockedKey), current.Add(current, delta))
}

// Reserve returns the native balance available for reward payouts.
func (m *Module) Reserve() (*big.Int, error) {
	if m == nil || m.host == nil {
		return nil, errNilHost
	}
	locked, err := m.locked()
	if err != nil {
		return nil, err
	}
	reserve := new(big.Int).Sub(m.host.Balance(m.addr), locked)
	if reserve.Sign() < 0 {
		reserve.SetInt64(0)
	}
	return reserve, nil
}

// RegisterTarget opens target for voting with the given reward rate.
func (m *Module) RegisterTarget(caller common.Address, target protocol.TargetID, rewardPerBlock *big.Int) error {
	if err := m.check(target); err != nil {
		return err
	}
	if caller != m.cfg.Admin {
		return ErrNotAdmin
	}
	if rewardPerBlock != nil && rewardPerBlock.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, err := m.target(target); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, target)
	} else if !errors.Is(err, ErrUnknownTarget) {
		return err
	}
	rec := &targetRecord{Registered: true, LastRewardBlock: m.host.BlockNumber(), RewardPerBlock: new(big.Int)}
	if rewardPerBlock != nil {
		rec.RewardPerBlock.Set(rewardPerBlock)
	}
	rec.ensure()
	if err := m.store(targetKey(target), rec); err != nil {
		return err
	}
	var targets []string
	if _, err := m.host.KVGet(m.addr, []byte(targetsKey), &targets); err != nil {
		return err
	}
	if err := m.store([]byte(targetsKey), append(targets, target.String())); err != nil {
		return err
	}
	m.emit(EventTargetRegistered, map[string]string{"target": target.String(), "rewardPerBlock": rec.RewardPerBlock.String()})
	return nil
}

// SetRewardPerBlock changes the reward rate of target from the current block.
func (m *Module) SetRewardPerBlock(caller common.Address, target protocol.TargetID, rewardPerBlock *big.Int) error {
	rec, err := m.target(target)
	if err != nil {
		return err
	}
	if caller != m.cfg.Admin {
		return ErrNotAdmin
	}
	if rewardPerBlock == nil || rewardPerBlock.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.project(rec)
	rec.RewardPerBlock = new(big.Int).Set(rewardPerBlock)
	if err := m.store(targetKey(target), rec); err != nil {
		return err
	}
	m.emit(EventRewardRate, map[string]string{"target": target.String(), "rewardPerBlock": rewardPerBlock.String()})
	return nil
}

// Targets lists the registered targets in registration order.
func (m *Module) Targets() ([]protocol.TargetID, error) {
	if m == nil || m.host == nil {
		return nil, errNilHost
	}
	var raw []string
	if _, err := m.host.KVGet(m.addr, []byte(targetsKey), &raw); err != nil {
		return nil, err
	}
	out := make([]protocol.TargetID, 0, len(raw))
	for _, value := range raw {
		target, err := protocol.ParseTarget(value)
		if err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

func (m *Module) index(voter common.Address) ([]string, error) {
	var targets []string
	if _, err := m.host.KVGet(m.addr, voterKey(voter), &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func (m *Module) remember(voter common.Address, target protocol.TargetID) error {
	targets, err := m.index(voter)
	if err != nil {
		return err
	}
	for _, existing := range targets {
		if existing == target.String() {
			return nil
		}
	}
	return m.store(voterKey(voter), append(targets, target.String()))
}

// Vote stakes amount of voter's native balance on target.
func (m *Module) Vote(voter common.Address, target protocol.TargetID, amount *big.Int) error {
	rec, err := m.target(target)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return err
	}
	m.project(rec)
	settle(v, rec.AccRewardPerShare)
	if err := m.host.Transfer(voter, m.addr, amount); err != nil {
		return err
	}
	v.Amount = new(big.Int).Add(v.Amount, amount)
	v.RewardDebt = accrued(v.Amount, rec.AccRewardPerShare)
	rec.TotalVotes = new(big.Int).Add(rec.TotalVotes, amount)
	if err := m.persist(voter, target, rec, v); err != nil {
		return err
	}
	if err := m.adjustLocked(amount); err != nil {
		return err
	}
	if err := m.remember(voter, target); err != nil {
		return err
	}
	m.emit(EventVote, map[string]string{"voter": voter.Hex(), "target": target.String(), "amount": amount.String()})
	return nil
}

func (m *Module) persist(voter common.Address, target protocol.TargetID, rec *targetRecord, v *voteRecord) error {
	if err := m.store(targetKey(target), rec); err != nil {
		return err
	}
	return m.store(voteKey(voter, target), v)
}

// Revoke moves amount of voter's stake on target into the exit queue. The
// exit block is reset to now plus the lock period and returned.
func (m *Module) Revoke(voter common.Address, target protocol.TargetID, amount *big.Int) (uint64, error) {
	rec, err := m.target(target)
	if err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return 0, err
	}
	if v.Amount.Cmp(amount) < 0 {
		return 0, fmt.Errorf("%w: voted %s, revoking %s", ErrInsufficientVote, v.Amount, amount)
	}
	m.project(rec)
	settle(v, rec.AccRewardPerShare)
	v.Amount = new(big.Int).Sub(v.Amount, amount)
	v.RewardDebt = accrued(v.Amount, rec.AccRewardPerShare)
	v.PendingWithdraw = new(big.Int).Add(v.PendingWithdraw, amount)
	v.ExitBlock = m.host.BlockNumber() + m.cfg.LockBlocks
	rec.TotalVotes = new(big.Int).Sub(rec.TotalVotes, amount)
	if err := m.persist(voter, target, rec, v); err != nil {
		return 0, err
	}
	m.emit(EventRevoke, map[string]string{
		"voter":     voter.Hex(),
		"target":    target.String(),
		"amount":    amount.String(),
		"exitBlock": fmt.Sprintf("%d", v.ExitBlock),
	})
	return v.ExitBlock, nil
}

// IsWithdrawable reports whether voter has revoked stake on target whose exit
// block has been reached.
func (m *Module) IsWithdrawable(voter common.Address, target protocol.TargetID) (bool, error) {
	if _, err := m.target(target); err != nil {
		return false, err
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return false, err
	}
	return v.PendingWithdraw.Sign() > 0 && m.host.BlockNumber() >= v.ExitBlock, nil
}

// Withdraw returns voter's unlocked stake on target and reports the amount.
func (m *Module) Withdraw(voter common.Address, target protocol.TargetID) (*big.Int, error) {
	ok, err := m.IsWithdrawable(voter, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotWithdrawable, voter.Hex(), target)
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return nil, err
	}
	amount := v.PendingWithdraw
	v.PendingWithdraw = big.NewInt(0)
	v.ExitBlock = 0
	if err := m.store(voteKey(voter, target), v); err != nil {
		return nil, err
	}
	if err := m.adjustLocked(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	if err := m.host.Transfer(m.addr, voter, amount); err != nil {
		return nil, err
	}
	m.emit(EventWithdraw, map[string]string{"voter": voter.Hex(), "target": target.String(), "amount": amount.String()})
	return new(big.Int).Set(amount), nil
}

// PendingReward returns the reward voter could claim on target right now.
func (m *Module) PendingReward(voter common.Address, target protocol.TargetID) (*big.Int, error) {
	rec, err := m.target(target)
	if err != nil {
		return nil, err
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return nil, err
	}
	m.project(rec)
	settle(v, rec.AccRewardPerShare)
	return v.Unclaimed, nil
}

// ClaimReward pays voter's pending reward on target from the reserve.
func (m *Module) ClaimReward(voter common.Address, target protocol.TargetID) (*big.Int, error) {
	rec, err := m.target(target)
	if err != nil {
		return nil, err
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return nil, err
	}
	m.project(rec)
	settle(v, rec.AccRewardPerShare)
	v.RewardDebt = accrued(v.Amount, rec.AccRewardPerShare)
	payout := v.Unclaimed
	if payout.Sign() > 0 {
		reserve, err := m.Reserve()
		if err != nil {
			return nil, err
		}
		if reserve.Cmp(payout) < 0 {
			return nil, fmt.Errorf("%w: owes %s, holds %s", ErrReserveExhausted, payout, reserve)
		}
		if err := m.host.Transfer(m.addr, voter, payout); err != nil {
			return nil, err
		}
	}
	v.Unclaimed = big.NewInt(0)
	if err := m.persist(voter, target, rec, v); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		m.emit(EventRewardClaimed, map[string]string{"voter": voter.Hex(), "target": target.String(), "amount": payout.String()})
	}
	return new(big.Int).Set(payout), nil
}

// Entry returns voter's position on target.
func (m *Module) Entry(voter common.Address, target protocol.TargetID) (protocol.VotingEntry, error) {
	if _, err := m.target(target); err != nil {
		return protocol.VotingEntry{}, err
	}
	v, err := m.vote(voter, target)
	if err != nil {
		return protocol.VotingEntry{}, err
	}
	return protocol.VotingEntry{
		Target:          target,
		Amount:          v.Amount,
		PendingWithdraw: v.PendingWithdraw,
		ExitBlock:       v.ExitBlock,
	}, nil
}

// Summary lists every target voter still has stake or a pending withdrawal
// on, in the order the voter first voted for them.
func (m *Module) Summary(voter common.Address) ([]protocol.VotingEntry, error) {
	if m == nil || m.host == nil {
		return nil, errNilHost
	}
	targets, err := m.index(voter)
	if err != nil {
		return nil, err
	}
	entries := make([]protocol.VotingEntry, 0, len(targets))
	for _, raw := range targets {
		target, err := protocol.ParseTarget(raw)
		if err != nil {
			return nil, err
		}
		entry, err := m.Entry(voter, target)
		if err != nil {
			return nil, err
		}
		if entry.Active() {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *Module) emit(kind string, attrs map[string]string) {
	m.host.Emit(m.addr, &types.Event{Type: kind, Attributes: attrs})
}

var _ protocol.Staking = (*Module)(nil)

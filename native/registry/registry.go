// Package registry holds the role directory every wallet resolves its
// collaborators through. A registry is configured by its admin and then
// sealed; sealed registries are immutable and superseded by deploying a new
// one.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/events"
	"fildawallet/native/protocol"
)

var (
	ErrNotAdmin           = fmt.Errorf("registry: caller is not the admin: %w", protocol.ErrUnauthorized)
	ErrSealed             = errors.New("registry: sealed")
	ErrRegistryNotSealed  = errors.New("registry: not sealed")
	ErrUnknownRole        = errors.New("registry: unknown role")
	ErrRoleUnset          = errors.New("registry: role not configured")
	ErrZeroAddress        = errors.New("registry: zero address")
	ErrAlreadyInitialized = errors.New("registry: already initialised")
	ErrTargetKindMismatch = errors.New("registry: target kind differs from the staking module")
	errNotInitialized     = errors.New("registry: not initialised")
	errNilHost            = errors.New("registry: host not configured")
)

// Role names an entry of the directory.
type Role string

const (
	RoleLens          Role = "lens"
	RoleStaking       Role = "vote"
	RoleRewardToken   Role = "filda"
	RoleWrappedNative Role = "htt"
	RoleBorrowMarket  Role = "debt"
	RoleDepositMarket Role = "deposit"
	RoleComptroller   Role = "comptroller"
	RoleVoteAdmin     Role = "voteAdmin"
)

// Roles lists every role a registry must bind before it can be sealed.
var Roles = []Role{
	RoleLens,
	RoleStaking,
	RoleRewardToken,
	RoleWrappedNative,
	RoleBorrowMarket,
	RoleDepositMarket,
	RoleComptroller,
	RoleVoteAdmin,
}

// ParseRole accepts the canonical role names case-insensitively.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, role := range Roles {
		if strings.ToLower(string(role)) == normalized {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
}

var (
	adminKey      = []byte("admin")
	sealedKey     = []byte("sealed")
	targetKindKey = []byte("targetKind")
)

func roleKey(role Role) []byte {
	return []byte("role/" + string(role))
}

// Config is the resolved content of a sealed registry.
type Config struct {
	Lens          common.Address
	Staking       common.Address
	RewardToken   common.Address
	WrappedNative common.Address
	BorrowMarket  common.Address
	DepositMarket common.Address
	Comptroller   common.Address
	VoteAdmin     common.Address
	TargetKind    protocol.TargetKind
}

// Registry persists the role directory under its contract address.
type Registry struct {
	host protocol.Host
	addr common.Address
}

// New binds a registry stored under addr.
func New(host protocol.Host, addr common.Address) *Registry {
	return &Registry{host: host, addr: addr}
}

func (r *Registry) Address() common.Address { return r.addr }

func (r *Registry) ready() error {
	if r == nil || r.host == nil {
		return errNilHost
	}
	return nil
}

// Initialize records the admin of a freshly deployed registry.
func (r *Registry) Initialize(admin common.Address) error {
	if err := r.ready(); err != nil {
		return err
	}
	if admin == (common.Address{}) {
		return ErrZeroAddress
	}
	var existing common.Address
	ok, err := r.host.KVGet(r.addr, adminKey, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	return r.host.KVPut(r.addr, adminKey, admin)
}

// Admin returns the configuring account.
func (r *Registry) Admin() (common.Address, error) {
	if err := r.ready(); err != nil {
		return common.Address{}, err
	}
	var admin common.Address
	ok, err := r.host.KVGet(r.addr, adminKey, &admin)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, errNotInitialized
	}
	return admin, nil
}

// Sealed reports whether the registry has been locked.
func (r *Registry) Sealed() bool {
	if r.ready() != nil {
		return false
	}
	var sealed bool
	if ok, err := r.host.KVGet(r.addr, sealedKey, &sealed); err != nil || !ok {
		return false
	}
	return sealed
}

func (r *Registry) authorize(caller common.Address) error {
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrNotAdmin
	}
	if r.Sealed() {
		return ErrSealed
	}
	return nil
}

// Set binds role to addr.
func (r *Registry) Set(caller common.Address, role Role, addr common.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: role %s", ErrZeroAddress, role)
	}
	if err := r.host.KVPut(r.addr, roleKey(role), addr); err != nil {
		return err
	}
	events.Publish(r.host, r.addr, events.RegistryUpdated{Role: string(role), Address: addr})
	return nil
}

// SetTargetKind fixes the voting target kind of the staking generation the
// registry points at.
func (r *Registry) SetTargetKind(caller common.Address, kind protocol.TargetKind) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if kind != protocol.TargetValidator && kind != protocol.TargetPool {
		return fmt.Errorf("%w: %d", protocol.ErrUnknownTargetKind, kind)
	}
	return r.host.KVPut(r.addr, targetKindKey, uint8(kind))
}

// Seal locks the registry once every role is bound. When the staking role
// resolves to a module on this host, its target kind must match the
// configured one.
func (r *Registry) Seal(caller common.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	cfg, err := r.resolve()
	if err != nil {
		return err
	}
	if dir, ok := r.host.(protocol.Directory); ok {
		if vote, err := dir.Staking(cfg.Staking); err == nil && vote.TargetKind() != cfg.TargetKind {
			return fmt.Errorf("%w: registry %s, module %s", ErrTargetKindMismatch, cfg.TargetKind, vote.TargetKind())
		}
	}
	if err := r.host.KVPut(r.addr, sealedKey, true); err != nil {
		return err
	}
	events.Publish(r.host, r.addr, events.RegistrySealed{Admin: caller})
	return nil
}

// Get returns the address bound to role.
func (r *Registry) Get(role Role) (common.Address, error) {
	if err := r.ready(); err != nil {
		return common.Address{}, err
	}
	var addr common.Address
	ok, err := r.host.KVGet(r.addr, roleKey(role), &addr)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrRoleUnset, role)
	}
	return addr, nil
}

// TargetKind returns the configured voting target kind.
func (r *Registry) TargetKind() (protocol.TargetKind, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var kind uint8
	ok, err := r.host.KVGet(r.addr, targetKindKey, &kind)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: target kind", ErrRoleUnset)
	}
	return protocol.TargetKind(kind), nil
}

func (r *Registry) resolve() (Config, error) {
	var cfg Config
	fields := map[Role]*common.Address{
		RoleLens:          &cfg.Lens,
		RoleStaking:       &cfg.Staking,
		RoleRewardToken:   &cfg.RewardToken,
		RoleWrappedNative: &cfg.WrappedNative,
		RoleBorrowMarket:  &cfg.BorrowMarket,
		RoleDepositMarket: &cfg.DepositMarket,
		RoleComptroller:   &cfg.Comptroller,
		RoleVoteAdmin:     &cfg.VoteAdmin,
	}
	for _, role := range Roles {
		addr, err := r.Get(role)
		if err != nil {
			return Config{}, err
		}
		*fields[role] = addr
	}
	kind, err := r.TargetKind()
	if err != nil {
		return Config{}, err
	}
	cfg.TargetKind = kind
	return cfg, nil
}

// Snapshot returns the full directory of a sealed registry.
func (r *Registry) Snapshot() (Config, error) {
	if err := r.ready(); err != nil {
		return Config{}, err
	}
	if !r.Sealed() {
		return Config{}, ErrRegistryNotSealed
	}
	return r.resolve()
}

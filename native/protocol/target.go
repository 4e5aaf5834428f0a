package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidTarget     = errors.New("protocol: invalid voting target")
	ErrUnknownTargetKind = errors.New("protocol: unknown target kind")
)

// TargetKind identifies which generation of the staking module a target
// belongs to. A deployment uses exactly one kind.
type TargetKind uint8

const (
	// TargetValidator addresses a long-lived validator by its address.
	TargetValidator TargetKind = iota + 1
	// TargetPool addresses a staking pool by its numeric index.
	TargetPool
)

func (k TargetKind) String() string {
	switch k {
	case TargetValidator:
		return "validator"
	case TargetPool:
		return "pool"
	default:
		return "unknown"
	}
}

// ParseTargetKind maps the configuration spelling onto a TargetKind.
func ParseTargetKind(value string) (TargetKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "validator", "address":
		return TargetValidator, nil
	case "pool", "pid":
		return TargetPool, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTargetKind, value)
	}
}

// TargetID is a voting target: either Address(addr) or PoolIndex(u32).
type TargetID struct {
	kind TargetKind
	addr common.Address
	pool uint32
}

// ValidatorTarget builds an address target.
func ValidatorTarget(addr common.Address) TargetID {
	return TargetID{kind: TargetValidator, addr: addr}
}

// PoolTarget builds a numeric pool target.
func PoolTarget(pid uint32) TargetID {
	return TargetID{kind: TargetPool, pool: pid}
}

// Kind reports the variant of the target.
func (t TargetID) Kind() TargetKind { return t.kind }

// Address returns the validator address when the target is an address target.
func (t TargetID) Address() (common.Address, bool) {
	return t.addr, t.kind == TargetValidator
}

// Pool returns the pool index when the target is a pool target.
func (t TargetID) Pool() (uint32, bool) {
	return t.pool, t.kind == TargetPool
}

// Valid reports whether the target carries a usable identifier.
func (t TargetID) Valid() bool {
	switch t.kind {
	case TargetValidator:
		return t.addr != (common.Address{})
	case TargetPool:
		return true
	default:
		return false
	}
}

// String renders validators as checksummed hex and pools as decimal.
func (t TargetID) String() string {
	switch t.kind {
	case TargetValidator:
		return t.addr.Hex()
	case TargetPool:
		return strconv.FormatUint(uint64(t.pool), 10)
	default:
		return ""
	}
}

// Key returns a stable byte key for storage indexes.
func (t TargetID) Key() []byte {
	return []byte(t.kind.String() + ":" + strings.ToLower(t.String()))
}

// ParseTarget accepts either a 0x-prefixed address or a decimal pool index.
func ParseTarget(value string) (TargetID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TargetID{}, ErrInvalidTarget
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return TargetID{}, fmt.Errorf("%w: %q", ErrInvalidTarget, value)
		}
		target := ValidatorTarget(common.HexToAddress(trimmed))
		if !target.Valid() {
			return TargetID{}, fmt.Errorf("%w: zero address", ErrInvalidTarget)
		}
		return target, nil
	}
	pid, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return TargetID{}, fmt.Errorf("%w: %q", ErrInvalidTarget, value)
	}
	return PoolTarget(uint32(pid)), nil
}

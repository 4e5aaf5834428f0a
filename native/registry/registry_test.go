package registry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core"
	coreevents "fildawallet/core/events"
	"fildawallet/native/protocol"
	"fildawallet/native/staking"
)

var (
	registryAdmin = common.HexToAddress("0x000000000000000000000000000000000000ad03")
	stranger      = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	registryAt    = common.HexToAddress("0x0000000000000000000000000000000000000301")
)

func newRegistry(t *testing.T) (*core.Chain, *Registry) {
	t.Helper()
	chain, err := core.NewChain(nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	reg := New(chain, registryAt)
	if err := chain.Execute(func() error { return reg.Initialize(registryAdmin) }); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return chain, reg
}

func bindAll(reg *Registry) error {
	for i, role := range Roles {
		addr := common.BigToAddress(common.Big1)
		addr[0] = byte(i + 1)
		if err := reg.Set(registryAdmin, role, addr); err != nil {
			return err
		}
	}
	return reg.SetTargetKind(registryAdmin, protocol.TargetPool)
}

func TestSealRequiresEveryRole(t *testing.T) {
	chain, reg := newRegistry(t)
	err := chain.Execute(func() error {
		if err := reg.Set(registryAdmin, RoleLens, common.HexToAddress("0x01")); err != nil {
			return err
		}
		return reg.Seal(registryAdmin)
	})
	if !errors.Is(err, ErrRoleUnset) {
		t.Fatalf("expected ErrRoleUnset, got %v", err)
	}
	_ = chain.View(func() error {
		if _, err := reg.Get(RoleLens); !errors.Is(err, ErrRoleUnset) {
			t.Fatalf("failed transaction must not leave the lens bound: %v", err)
		}
		return nil
	})
}

func TestSealIsOneTimeLock(t *testing.T) {
	chain, reg := newRegistry(t)
	if err := chain.Execute(func() error {
		if err := bindAll(reg); err != nil {
			return err
		}
		return reg.Seal(registryAdmin)
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	err := chain.Execute(func() error { return reg.Set(registryAdmin, RoleLens, common.HexToAddress("0x02")) })
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	err = chain.Execute(func() error { return reg.Seal(registryAdmin) })
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed on second seal, got %v", err)
	}

	_ = chain.View(func() error {
		cfg, err := reg.Snapshot()
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if cfg.TargetKind != protocol.TargetPool || cfg.Lens == (common.Address{}) || cfg.VoteAdmin == (common.Address{}) {
			t.Fatalf("unexpected snapshot %+v", cfg)
		}
		return nil
	})

	var sealed bool
	for _, ev := range chain.Events() {
		if ev.Type == coreevents.TypeRegistrySealed && ev.Emitter == registryAt {
			sealed = true
		}
	}
	if !sealed {
		t.Fatalf("expected a registry.sealed event")
	}
}

func TestSealChecksStakingTargetKind(t *testing.T) {
	chain, reg := newRegistry(t)
	voteAt := common.HexToAddress("0x0000000000000000000000000000000000000302")
	vote, err := staking.New(chain, voteAt, staking.Config{Kind: protocol.TargetValidator, Admin: registryAdmin, LockBlocks: 1})
	if err != nil {
		t.Fatalf("staking: %v", err)
	}
	if err := chain.Deploy(vote); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	err = chain.Execute(func() error {
		if err := bindAll(reg); err != nil {
			return err
		}
		if err := reg.Set(registryAdmin, RoleStaking, voteAt); err != nil {
			return err
		}
		return reg.Seal(registryAdmin)
	})
	if !errors.Is(err, ErrTargetKindMismatch) {
		t.Fatalf("expected ErrTargetKindMismatch, got %v", err)
	}

	if err := chain.Execute(func() error {
		if err := bindAll(reg); err != nil {
			return err
		}
		if err := reg.Set(registryAdmin, RoleStaking, voteAt); err != nil {
			return err
		}
		if err := reg.SetTargetKind(registryAdmin, protocol.TargetValidator); err != nil {
			return err
		}
		return reg.Seal(registryAdmin)
	}); err != nil {
		t.Fatalf("seal with matching kind: %v", err)
	}
}

func TestNonAdminIsRejected(t *testing.T) {
	chain, reg := newRegistry(t)
	err := chain.Execute(func() error { return reg.Set(stranger, RoleLens, common.HexToAddress("0x02")) })
	if !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	err = chain.Execute(func() error { return reg.Initialize(stranger) })
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	_ = chain.View(func() error {
		if _, err := reg.Snapshot(); !errors.Is(err, ErrRegistryNotSealed) {
			t.Fatalf("expected ErrRegistryNotSealed, got %v", err)
		}
		return nil
	})
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" VoteAdmin ")
	if err != nil || role != RoleVoteAdmin {
		t.Fatalf("parse: %v %v", role, err)
	}
	if _, err := ParseRole("oracle"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

package protocol

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseTargetVariants(t *testing.T) {
	pool, err := ParseTarget("17")
	if err != nil {
		t.Fatalf("parse pool: %v", err)
	}
	if pid, ok := pool.Pool(); !ok || pid != 17 {
		t.Fatalf("unexpected pool target %+v", pool)
	}
	if _, ok := pool.Address(); ok {
		t.Fatalf("pool target must not expose an address")
	}

	addr := common.HexToAddress("0xd36a0Ad934a1fc5BFaEf73c3678410e446a468C3")
	validator, err := ParseTarget(addr.Hex())
	if err != nil {
		t.Fatalf("parse validator: %v", err)
	}
	if got, ok := validator.Address(); !ok || got != addr {
		t.Fatalf("unexpected validator target %+v", validator)
	}
	if validator.Kind() != TargetValidator || pool.Kind() != TargetPool {
		t.Fatalf("kinds not tagged")
	}

	roundTrip, err := ParseTarget(validator.String())
	if err != nil || roundTrip != validator {
		t.Fatalf("validator round trip failed: %v %+v", err, roundTrip)
	}
}

func TestParseTargetRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "abc", "-1", "4294967296", "0x1234", "0x0000000000000000000000000000000000000000"} {
		if _, err := ParseTarget(input); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("ParseTarget(%q) = %v, want ErrInvalidTarget", input, err)
		}
	}
}

func TestTargetKeysDoNotCollide(t *testing.T) {
	a := PoolTarget(1).Key()
	b := ValidatorTarget(common.HexToAddress("0x0000000000000000000000000000000000000001")).Key()
	if string(a) == string(b) {
		t.Fatalf("keys collide: %s", a)
	}
}

func TestParseTargetKind(t *testing.T) {
	if kind, err := ParseTargetKind("Pool"); err != nil || kind != TargetPool {
		t.Fatalf("pool kind: %v %v", kind, err)
	}
	if kind, err := ParseTargetKind("validator"); err != nil || kind != TargetValidator {
		t.Fatalf("validator kind: %v %v", kind, err)
	}
	if _, err := ParseTargetKind("both"); !errors.Is(err, ErrUnknownTargetKind) {
		t.Fatalf("expected ErrUnknownTargetKind, got %v", err)
	}
}

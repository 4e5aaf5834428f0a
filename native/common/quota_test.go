package common

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, nil)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied.ReqCount != next.ReqCount {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaValue(t *testing.T) {
	q := Quota{MaxValuePerEpoch: big.NewInt(1000)}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ValueUsed.Int64() != 1000 {
		t.Fatalf("unexpected value used: %s", next.ValueUsed)
	}

	denied, err := CheckQuota(q, 5, next, 0, big.NewInt(1))
	if !errors.Is(err, ErrQuotaValueExceeded) {
		t.Fatalf("expected ErrQuotaValueExceeded, got %v", err)
	}
	if denied.ValueUsed.Cmp(next.ValueUsed) != 0 {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 6, next, 0, big.NewInt(500))
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.ValueUsed.Int64() != 500 {
		t.Fatalf("unexpected value used after rollover: %s", rollover.ValueUsed)
	}
	if next.ValueUsed.Int64() != 1000 {
		t.Fatalf("previous counters must not be mutated")
	}
}

func TestCheckQuotaOverflowAndEpoch(t *testing.T) {
	prev := QuotaNow{ReqCount: math.MaxUint32, EpochID: 1}
	if _, err := CheckQuota(Quota{}, 1, prev, 1, nil); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
	q := Quota{EpochSeconds: 3600}
	if q.Epoch(7200) != 2 || q.Epoch(7199) != 1 {
		t.Fatalf("unexpected epoch boundaries")
	}
	if (Quota{}).Epoch(7200) != 0 {
		t.Fatalf("zero epoch length must collapse to a single epoch")
	}
}

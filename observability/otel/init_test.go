package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =skip,tenant=wallet")
	if len(headers) != 2 || headers["api-key"] != "abc" || headers["tenant"] != "wallet" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestInitWithoutExporters(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "walletd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()
}

func TestResourceAttrsCarryNetwork(t *testing.T) {
	attrs := resourceAttrs(Config{ServiceName: "walletd", Environment: "dev", Network: "hecotest"})
	found := false
	for _, kv := range attrs {
		if kv.Key == NetworkKey && kv.Value.AsString() == "hecotest" {
			found = true
		}
	}
	if !found || len(attrs) != 3 {
		t.Fatalf("unexpected resource attributes: %v", attrs)
	}
}

func TestSamplerHonoursRatio(t *testing.T) {
	if got := sampler(0).Description(); got != sampler(1).Description() {
		t.Fatalf("zero and one must both sample everything: %q vs %q", got, sampler(1).Description())
	}
	if got := sampler(0.25).Description(); got == sampler(1).Description() {
		t.Fatalf("ratio sampler not applied: %q", got)
	}
}

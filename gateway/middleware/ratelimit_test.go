package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"wallet": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("wallet")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/wallets/0x01/borrowed", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"wallet":  {RequestsPerMinute: 1, Burst: 1},
		"factory": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	walletHandler := limiter.Middleware("wallet")(okHandler())
	factoryHandler := limiter.Middleware("factory")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/wallets/0x01", nil)
	req.Header.Set("X-API-Key", "tenant-A")
	res := httptest.NewRecorder()
	walletHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected wallet request to succeed, got %d", res.Code)
	}

	factoryReq := httptest.NewRequest(http.MethodPost, "/factory/wallets", nil)
	factoryReq.Header.Set("X-API-Key", "tenant-A")
	factoryRes := httptest.NewRecorder()
	factoryHandler.ServeHTTP(factoryRes, factoryReq)
	if factoryRes.Code != http.StatusOK {
		t.Fatalf("expected first factory request to succeed, got %d", factoryRes.Code)
	}
}

func TestRateLimiterKeysByCaller(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"wallet": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("wallet")(okHandler())

	for _, caller := range []common.Address{common.HexToAddress("0xa1"), common.HexToAddress("0xb2")} {
		req := httptest.NewRequest(http.MethodGet, "/wallets/0x01", nil)
		req = req.WithContext(WithCaller(req.Context(), caller))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("caller %s shares a bucket with another caller: %d", caller.Hex(), res.Code)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"wallet": {RequestsPerMinute: 1, Burst: 1}}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	limiter.obtainLimiter("wallet|a", RateLimit{Burst: 1})

	now = now.Add(10 * time.Minute)
	limiter.obtainLimiter("wallet|b", RateLimit{Burst: 1})
	if _, ok := limiter.visitors["wallet|a"]; ok {
		t.Fatalf("idle client must be evicted")
	}
}

func TestRateLimiterMasksAPIKeysInLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	limiter := NewRateLimiter(map[string]RateLimit{
		"factory": {RequestsPerMinute: 1, Burst: 1},
	}, logger)
	handler := limiter.Middleware("factory")(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/factory/wallets", nil)
		req.Header.Set("X-API-Key", "super-secret")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if strings.Contains(buf.String(), "super-secret") {
		t.Fatalf("api key leaked into logs: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "rate limit exceeded") {
		t.Fatalf("expected throttle to be logged, got %q", buf.String())
	}
}

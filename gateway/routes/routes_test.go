package routes

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"fildawallet/config"
	"fildawallet/core"
	"fildawallet/core/genesis"
	"fildawallet/gateway/middleware"
	nativecommon "fildawallet/native/common"
	"fildawallet/native/protocol"
)

var (
	admin = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func etherOf(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), ether) }

type testGateway struct {
	t       *testing.T
	handler http.Handler
	pauses  *config.Pauses
}

func newTestGateway(t *testing.T, quota *middleware.QuotaTracker) *testGateway {
	t.Helper()
	chain, err := core.NewChain(nil)
	require.NoError(t, err)
	dep, err := genesis.Deploy(chain, &genesis.Spec{
		Network:                    config.NetworkDevelopment,
		Admin:                      admin,
		TargetKind:                 protocol.TargetPool,
		LockBlocks:                 5,
		Targets:                    []genesis.TargetSpec{{Target: protocol.PoolTarget(17), RewardPerBlock: ether}},
		DepositCollateralFactorBps: 7_500,
		BorrowCollateralFactorBps:  5_000,
		FildaPerBlock:              ether,
		FildaReserve:               etherOf(1_000_000),
		StakingReserve:             etherOf(1_000_000),
		BorrowLiquidity:            etherOf(10_000),
		Alloc:                      map[common.Address]*big.Int{alice: etherOf(1_000), bob: etherOf(1_000)},
	})
	require.NoError(t, err)

	pauses := &config.Pauses{}
	handler, err := New(Config{
		Chain:         chain,
		Factory:       dep.Factory,
		Registry:      dep.Registry.Address(),
		Pauses:        pauses,
		Quota:         quota,
		DevMode:       true,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{}, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, nil),
	})
	require.NoError(t, err)
	return &testGateway{t: t, handler: handler, pauses: pauses}
}

func (g *testGateway) do(method, path string, caller common.Address, body string) (int, map[string]interface{}) {
	g.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != (common.Address{}) {
		req.Header.Set(middleware.CallerHeader, caller.Hex())
	}
	res := httptest.NewRecorder()
	g.handler.ServeHTTP(res, req)
	out := map[string]interface{}{}
	if strings.HasPrefix(strings.TrimSpace(res.Body.String()), "{") {
		require.NoError(g.t, json.Unmarshal(res.Body.Bytes(), &out))
	}
	return res.Code, out
}

func (g *testGateway) makeWallet(owner common.Address) string {
	g.t.Helper()
	status, body := g.do(http.MethodPost, "/factory/wallets", owner, "")
	require.Equal(g.t, http.StatusCreated, status, body)
	return body["wallet"].(string)
}

func TestFactoryRoutes(t *testing.T) {
	g := newTestGateway(t, nil)

	status, _ := g.do(http.MethodPost, "/factory/wallets", common.Address{}, "")
	require.Equal(t, http.StatusUnauthorized, status)

	made := g.makeWallet(alice)
	status, body := g.do(http.MethodPost, "/factory/wallets", alice, "")
	require.Equal(t, http.StatusConflict, status, body)

	status, body = g.do(http.MethodGet, "/factory/wallets/"+alice.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, made, body["wallet"])

	status, body = g.do(http.MethodGet, "/factory/owners/"+made, common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, alice.Hex(), body["owner"])

	status, _ = g.do(http.MethodGet, "/factory/wallets/"+bob.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusNotFound, status)
	status, _ = g.do(http.MethodGet, "/factory/wallets/not-an-address", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, body = g.do(http.MethodGet, "/wallets/"+made, common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, alice.Hex(), body["owner"])
}

func TestLendingRoutes(t *testing.T) {
	g := newTestGateway(t, nil)
	made := g.makeWallet(alice)
	base := "/wallets/" + made

	status, body := g.do(http.MethodPost, base+"/deposit", alice, `{"amount":"100000000000000000000"}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = g.do(http.MethodGet, base+"/borrow-limit", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, etherOf(75).String(), body["amount"])

	status, _ = g.do(http.MethodPost, base+"/borrow", bob, `{"amount":"1"}`)
	require.Equal(t, http.StatusForbidden, status)

	status, body = g.do(http.MethodPost, base+"/borrow", alice, `{"amount":"76000000000000000000"}`)
	require.Equal(t, http.StatusBadGateway, status, body)

	status, _ = g.do(http.MethodPost, base+"/repay", alice, `{"amount":"1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = g.do(http.MethodPost, base+"/borrow", alice, `{"amount":"0"}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(http.MethodPost, base+"/borrow", alice, `{"amount":"10000000000000000000"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = g.do(http.MethodGet, base+"/borrowed", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, etherOf(10).String(), body["amount"])

	status, body = g.do(http.MethodGet, base+"/membership", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["member"])

	g.pauses.Lending = true
	status, _ = g.do(http.MethodPost, base+"/borrow", alice, `{"amount":"1"}`)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestVotingRoutes(t *testing.T) {
	g := newTestGateway(t, nil)
	made := g.makeWallet(alice)
	base := "/wallets/" + made

	status, body := g.do(http.MethodPost, base+"/votes/17", alice, `{"amount":"5000000000000000000"}`)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, etherOf(5).String(), body["amount"])

	status, body = g.do(http.MethodPost, base+"/votes/17/revoke", alice, `{"amount":"5000000000000000000"}`)
	require.Equal(t, http.StatusOK, status, body)
	require.EqualValues(t, 5, body["exitBlock"])

	status, _ = g.do(http.MethodPost, base+"/votes/17/withdraw", alice, "")
	require.Equal(t, http.StatusPreconditionFailed, status)
	status, body = g.do(http.MethodGet, base+"/votes/17/withdrawable", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["withdrawable"])

	status, body = g.do(http.MethodPost, "/dev/mine", common.Address{}, `{"blocks":5}`)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 5, body["height"])

	status, body = g.do(http.MethodPost, base+"/votes/17/withdraw", alice, "")
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, etherOf(5).String(), body["amount"])

	status, _ = g.do(http.MethodPost, base+"/votes/not-a-target", alice, `{"amount":"1"}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(http.MethodPost, base+"/votes/0x00000000000000000000000000000000000000aa", alice, `{"amount":"1"}`)
	require.Equal(t, http.StatusBadRequest, status)

	g.pauses.Staking = true
	status, _ = g.do(http.MethodPost, base+"/votes/17", alice, `{"amount":"1"}`)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestQuotaLimitsValue(t *testing.T) {
	quota := middleware.NewQuotaTracker(nativecommon.Quota{MaxValuePerEpoch: etherOf(10), EpochSeconds: 3600})
	g := newTestGateway(t, quota)
	made := g.makeWallet(alice)

	status, _ := g.do(http.MethodPost, "/wallets/"+made+"/deposit", alice, `{"amount":"6000000000000000000"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = g.do(http.MethodPost, "/wallets/"+made+"/deposit", alice, `{"amount":"6000000000000000000"}`)
	require.Equal(t, http.StatusTooManyRequests, status)
}

func TestQuotaSkipsTokenDeposits(t *testing.T) {
	quota := middleware.NewQuotaTracker(nativecommon.Quota{MaxValuePerEpoch: etherOf(10), EpochSeconds: 3600})
	g := newTestGateway(t, quota)
	made := g.makeWallet(alice)

	for _, path := range []string{"/deposit-wrapped", "/deposit-htt"} {
		status, _ := g.do(http.MethodPost, "/wallets/"+made+path, alice, `{"amount":"6000000000000000000"}`)
		require.NotEqual(t, http.StatusTooManyRequests, status, path)
	}
	require.NoError(t, quota.Charge(alice, 0, etherOf(10)), "token deposits must not use the native value quota")
}

func TestHealthAndMetrics(t *testing.T) {
	g := newTestGateway(t, nil)
	status, body := g.do(http.MethodGet, "/healthz", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	g.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, statusFor(errNoCaller))
	require.Equal(t, http.StatusBadRequest, statusFor(badRequest("x")))
	require.Equal(t, http.StatusInternalServerError, statusFor(http.ErrHandlerTimeout))
}

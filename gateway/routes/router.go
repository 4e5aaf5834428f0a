package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"fildawallet/gateway/middleware"
	nativecommon "fildawallet/native/common"
	"fildawallet/native/factory"
)

// Chain is the transactional host the handlers run against.
type Chain interface {
	Execute(fn func() error) error
	View(fn func() error) error
	Mine(n uint64) (uint64, error)
	Height() uint64
}

type Config struct {
	Chain    Chain
	Factory  *factory.Factory
	Registry common.Address
	Pauses   nativecommon.PauseView
	Quota    *middleware.QuotaTracker
	// DevMode mounts the /dev routes.
	DevMode bool
	Logger  *slog.Logger

	HealthHandler http.Handler
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// Route groups, used as rate limit keys and metric module labels.
const (
	groupFactory = "factory"
	groupWallet  = "wallet"
	groupDev     = "dev"
)

type service struct {
	chain    Chain
	factory  *factory.Factory
	registry common.Address
	pauses   nativecommon.PauseView
	quota    *middleware.QuotaTracker
	logger   *slog.Logger
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Chain == nil || cfg.Factory == nil {
		return nil, errors.New("routes: chain and factory are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svc := &service{
		chain:    cfg.Chain,
		factory:  cfg.Factory,
		registry: cfg.Registry,
		pauses:   cfg.Pauses,
		quota:    cfg.Quota,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	health := cfg.HealthHandler
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "height": svc.chain.Height()})
		})
	}
	r.Method(http.MethodGet, "/healthz", health)
	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	group := func(name string, mount func(chi.Router)) {
		r.Group(func(sr chi.Router) {
			if cfg.Authenticator != nil {
				sr.Use(cfg.Authenticator.Middleware())
			}
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware(name))
			}
			if cfg.Observability != nil {
				sr.Use(cfg.Observability.Middleware(name))
			}
			mount(sr)
		})
	}

	group(groupFactory, func(sr chi.Router) {
		sr.With(svc.quotaMiddleware(groupFactory)).Post("/factory/wallets", svc.makeWallet)
		sr.Get("/factory/wallets/{owner}", svc.getWallet)
		sr.Get("/factory/owners/{wallet}", svc.getOwner)
	})
	group(groupWallet, func(sr chi.Router) {
		sr.Route("/wallets/{wallet}", svc.mountWallet)
	})
	if cfg.DevMode {
		group(groupDev, func(sr chi.Router) {
			sr.Post("/dev/mine", svc.mine)
		})
	}
	return r, nil
}

func (s *service) quotaMiddleware(module string) func(http.Handler) http.Handler {
	if s.quota == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.quota.Middleware(module)
}

func (s *service) mountWallet(r chi.Router) {
	r.Get("/", s.walletInfo)
	r.Get("/borrow-limit", s.borrowLimit)
	r.Get("/borrowed", s.borrowed)
	r.Get("/exchange-rate", s.exchangeRate)
	r.Get("/membership", s.membership)
	r.Get("/allowance", s.allowance)
	r.Get("/rewards", s.rewards)
	r.Get("/votes", s.votes)
	r.Get("/votes/{target}", s.vote)
	r.Get("/votes/{target}/pending-reward", s.pendingReward)
	r.Get("/votes/{target}/withdrawable", s.withdrawable)

	r.Group(func(mr chi.Router) {
		mr.Use(s.quotaMiddleware(groupWallet))
		mr.Post("/deposit", s.deposit)
		mr.Post("/deposit-htt", s.depositHTT)
		mr.Post("/deposit-wrapped", s.depositWrapped)
		mr.Post("/borrow", s.borrow)
		mr.Post("/repay", s.repay)
		mr.Post("/claim-filda", s.claimFilda)
		mr.Post("/votes/{target}", s.castVote)
		mr.Post("/votes/{target}/claim", s.claim)
		mr.Post("/votes/{target}/revoke", s.revoke)
		mr.Post("/votes/{target}/withdraw", s.withdraw)
		mr.Post("/votes/{target}/withdraw-and-repay", s.withdrawAndRepay)
		mr.Post("/withdraw-and-repay-all", s.withdrawAndRepayAll)
	})
}

// write runs fn as one transaction unless module is paused.
func (s *service) write(module string, fn func() error) error {
	if err := nativecommon.Guard(s.pauses, module); err != nil {
		return err
	}
	return s.chain.Execute(fn)
}

func (s *service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("requestid", middleware.RequestIDFromContext(r.Context())),
		slog.Any("error", err),
	)
	writeJSONError(w, status, err)
}

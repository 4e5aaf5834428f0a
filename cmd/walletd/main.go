package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fildawallet/config"
	"fildawallet/core"
	"fildawallet/core/genesis"
	"fildawallet/core/types"
	"fildawallet/crypto"
	"fildawallet/gateway/middleware"
	"fildawallet/gateway/routes"
	nativecommon "fildawallet/native/common"
	"fildawallet/observability"
	"fildawallet/observability/logging"
	telemetry "fildawallet/observability/otel"
	"fildawallet/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to walletd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("walletd", cfg.Environment, cfg.LogLevel)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "walletd",
		Environment: cfg.Environment,
		Network:     cfg.Network,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := run(cfg, logger); err != nil {
		logger.Error("walletd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	key, err := crypto.LoadFromKeystore(cfg.AdminKeystorePath, cfg.AdminPassphrase())
	if err != nil {
		return err
	}
	admin := key.PubKey().Address()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return err
	}
	defer db.Close()

	chain, err := core.NewChain(db, core.WithLogger(logger))
	if err != nil {
		return err
	}
	chain.OnCommit(func(events []*types.Event) {
		for _, ev := range events {
			observability.Events().RecordEvent(ev.Type)
		}
	})

	spec, err := cfg.GenesisSpec(admin)
	if err != nil {
		return err
	}
	deployment, err := genesis.Deploy(chain, spec)
	if err != nil {
		return err
	}
	logger.Info("wallet subsystem ready",
		"network", cfg.Network,
		"created", deployment.Created,
		"factory", deployment.Factory.Address().Hex(),
		"registry", deployment.Addresses.Registry.Hex(),
		"height", chain.Height())

	_ = chain.View(func() error {
		observability.Chain().SetWallets(deployment.Factory.Count())
		return nil
	})
	observability.Chain().SetHeight(chain.Height())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interval := time.Duration(cfg.Simulation.BlockIntervalMillis) * time.Millisecond; interval > 0 {
		go mineBlocks(ctx, chain, interval, logger)
	}

	secret := cfg.HMACSecret()
	if secret == "" && !cfg.DevMode() {
		logger.Warn("token verification disabled outside development", "network", cfg.Network)
	}
	limit := middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}
	rateLimits := map[string]middleware.RateLimit{
		"factory": limit,
		"wallet":  limit,
		"dev":     limit,
	}

	router, err := routes.New(routes.Config{
		Chain:    chain,
		Factory:  deployment.Factory,
		Registry: deployment.Addresses.Registry,
		Pauses:   cfg.Pauses,
		Quota: middleware.NewQuotaTracker(nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerMin,
			MaxValuePerEpoch:    cfg.MaxValuePerEpoch(),
			EpochSeconds:        cfg.Quota.EpochSeconds,
		}),
		DevMode: cfg.DevMode(),
		Logger:  logger,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:       secret != "",
			HMACSecret:    secret,
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			WriteScope:    cfg.Auth.WriteScope,
			OptionalPaths: []string{"/healthz", "/metrics"},
		}, logger),
		RateLimiter: middleware.NewRateLimiter(rateLimits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "walletd",
			LogRequests: true,
			Enabled:     true,
		}, logger),
		CORS: middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", middleware.CallerHeader},
		},
	})
	if err != nil {
		return err
	}

	handler := router
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, "walletd")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	return nil
}

// mineBlocks advances the chain one block per interval until ctx ends.
func mineBlocks(ctx context.Context, chain *core.Chain, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height, err := chain.Mine(1)
			if err != nil {
				logger.Error("mine block", "error", err)
				continue
			}
			observability.Chain().SetHeight(height)
			logger.Debug("block mined", "height", height)
		}
	}
}

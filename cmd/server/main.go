package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skeesen8/blackjack/internal/auth"
	"github.com/skeesen8/blackjack/internal/config"
	"github.com/skeesen8/blackjack/internal/history"
	"github.com/skeesen8/blackjack/internal/httpapi"
	"github.com/skeesen8/blackjack/internal/hub"
	"github.com/skeesen8/blackjack/internal/lobby"
	"github.com/skeesen8/blackjack/internal/protocol"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/internal/telemetry"
	"github.com/skeesen8/blackjack/internal/ws"
)

const (
	serviceName     = "blackjack"
	shutdownTimeout = 10 * time.Second
	historyBuffer   = 256
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level())
	return zc.Build()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}

	store, err := history.Open(cfg.HistoryDriver, cfg.HistoryDSN, log)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	recorder := history.NewQueue(store, historyBuffer, log)

	if cfg.JWTSecret == "" {
		log.Warn("BLACKJACK_JWT_SECRET is not set; REST commands are disabled")
	}

	reg := registry.New(log)
	adapter := protocol.New(reg, log)

	// Lobbies outlive the signal context so they can be shut down in order.
	h := hub.NewHub(context.Background(), hub.Config{
		Rules: cfg.Rules(),
		Lobby: lobby.Deps{
			Registry:      reg,
			Adapter:       adapter,
			Recorder:      recorder,
			Log:           log,
			NewRoundDelay: cfg.NewRoundDelay,
		},
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:      h,
			Rules:    cfg.Rules(),
			History:  recorder,
			Verifier: auth.NewVerifier(cfg.JWTSecret),
			WS: ws.Deps{
				Registry:       reg,
				Adapter:        adapter,
				Log:            log,
				SendTimeout:    cfg.SendTimeout,
				OutboxSize:     cfg.OutboxSize,
				OriginPatterns: cfg.AllowedOrigins,
			},
			Log: log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("history", cfg.HistoryDriver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting, then close tables (which closes their sockets),
		// then flush the ledger and traces.
		var errs error
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		errs = multierr.Append(errs, h.Shutdown(sctx))
		errs = multierr.Append(errs, recorder.Close())
		errs = multierr.Append(errs, shutdownTracing(sctx))
		return errs
	})
	return g.Wait()
}

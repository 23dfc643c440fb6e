package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse/auth"
	"gatehouse/config"
	"gatehouse/crypto"
	"gatehouse/db"
	"gatehouse/handlers"
	"gatehouse/i18n"
	"gatehouse/logger"
	"gatehouse/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	logger.SetupDefault(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The app still serves pages and /health without a store.
	var store db.AccountStore
	s, err := db.Open(ctx, cfg)
	if err != nil {
		log.Error("account store unavailable, running degraded",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", err.Error()),
		)
	} else {
		defer s.Close()
		store = s
		log.Info("account store ready", slog.String("driver", cfg.StoreDriver))
	}

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, err := handlers.NewRouter(handlers.Deps{
		Config: cfg,
		Store:  store,
		Hasher: crypto.NewHasher(cfg.BcryptCost),
		Sessions: auth.NewManager(cfg.SecretKey, auth.Options{
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionMaxAge,
		}),
		Catalog:  catalog,
		Metrics:  metrics.NewCollector(reg),
		Gatherer: reg,
		Logger:   log,
		Started:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("addr", server.Addr),
			slog.Bool("csrf", cfg.CSRFEnabled),
			slog.Bool("cookie_secure", cfg.CookieSecure),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

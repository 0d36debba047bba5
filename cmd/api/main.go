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

	"github.com/redis/go-redis/v9"

	"github.com/apolyakov/fundledger/internal/api"
	"github.com/apolyakov/fundledger/internal/config"
	"github.com/apolyakov/fundledger/internal/infra/logging"
	"github.com/apolyakov/fundledger/internal/infra/pgutils"
	"github.com/apolyakov/fundledger/internal/repos/quotes"
	pgquotes "github.com/apolyakov/fundledger/internal/repos/quotes/postgres"
	"github.com/apolyakov/fundledger/internal/repos/quotes/rediscache"
	"github.com/apolyakov/fundledger/internal/services/trading"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var quoteSrc quotes.Source = pgquotes.New(db)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		quoteSrc = rediscache.New(rdb, quoteSrc, cfg.Redis.QuoteTTL)

		slog.Info("quote cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.QuoteTTL)
	}

	processor := trading.New(db, quoteSrc)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, processor)

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		slog.Info("Shut down server")

		err = srv.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

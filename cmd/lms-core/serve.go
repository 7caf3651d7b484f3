package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wolfwhale/lms-core/internal/api"
	"github.com/wolfwhale/lms-core/internal/core/service"
	"github.com/wolfwhale/lms-core/internal/infrastructure/billing/stripe"
	"github.com/wolfwhale/lms-core/internal/infrastructure/queue"
	"github.com/wolfwhale/lms-core/internal/infrastructure/scheduler"
	"github.com/wolfwhale/lms-core/internal/pkg/config"
	"github.com/wolfwhale/lms-core/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, XP workers and streak sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

// bootstrap loads configuration and initialises the process logger.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, logger.Get(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "lms-core",
	})
	return cfg, log, nil
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		st.Close(closeCtx)
	}()
	dedup := openDedup(ctx, cfg, st, log)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
		log.Warn().Msg("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not set, all webhook deliveries will be rejected")
	}

	// --- Services ---
	auth := service.NewAuthService(st.users, st.schools, jwtSecret, cfg.TokenTTL, log)
	ledger := service.NewLedgerService(st.users, log)
	schools := service.NewSchoolService(st.schools, log)
	reconciler := service.NewReconcilerService(st.schools, st.events, dedup, log)

	if cfg.Owner.Email != "" {
		if _, err := auth.BootstrapOwner(ctx, cfg.Owner.Name, cfg.Owner.Email, cfg.Owner.Password); err != nil {
			return fmt.Errorf("seed owner: %w", err)
		}
	}

	// --- Background workers ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Workers.XPWorkers, ledger, log)
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
		log.Info().Msg("xp queue drained")
	}()

	sweeper, err := scheduler.NewStreakSweeper(ledger, cfg.Workers.StreakSweepInterval, log)
	if err != nil {
		return err
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("streak sweeper shutdown")
		}
	}()

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Auth:       auth,
		Ledger:     ledger,
		Schools:    schools,
		Reconciler: reconciler,
		Dispatcher: dispatcher,
		Webhooks:   stripe.NewDecoder(cfg.Stripe.WebhookSecret),
		Pingers:    st.pingers,
		JWTSecret:  jwtSecret,
		Log:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/yakoovad/hackreg/internal/api"
	"github.com/yakoovad/hackreg/internal/auth"
	"github.com/yakoovad/hackreg/internal/cache"
	"github.com/yakoovad/hackreg/internal/config"
	"github.com/yakoovad/hackreg/internal/db"
	"github.com/yakoovad/hackreg/internal/ratelimit"
	"github.com/yakoovad/hackreg/internal/repository"
	"github.com/yakoovad/hackreg/internal/service"
	"github.com/yakoovad/hackreg/internal/tracing"
	"github.com/yakoovad/hackreg/internal/validation"
	"github.com/yakoovad/hackreg/pkg/logger"
	"go.uber.org/zap"
)

const statsTTL = 24 * time.Hour

func newServeCmd(a *app) *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, a.cfg, runMigrations)
		},
	}

	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply migrations before serving")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, runMigrations bool) error {
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting application", zap.String("version", version))

	if runMigrations {
		if err := db.Migrate(cfg.Database.DSN, db.Up); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info("database connection established")

	policy, err := validation.PolicyFromConfig(cfg.Registration)
	if err != nil {
		return err
	}
	v := validation.New(policy)

	seen := cache.NewNoopExistence()
	if cfg.Cache.Enabled {
		seen = cache.NewInMemoryExistence(cfg.Cache.TTL, cache.DefaultCleanupInterval)
	}

	registration := service.NewRegistrationService(db.NewPgxTransactor(pool), v).
		WithTeamRepo(repository.NewPgxTeamRepository(pool)).
		WithMemberRepo(repository.NewPgxMemberRepository(pool)).
		WithExistenceCache(seen).
		WithTracer(tp.Tracer())

	checker, err := api.NewHealthChecker("hackreg", api.PostgresCheck(pool))
	if err != nil {
		return err
	}

	handler := api.NewHandler(log, cfg.Server).
		WithRegistrationService(registration).
		WithValidator(v).
		WithHealthChecker(checker)

	if cfg.Auth.Secret != "" {
		signer, err := auth.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		handler.WithSigner(signer)
	}

	if cfg.RateLimit.Enabled {
		opts := []ratelimit.Option{ratelimit.WithIdleTTL(cfg.RateLimit.IdleTTL)}

		if cfg.RateLimit.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RateLimit.RedisAddr,
				Password: cfg.RateLimit.RedisPassword,
				DB:       cfg.RateLimit.RedisDB,
			})
			defer func() { _ = rdb.Close() }()

			stats := ratelimit.NewRedisStats(rdb, cfg.RateLimit.StatsPrefix, statsTTL)
			opts = append(opts, ratelimit.WithStats(stats, log))
		}

		store := ratelimit.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst, opts...)
		store.StartJanitor(ctx)
		store.StartRecorder(ctx)
		handler.WithRateLimiter(store)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Addr))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "start server")
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown server")
	}
	return nil
}

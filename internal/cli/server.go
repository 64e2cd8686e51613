package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/Legit-prep/live-quiz-socket/internal/config"
	"github.com/Legit-prep/live-quiz-socket/internal/infra/memory"
	pgstore "github.com/Legit-prep/live-quiz-socket/internal/infra/postgres"
	redisstore "github.com/Legit-prep/live-quiz-socket/internal/infra/redis"
	transport "github.com/Legit-prep/live-quiz-socket/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// reportBackend is a durable report store usable directly or behind the Redis cache.
type reportBackend interface {
	app.ReportRepository
	redisstore.ReportBackend
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "3000"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var backend reportBackend = memory.NewReportStore()
	if pool != nil {
		backend = pgstore.NewReportStore(pool)
	}

	var reports app.ReportRepository = backend
	if redisClient != nil {
		reports = redisstore.NewReportRepository(redisClient, backend, config.Duration(cfg.Quiz.ReportTTL, 10*time.Minute))
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, config.Duration(cfg.Redis.TTL, 2*time.Hour), clock)
	} else {
		store = memory.NewSessionStore(clock)
	}

	hub := transport.NewHub()
	service := app.NewQuizService(store, reports, hub, serviceOptions(cfg, clock))

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, hub, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting live quiz server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return service.RunJanitor(ctx, config.Duration(cfg.Quiz.SweepInterval, time.Minute))
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	return nil
}

func serviceOptions(cfg config.Config, clock clockwork.Clock) app.Options {
	defaults := app.DefaultOptions()
	return app.Options{
		PointsPerCorrect:  config.IntOr(cfg.Quiz.PointsPerCorrect, defaults.PointsPerCorrect),
		LeaderboardSize:   config.IntOr(cfg.Quiz.LeaderboardSize, defaults.LeaderboardSize),
		LatencyBuffer:     config.Duration(cfg.Quiz.LatencyBuffer, defaults.LatencyBuffer),
		SessionIdleTTL:    config.Duration(cfg.Quiz.SessionIdleTTL, defaults.SessionIdleTTL),
		HideCorrectOption: cfg.Quiz.HideCorrectOption,
		EnforceInstructor: cfg.Quiz.EnforceInstructor,
		Clock:             clock,
	}
}

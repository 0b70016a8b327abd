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

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/skirmish/internal/api"
	"github.com/udisondev/skirmish/internal/config"
	"github.com/udisondev/skirmish/internal/data"
	"github.com/udisondev/skirmish/internal/db"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/telemetry"
)

const ConfigPath = "config/skirmishd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("SKIRMISH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("skirmishd starting", "log_level", cfg.LogLevel, "addr", cfg.HTTP.Addr)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	catalog, err := data.LoadDir(ctx, cfg.ContentDir)
	if err != nil {
		return fmt.Errorf("loading content from %s: %w", cfg.ContentDir, err)
	}

	var (
		progress api.ProgressStore
		sinks    []battle.ResultSink
		apiOpts  []api.Option
	)
	if cfg.Database.InMemory {
		slog.Warn("database disabled, progress is kept in memory")
		progress = api.NewMemoryProgress()
	} else {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		battles := db.NewBattleRepository(database.Pool())
		progress = db.NewProgressRepository(database.Pool())
		sinks = append(sinks, battles)
		apiOpts = append(apiOpts, api.WithHistory(battles), api.WithPinger(database))
	}

	campaigns := api.NewCampaigns(catalog, progress)
	sinks = append(sinks, campaigns)

	manager := battle.NewManager(battle.ManagerConfig{
		IdleTimeout:   cfg.Battle.IdleTimeout,
		Retention:     cfg.Battle.Retention,
		SweepInterval: cfg.Battle.SweepInterval,
		Salt:          cfg.Battle.Salt,
		MaxTurns:      cfg.Battle.MaxTurns,
	}, catalog, sinks...)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewServer(catalog, manager, campaigns, apiOpts...).Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("battle manager: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting http server", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		// последний проход: отдать завершённые бои в хранилище
		manager.Sweep(sctx, time.Now())
		return nil
	})

	slog.Info("all services started")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	poolconfig "lendingpool/config"
	"lendingpool/core/events"
	nativecommon "lendingpool/native/common"
	"lendingpool/observability"
	"lendingpool/observability/logging"
	telemetry "lendingpool/observability/otel"
	"lendingpool/services/poold/config"
	"lendingpool/services/poold/journal"
	"lendingpool/services/poold/scheduler"
	"lendingpool/services/poold/server"
	"lendingpool/services/poold/service"
	"lendingpool/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/poold/config.yaml", "path to poold config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("POOL_ENV"))
	logger := logging.Setup("poold", env)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	poolCfg, err := poolconfig.Load(cfg.PoolFile)
	if err != nil {
		log.Fatalf("load pool parameters: %v", err)
	}
	if cfg.Faucet && !strings.EqualFold(env, "dev") {
		log.Fatalf("faucet is restricted to the dev environment")
	}
	telemetryCfg := telemetry.FromEnv("poold", env).WithAttribute("pool.name", poolCfg.Name)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	db, err := openStorage(cfg.DataDir)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	emitters := []events.Emitter{observability.Events().Emitter(poolCfg.Name)}
	var eventJournal *journal.Journal
	if cfg.Journal.Driver != config.JournalDisabled {
		journalDB, err := journal.Open(cfg.Journal)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		eventJournal, err = journal.New(journalDB, poolCfg.Name, logger)
		if err != nil {
			log.Fatalf("init journal: %v", err)
		}
		emitters = append(emitters, eventJournal)
	}

	svc, err := service.New(service.Options{
		Pool:     poolCfg,
		DB:       db,
		Pauses:   nativecommon.NewPauseSet(cfg.PausedModules...),
		Emitters: emitters,
		Logger:   logger,
		Faucet:   cfg.Faucet,
	})
	if err != nil {
		log.Fatalf("init pool: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkpoints, err := scheduler.New(context.Background(), cfg.Checkpoint.Schedule, svc, logger)
	if err != nil {
		log.Fatalf("init scheduler: %v", err)
	}
	checkpoints.RunNow()
	checkpoints.Start()

	srv := server.New(server.Config{
		Service: svc,
		Journal: eventJournal,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.JWTSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("poold listening", slog.String("address", cfg.ListenAddress), slog.String("pool", poolCfg.Name))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve http", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing server stop", slog.Any("error", err))
	}
	checkpoints.Stop()
	checkpoints.RunNow()
}

// openStorage returns a LevelDB under dir, or an in-memory database when no
// data directory is configured.
func openStorage(dir string) (storage.Database, error) {
	if dir == "" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(filepath.Join(dir, "pool"))
	if err != nil {
		return nil, err
	}
	return db, nil
}

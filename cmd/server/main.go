package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/nutriload/internal/config"
	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/JonMunkholm/nutriload/internal/lock"
	"github.com/JonMunkholm/nutriload/internal/logging"
	"github.com/JonMunkholm/nutriload/internal/metrics"
	"github.com/JonMunkholm/nutriload/internal/store"
	"github.com/JonMunkholm/nutriload/internal/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer backend.Close()

	layout, err := sourceLayout(cfg.Source)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	pipeline := core.NewPipeline(core.PipelineConfig{
		Source:    core.FileSource{Path: cfg.Ingest.SourcePath, Layout: layout},
		Sink:      core.StoreSink{Store: backend.Foods},
		Runs:      backend.Runs,
		ChunkSize: cfg.Ingest.ChunkSize,
		Observer:  collector,
	})

	svcCfg := core.ServiceConfig{
		Timeout:     cfg.Ingest.Timeout,
		MaxWaitTime: cfg.Ingest.MaxWaitTime,
	}
	if cfg.Lock.Enabled() {
		runLock, rdb, err := lock.NewRedisLock(ctx, lock.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
			Key:      cfg.Lock.Key,
			TTL:      cfg.Lock.TTL,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		svcCfg.Lock = runLock
		slog.Info("distributed run lock enabled", "key", cfg.Lock.Key)
	}
	service := core.NewService(pipeline, backend.Foods, svcCfg)

	server := web.NewServer(service, cfg, web.Options{
		Metrics: collector.Handler(),
		Health:  backend.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		service.StartScheduler(gctx, cfg.Ingest.ScheduleInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if n := len(service.ActiveRuns()); n > 0 {
			slog.Info("waiting for active runs to reach a chunk boundary", "active", n)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("runs did not finish in time", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func sourceLayout(cfg config.SourceConfig) (core.Layout, error) {
	if cols := cfg.ColumnIndices(); cols != nil {
		return core.LayoutFromIndices(cols)
	}
	if cfg.LayoutFile != "" {
		return core.LoadLayout(cfg.LayoutFile)
	}
	return core.DefaultLayout(), nil
}

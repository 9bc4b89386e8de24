package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/stylus/internal/config"
	"github.com/ekisa-team/stylus/internal/manager"
	"github.com/ekisa-team/stylus/internal/metrics"
	"github.com/ekisa-team/stylus/internal/resource"
	grpcserver "github.com/ekisa-team/stylus/internal/server/grpc"
	httpserver "github.com/ekisa-team/stylus/internal/server/http"
)

const shutdownTimeout = 10 * time.Second

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		flagConfigPath = fs.String("config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = fs.String("schema", "", "Path to schema file (defaults to the embedded schema)")
		flagHTTPPort   = fs.Int("http-port", 0, "HTTP port to listen on (overrides config)")
		flagGRPCPort   = fs.Int("grpc-port", 0, "gRPC port to listen on (overrides config)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAndValidate(*flagConfigPath, *flagSchemaPath)
	if err != nil {
		return err
	}

	// Storage settings are read once; changing them requires a restart.
	fetcher := resource.NewFetcher(cfg.Storage.ModelsDir, resource.WithAssets(cfg.Storage.Assets))
	reg := metrics.New()
	mgr := manager.NewManager(fetcher, newBackends(), manager.WithMetrics(reg))
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Error("Failed to close models", "error", err)
		}
	}()

	watcher, err := config.NewWatcher(*flagConfigPath, *flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		if err := mgr.LoadModelsFromConfig(ctx, cfg); err != nil {
			slog.Error("Failed to load models from config", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	slog.Info("Config loaded successfully", "config", *flagConfigPath, "models", len(cfg.Models))

	httpPort, grpcPort := cfg.Server.HTTPPort, cfg.Server.GRPCPort
	if *flagHTTPPort != 0 {
		httpPort = *flagHTTPPort
	}
	if *flagGRPCPort != 0 {
		grpcPort = *flagGRPCPort
	}

	httpSrv := httpserver.NewServer(httpPort, mgr, httpserver.WithMetrics(reg.Handler()))
	grpcSrv := grpcserver.NewServer(grpcPort, mgr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.ListenAndServe)
	g.Go(grpcSrv.ListenAndServe)
	g.Go(func() error {
		if err := mgr.LoadModelsFromConfig(gctx, watcher.Snapshot()); err != nil {
			slog.Error("Failed to load models from config", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcSrv.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

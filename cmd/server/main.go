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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/activity"
	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/room"
	"github.com/Tyrowin/roomrelay/internal/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		port    string
	)
	run := func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), cfgFile, port)
	}

	rootCmd := &cobra.Command{
		Use:          "roomrelay",
		Short:        "Room-based WebSocket chat relay",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.Flags().StringVar(&port, "port", "", "listen address, overrides server.port")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay (default)",
		RunE:  run,
	}
	serveCmd.Flags().StringVar(&port, "port", "", "listen address, overrides server.port")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)
	return rootCmd
}

func serve(ctx context.Context, cfgFile, port string) error {
	// Local .env is optional.
	_ = godotenv.Load()

	loaded, err := server.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if port != "" {
		loaded.Port = port
	}
	server.SetConfig(loaded)
	cfg := server.ActiveConfig()

	logger, err := server.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	restore := zap.ReplaceGlobals(logger)
	defer restore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sink, err := activity.NewPublisher(ctx, cfg.Activity.SinkConfig())
	if err != nil {
		return fmt.Errorf("activity sink: %w", err)
	}
	dispatcher := activity.NewDispatcher(sink, cfg.Activity.Buffer, logger.Named("activity"), m)

	manager := room.NewManager(
		room.WithLogger(logger.Named("room")),
		room.WithMetrics(m),
		room.WithRecorder(dispatcher),
	)
	hub := server.NewHub(manager, logger.Named("hub"))
	go hub.Run()

	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		gatherer = reg
	}
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, gatherer))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server crashed", zap.Error(err))
			_ = hub.Shutdown(cfg.ShutdownTimeout)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown incomplete", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Close(flushCtx); err != nil {
		logger.Warn("activity flush incomplete", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

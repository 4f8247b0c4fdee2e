package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meadej/edgetech-gdl90/internal/bus"
	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
	"github.com/meadej/edgetech-gdl90/internal/replay"
	"github.com/meadej/edgetech-gdl90/internal/server"
	"github.com/meadej/edgetech-gdl90/internal/traffic"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "edgetech-gdl90"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	replayPath := flag.String("replay", "", "Replay a pcap/pcapng capture instead of listening on UDP")
	replayRealtime := flag.Bool("replay-realtime", false, "Pace replay by capture timestamps")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("queue_capacity", cfg.Queue.Capacity),
		slog.String("publisher", cfg.Publisher.Type),
		slog.String("sensor_id", cfg.Publisher.SensorID),
		slog.Duration("traffic_timeout", cfg.Traffic.GetTimeoutDuration()),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	publisher, err := bus.NewPublisher(cfg.Publisher, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create publisher",
			slog.String("type", cfg.Publisher.Type),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Publisher initialized", slog.String("type", cfg.Publisher.Type))

	queue := bus.NewQueue(cfg.Queue.Capacity)
	worker := bus.NewWorker(queue, publisher, cfg.Queue.GetPublishTimeoutDuration(), logger, appMetrics)
	worker.Start()

	// Capture timestamps are in the past, so expiry only makes sense live
	var tracker *traffic.Manager
	if *replayPath == "" {
		tracker = traffic.NewManager(logger, traffic.Config{
			Timeout:         cfg.Traffic.GetTimeoutDuration(),
			CleanupInterval: cfg.Traffic.GetCleanupIntervalDuration(),
		}, appMetrics)
	}

	pipeline := server.NewPipeline(cfg.Publisher.SensorID, queue, tracker, logger, appMetrics)

	if *replayPath != "" {
		os.Exit(runReplay(cfg, logger, pipeline, worker, publisher, *replayPath, *replayRealtime))
	}

	udpServer := server.NewUDPServer(&cfg.Server, logger, pipeline, appMetrics, nil)

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, server.HTTPDeps{
			UDP:      udpServer,
			Pipeline: pipeline,
			Worker:   worker,
			Traffic:  tracker,
			Metrics:  appMetrics,
		}, prometheus.DefaultGatherer)
	}

	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		tracker.Stop()
		publisher.Close()
		os.Exit(1)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-udpServer.Fatal():
		logger.Error("UDP listener failed, shutting down", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("Starting graceful shutdown...")

	// Stop reading first so nothing new is enqueued while draining
	udpServer.Stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Queue.GetDrainTimeoutDuration())
	if flushed, err := worker.Drain(drainCtx); err != nil {
		logger.Warn("Publish queue not fully drained",
			slog.Int("discarded", flushed),
			slog.String("error", err.Error()),
		)
	}
	drainCancel()

	if err := udpServer.Close(); err != nil {
		logger.Error("Error closing UDP socket", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	tracker.Stop()

	if err := publisher.Close(); err != nil {
		logger.Error("Error closing publisher", slog.String("error", err.Error()))
	}

	logFinalStats(logger, pipeline, worker)
	logger.Info("Service stopped")
	os.Exit(exitCode)
}

// runReplay feeds a capture through the pipeline, drains the queue and
// returns the process exit code.
func runReplay(cfg *config.Config, logger *slog.Logger, pipeline *server.Pipeline, worker *bus.Worker, publisher bus.Publisher, path string, realtime bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	_, err := replay.ReadFile(ctx, path, pipeline, replay.Options{
		Port:     cfg.Server.UDPPort,
		Realtime: realtime,
	}, logger)
	if err != nil {
		logger.Error("Replay failed", slog.String("path", path), slog.String("error", err.Error()))
		exitCode = 1
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Queue.GetDrainTimeoutDuration())
	defer drainCancel()
	if flushed, err := worker.Drain(drainCtx); err != nil {
		logger.Warn("Publish queue not fully drained",
			slog.Int("discarded", flushed),
			slog.String("error", err.Error()),
		)
	}

	if err := publisher.Close(); err != nil {
		logger.Error("Error closing publisher", slog.String("error", err.Error()))
	}

	logFinalStats(logger, pipeline, worker)
	return exitCode
}

func logFinalStats(logger *slog.Logger, pipeline *server.Pipeline, worker *bus.Worker) {
	decoded := pipeline.GetStats()
	published := worker.GetStats()
	logger.Info("Final statistics",
		slog.Uint64("datagrams", decoded.Datagrams),
		slog.Uint64("heartbeats", decoded.Heartbeats),
		slog.Uint64("traffic_reports", decoded.TrafficReports),
		slog.Uint64("frames_discarded", decoded.FramesDiscarded),
		slog.Uint64("decode_errors", decoded.DecodeErrors),
		slog.Uint64("messages_ignored", decoded.MessagesIgnored),
		slog.Uint64("published", published.Published),
		slog.Uint64("publish_failures", published.Failed),
		slog.Uint64("queue_dropped", published.QueueDropped),
	)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"coalescer/internal/cache"
	"coalescer/internal/config"
	"coalescer/internal/engine"
	"coalescer/internal/monitor"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Dur("maxPendingTime", cfg.GetMaxPendingTimeDuration()).
		Dur("batchDelay", cfg.GetBatchDelayDuration()).
		Int("maxBatchSize", cfg.MaxBatchSize).
		Msg("starting coalescer")

	// Create result cache based on config
	var resultCache cache.Cache
	if cfg.IsCacheEnabled() {
		resultCache, err = cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.GetTTLDuration())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create result cache")
		}

		if len(cfg.Cache.DisabledKinds) > 0 {
			cache.SetDisabledKinds(cfg.Cache.DisabledKinds)
			logger.Info().
				Strs("disabledKinds", cfg.Cache.DisabledKinds).
				Msg("result cache disabled for specific kinds")
		}

		logger.Info().
			Int("size", cfg.Cache.Size).
			Int("ttl", cfg.Cache.TTL).
			Msg("result cache enabled")
	} else {
		resultCache = cache.NewNoopCache()
		logger.Info().Msg("result cache disabled")
	}

	// Create engine
	eng := engine.New(engine.Config{
		MaxPendingTime:   cfg.GetMaxPendingTimeDuration(),
		ReaperInterval:   cfg.GetReaperIntervalDuration(),
		BatchDelay:       cfg.GetBatchDelayDuration(),
		MaxBatchSize:     cfg.MaxBatchSize,
		StaggerDelay:     cfg.GetStaggerDelayDuration(),
		MaxConcurrentOps: cfg.MaxConcurrentOps,
	}, resultCache, logger)

	// Start monitor server
	var mon *monitor.Server
	if cfg.IsMonitorEnabled() {
		mon = monitor.New(eng, cfg.Monitor.Host, cfg.Monitor.Port, cfg.Monitor.GetPushIntervalDuration(), logger)
		mon.Start()
	} else {
		logger.Info().Msg("monitor disabled")
	}

	// Start synthetic workload
	workCtx, stopWork := context.WithCancel(context.Background())
	workDone := make(chan struct{})
	if cfg.IsSimulationEnabled() {
		go func() {
			defer close(workDone)
			runWorkload(workCtx, eng, cfg.Simulation, logger)
		}()
	} else {
		close(workDone)
		logger.Info().Msg("simulation disabled")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopWork()
	<-workDone

	if mon != nil {
		if err := mon.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("error stopping monitor")
		}
	}

	eng.Close()

	stats := eng.GetStats()
	logger.Info().
		Uint64("totalRequests", stats.TotalRequests).
		Uint64("duplicateRequests", stats.DuplicateRequests).
		Uint64("batchedRequests", stats.BatchedRequests).
		Float64("costSaved", stats.CostSaved).
		Float64("efficiency", stats.Efficiency).
		Msg("final statistics")
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// Configure output
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

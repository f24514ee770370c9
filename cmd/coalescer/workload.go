package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coalescer/internal/config"
	"coalescer/internal/engine"
	"coalescer/internal/keys"
	"coalescer/internal/request"
)

// runWorkload drives the engine with synthetic callers so dedup and
// batching behavior can be observed live through the monitor. Each caller
// repeatedly submits a request with content drawn from a bounded key
// space, which produces plenty of concurrent duplicates.
func runWorkload(ctx context.Context, eng *engine.Engine, cfg *config.SimulationConfig, logger zerolog.Logger) {
	logger = logger.With().Str("component", "workload").Logger()
	logger.Info().
		Int("callers", cfg.Callers).
		Int("keySpace", cfg.KeySpace).
		Strs("batchTypes", cfg.BatchTypes).
		Msg("starting synthetic workload")

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.Callers; i++ {
		caller := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(caller)))
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(cfg.GetIntervalDuration()):
				}

				submitOne(ctx, eng, cfg, rng)
			}
		})
	}

	_ = g.Wait()
	logger.Info().Msg("synthetic workload stopped")
}

// submitOne issues a single synthetic request; roughly half are batchable
func submitOne(ctx context.Context, eng *engine.Engine, cfg *config.SimulationConfig, rng *rand.Rand) {
	content := fmt.Sprintf("prompt-%d", rng.Intn(cfg.KeySpace))
	params := map[string]interface{}{
		"model":       "sim-large",
		"temperature": 0.2,
	}
	key := keys.Derive(content, params)

	opts := engine.Options{
		Priority: randomPriority(rng),
		Cost:     0.01,
	}
	if rng.Intn(2) == 0 {
		opts.Batchable = true
		opts.BatchType = cfg.BatchTypes[rng.Intn(len(cfg.BatchTypes))]
	}

	// Drawn up front so the op never touches the caller's rng
	delay := time.Duration(20+rng.Intn(80)) * time.Millisecond

	op := func(ctx context.Context) (interface{}, error) {
		// Simulated remote call latency
		select {
		case <-time.After(delay):
			return fmt.Sprintf("result for %s", content), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, _ = eng.Execute(ctx, op, key, opts)
}

func randomPriority(rng *rand.Rand) request.Priority {
	switch rng.Intn(10) {
	case 0:
		return request.PriorityHigh
	case 1, 2:
		return request.PriorityLow
	default:
		return request.PriorityNormal
	}
}

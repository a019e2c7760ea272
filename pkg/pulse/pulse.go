// Package pulse runs the metabolism loop: dispatch triggered protocols for
// active signals, sweep for stagnation, auto-resolve cleared voids, and
// record a summary of every run. The pulse drives the standard primitives
// through the registry; it never executes protocols itself.
package pulse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/store"
)

const (
	// DefaultInterval between pulses when the config leaves it unset.
	DefaultInterval = 60 * time.Second
	// DefaultSignalLimit throttles signals processed per pulse.
	DefaultSignalLimit = 10
)

// Config holds runner construction options.
type Config struct {
	Store       *store.Store
	Registry    *primitive.Registry
	Logger      *zap.Logger
	Interval    time.Duration
	SignalLimit int
}

// Runner executes pulses. A runner never overlaps with itself: if a pulse
// is still running when the next tick fires, the tick is skipped.
type Runner struct {
	store    *store.Store
	registry *primitive.Registry
	logger   *zap.Logger
	interval time.Duration
	limit    int

	running sync.Mutex
}

func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SignalLimit <= 0 {
		cfg.SignalLimit = DefaultSignalLimit
	}

	return &Runner{
		store:    cfg.Store,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		interval: cfg.Interval,
		limit:    cfg.SignalLimit,
	}
}

func (r *Runner) exec() *primitive.ExecContext {
	return &primitive.ExecContext{
		Store:    r.store,
		Registry: r.registry,
		Logger:   r.logger,
	}
}

// Preview lists the signals the next pulse would process, without writes.
func (r *Runner) Preview(ctx context.Context) (map[string]any, error) {
	resp := r.registry.Call(ctx, "primitive-pulse-preview",
		map[string]any{"limit": r.limit}, r.exec())
	if resp.IsError() {
		return nil, fmt.Errorf("pulse preview: %s", resp.ErrorMessage)
	}
	return resp.Data, nil
}

// Run performs one pulse. Returns nil without error when a pulse is
// already in flight; the skip is logged.
func (r *Runner) Run(ctx context.Context) (*store.PulseRecord, error) {
	if !r.running.TryLock() {
		r.logger.Warn("pulse still running, skipping tick")
		return nil, nil
	}
	defer r.running.Unlock()

	// Each run gets the interval as its deadline.
	ctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	started := time.Now()
	rec := store.PulseRecord{PulseAt: started.UTC()}

	check := r.registry.Call(ctx, "primitive-pulse-check-signals",
		map[string]any{"limit": r.limit}, r.exec())
	if check.IsError() {
		rec.Errors++
		rec.ErrorDetails = append(rec.ErrorDetails, "check-signals: "+check.ErrorMessage)
	} else {
		rec.SignalsFound, _ = check.Data["signals_found"].(int)
		rec.SignalsProcessed, _ = check.Data["signals_processed"].(int)
		if triggered, ok := check.Data["protocols_triggered"].([]any); ok {
			rec.ProtocolsTriggered = len(triggered)
		}
		if errs, ok := check.Data["errors"].([]any); ok {
			rec.Errors += len(errs)
			for _, e := range errs {
				rec.ErrorDetails = append(rec.ErrorDetails, fmt.Sprintf("%v", e))
			}
		}
	}

	stagnation := r.registry.Call(ctx, "primitive-detect-stagnation", nil, r.exec())
	if stagnation.IsError() {
		rec.Errors++
		rec.ErrorDetails = append(rec.ErrorDetails, "detect-stagnation: "+stagnation.ErrorMessage)
	}

	voids := r.registry.Call(ctx, "primitive-check-void-resolution", nil, r.exec())
	if voids.IsError() {
		rec.Errors++
		rec.ErrorDetails = append(rec.ErrorDetails, "check-void-resolution: "+voids.ErrorMessage)
	}

	rec.DurationMs = time.Since(started).Milliseconds()

	if err := r.store.RecordPulse(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording pulse: %w", err)
	}

	r.logger.Debug("pulse complete",
		zap.Int("signals_found", rec.SignalsFound),
		zap.Int("signals_processed", rec.SignalsProcessed),
		zap.Int("errors", rec.Errors),
		zap.Int64("duration_ms", rec.DurationMs),
	)

	return &rec, nil
}

// RunLoop pulses on the configured interval until the context is canceled.
func (r *Runner) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("pulse loop started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pulse loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("pulse failed", zap.Error(err))
			}
		}
	}
}

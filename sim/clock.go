package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const DefaultInterval = 3 * time.Second

// Ticker is what a Clock drives. *Engine satisfies it.
type Ticker interface {
	Tick(ctx context.Context) (TickReport, error)
}

// ClockConfig tunes a Clock. Zero values pick the defaults.
type ClockConfig struct {
	Interval   time.Duration
	MaxTicks   uint64 // 0 runs until cancelled
	MaxRetries int    // 0 means 3, negative disables retries
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (c ClockConfig) withDefaults() ClockConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = 2 * time.Second
		if c.MaxBackoff < c.Backoff {
			c.MaxBackoff = c.Backoff
		}
	}
	return c
}

// Clock runs ticks on a fixed interval from a single goroutine, so ticks
// never overlap. A failed tick is retried with backoff; an error that
// outlasts the retries stops the clock.
type Clock struct {
	target   Ticker
	cfg      ClockConfig
	executor failsafe.Executor[TickReport]
	logger   *slog.Logger
	onTick   func(TickReport)
}

func NewClock(target Ticker, cfg ClockConfig, logger *slog.Logger) *Clock {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "sim.clock"))

	policy := retrypolicy.NewBuilder[TickReport]().
		HandleIf(func(_ TickReport, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}).
		WithBackoff(cfg.Backoff, cfg.MaxBackoff).
		WithMaxRetries(cfg.MaxRetries).
		OnRetry(func(ev failsafe.ExecutionEvent[TickReport]) {
			logger.Warn("retrying tick",
				slog.Int("attempt", ev.Attempts()),
				slog.Any("err", ev.LastError()),
			)
		}).
		Build()

	return &Clock{
		target:   target,
		cfg:      cfg,
		executor: failsafe.With[TickReport](policy),
		logger:   logger,
	}
}

// OnTick registers a callback run after every committed tick.
func (c *Clock) OnTick(fn func(TickReport)) { c.onTick = fn }

// Run ticks until ctx is cancelled, MaxTicks is reached, or a tick fails
// for good. Cancellation is a normal stop and returns nil.
func (c *Clock) Run(ctx context.Context) error {
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()

	c.logger.Info("clock started",
		slog.Duration("interval", c.cfg.Interval),
		slog.Uint64("max_ticks", c.cfg.MaxTicks),
	)

	var done uint64
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("clock stopped", slog.Uint64("ticks", done))
			return nil
		case <-t.C:
		}

		rep, err := c.executor.WithContext(ctx).Get(func() (TickReport, error) {
			return c.target.Tick(ctx)
		})
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("clock stopped", slog.Uint64("ticks", done))
				return nil
			}
			return fmt.Errorf("clock: %w", err)
		}

		done++
		if c.onTick != nil {
			c.onTick(rep)
		}
		if c.cfg.MaxTicks > 0 && done >= c.cfg.MaxTicks {
			c.logger.Info("tick limit reached", slog.Uint64("ticks", done))
			return nil
		}
	}
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/papertrade/config"
	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/kv"
	"github.com/rustyeddy/papertrade/metrics"
	"github.com/rustyeddy/papertrade/notify"
	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/pricing"
	"github.com/rustyeddy/papertrade/sim"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	backend kv.Store
	journal journal.Journal
	store   *position.Store
	engine  *sim.Engine
	feed    *notify.Feed
	metrics *metrics.Metrics
}

func openBackend(ctx context.Context, c config.StoreConfig) (kv.Store, error) {
	switch c.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "file":
		return kv.NewFile(c.Path)
	case "sqlite":
		return kv.NewSQLite(c.Path)
	case "redis":
		return kv.NewRedis(ctx, kv.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

func openJournal(c config.JournalConfig) (journal.Journal, error) {
	switch c.Type {
	case "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(c.TradesFile)
	case "sqlite":
		return journal.NewSQLite(c.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Type)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store backend: %w", err)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create journal: %w", err)
	}

	a := &app{backend: backend, journal: j}

	seed := cfg.Simulation.Seed
	storeOpts := []position.Option{
		position.WithLogger(logger),
		position.WithRand(pricing.NewSource(seed)),
	}
	if cfg.Store.Key != "" {
		storeOpts = append(storeOpts, position.WithKey(cfg.Store.Key))
	}
	a.store, err = position.NewStore(ctx, backend, storeOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load positions: %w", err)
	}

	a.feed = notify.NewFeed(cfg.Notify.FeedSize)
	sinks := notify.Fanout{a.feed}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.NewLogger(logger))
	}
	if cfg.Notify.RedisChannel != "" {
		if rdb := a.redisClient(); rdb != nil {
			sinks = append(sinks, notify.NewRedis(rdb, cfg.Notify.RedisChannel, logger))
		}
	}

	// The tick draws from its own stream so a fixed seed replays the same walk.
	tickSeed := seed
	if tickSeed != 0 {
		tickSeed++
	}

	a.metrics = metrics.New()
	a.engine = sim.NewEngine(a.store,
		sim.WithRand(pricing.NewSource(tickSeed)),
		sim.WithJournal(j),
		sim.WithSink(sinks),
		sim.WithMetrics(a.metrics),
		sim.WithLogger(logger),
	)
	return a, nil
}

func (a *app) Close() error {
	jerr := a.journal.Close()
	if err := a.backend.Close(); err != nil {
		return err
	}
	return jerr
}

// redisClient is non-nil when positions live in Redis.
func (a *app) redisClient() *redis.Client {
	if r, ok := a.backend.(*kv.Redis); ok {
		return r.Client()
	}
	return nil
}

// Package sim drives the paper-trading simulation: user buy and sell actions,
// the per-tick price walk, and the automatic exit rules for autopilot
// positions.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/papertrade/id"
	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/notify"
	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/pricing"
)

// Recorder receives engine counters. metrics.Metrics implements it.
type Recorder interface {
	ObserveTick(d time.Duration, open int)
	RecordExit(reason string)
	RecordTrade(side, mode string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(time.Duration, int) {}
func (nopRecorder) RecordExit(string)              {}
func (nopRecorder) RecordTrade(string, string)     {}

// Exit is a position the engine closed during a tick.
type Exit struct {
	Position position.Position // as it stood at the exit price
	Reason   Reason
}

// TickReport summarizes one tick.
type TickReport struct {
	Tick  uint64
	Open  int
	Exits []Exit
}

type Engine struct {
	store   *position.Store
	rand    pricing.Source
	journal journal.Journal
	sink    notify.Sink
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time

	ticks atomic.Uint64
}

type Option func(*Engine)

// WithRand sets the source for the price walk and the volatility exit. It is
// only drawn from inside the store mutation, so it needs no locking of its
// own.
func WithRand(src pricing.Source) Option {
	return func(e *Engine) { e.rand = src }
}

func WithJournal(j journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithSink(s notify.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithMetrics(r Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store *position.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		journal: journal.Nop{},
		sink:    notify.Discard,
		metrics: nopRecorder{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = pricing.NewSource(0)
	}
	e.logger = e.logger.With(slog.String("component", "sim.engine"))
	return e
}

func (e *Engine) Store() *position.Store { return e.store }

// Ticks is the number of ticks committed so far.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// Buy opens a position and reports the trade.
func (e *Engine) Buy(ctx context.Context, o position.Order) (position.Position, error) {
	p, err := e.store.Open(ctx, o)
	if err != nil {
		return position.Position{}, fmt.Errorf("buy: %w", err)
	}

	e.recordTrade(ctx, journal.TradeRecord{
		PositionID:    p.ID,
		Ticker:        p.Ticker,
		Side:          journal.Buy,
		Mode:          string(p.Mode),
		Quantity:      p.Quantity,
		Price:         p.PurchasePrice,
		PurchasePrice: p.PurchasePrice,
		Time:          p.PurchaseDate,
		Reason:        journal.ReasonManualBuy,
	})
	e.emit(ctx, "Position Bought",
		fmt.Sprintf("Bought %d shares of %s at $%.2f (%s).", p.Quantity, p.Ticker, p.PurchasePrice, p.Mode))

	return p, nil
}

// Sell sells up to quantity shares of the first position held in ticker,
// whatever its mode.
func (e *Engine) Sell(ctx context.Context, ticker string, quantity int) (position.CloseResult, error) {
	res, err := e.store.Close(ctx, ticker, quantity)
	if err != nil {
		return position.CloseResult{}, fmt.Errorf("sell: %w", err)
	}

	p := res.Position
	e.recordTrade(ctx, journal.TradeRecord{
		PositionID:    p.ID,
		Ticker:        p.Ticker,
		Side:          journal.Sell,
		Mode:          string(p.Mode),
		Quantity:      res.Sold,
		Price:         res.Price,
		PurchasePrice: p.PurchasePrice,
		RealizedPL:    realizedPL(p.PurchasePrice, res.Price, res.Sold),
		Time:          e.now(),
		Reason:        journal.ReasonManualSell,
	})

	msg := fmt.Sprintf("Sold %d shares of %s at $%.2f.", res.Sold, p.Ticker, res.Price)
	if !res.Full() {
		msg = fmt.Sprintf("Sold %d shares of %s at $%.2f, %d remaining.", res.Sold, p.Ticker, res.Price, res.Remaining)
	}
	e.emit(ctx, "Position Sold", msg)

	return res, nil
}

// ClosePosition fully sells one position by id at its current price.
func (e *Engine) ClosePosition(ctx context.Context, positionID string) (position.Position, error) {
	p, err := e.store.CloseByID(ctx, positionID, journal.ReasonManualSell)
	if err != nil {
		return position.Position{}, fmt.Errorf("close position: %w", err)
	}

	e.recordTrade(ctx, journal.TradeRecord{
		PositionID:    p.ID,
		Ticker:        p.Ticker,
		Side:          journal.Sell,
		Mode:          string(p.Mode),
		Quantity:      p.Quantity,
		Price:         p.CurrentPrice,
		PurchasePrice: p.PurchasePrice,
		RealizedPL:    realizedPL(p.PurchasePrice, p.CurrentPrice, p.Quantity),
		Time:          e.now(),
		Reason:        journal.ReasonManualSell,
	})
	e.emit(ctx, "Position Sold",
		fmt.Sprintf("Sold %d shares of %s at $%.2f.", p.Quantity, p.Ticker, p.CurrentPrice))

	return p, nil
}

// Tick advances every open position one step and applies the exit rules.
// All prices move before any rule runs, and the whole transition is
// persisted as one snapshot. Reports go out after the store lock is
// released.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	start := e.now()

	var (
		exits []Exit
		open  int
	)
	err := e.store.Mutate(ctx, func(ps []position.Position) ([]position.Position, error) {
		exits = nil
		for i := range ps {
			ps[i].CurrentPrice = pricing.Next(ps[i].CurrentPrice, ps[i].VolatilityFactor, e.rand)
		}

		kept := ps[:0]
		for _, p := range ps {
			if d := Evaluate(p, e.rand); d.Exit {
				exits = append(exits, Exit{Position: p, Reason: d.Reason})
				continue
			}
			kept = append(kept, p)
		}
		open = len(kept)
		return kept, nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.ErrorContext(ctx, "tick failed", slog.Any("err", err))
		}
		return TickReport{}, fmt.Errorf("tick: %w", err)
	}

	n := e.ticks.Add(1)
	e.metrics.ObserveTick(e.now().Sub(start), open)

	for _, x := range exits {
		e.reportExit(ctx, x)
	}

	e.logger.DebugContext(ctx, "tick",
		slog.Uint64("tick", n),
		slog.Int("open", open),
		slog.Int("exits", len(exits)),
	)
	return TickReport{Tick: n, Open: open, Exits: exits}, nil
}

func (e *Engine) reportExit(ctx context.Context, x Exit) {
	p := x.Position

	e.logger.InfoContext(ctx, "autopilot exit",
		slog.String("id", p.ID),
		slog.String("ticker", p.Ticker),
		slog.Float64("price", p.CurrentPrice),
		slog.String("reason", string(x.Reason)),
	)
	e.metrics.RecordExit(string(x.Reason))

	e.recordTrade(ctx, journal.TradeRecord{
		PositionID:    p.ID,
		Ticker:        p.Ticker,
		Side:          journal.Sell,
		Mode:          string(p.Mode),
		Quantity:      p.Quantity,
		Price:         p.CurrentPrice,
		PurchasePrice: p.PurchasePrice,
		RealizedPL:    realizedPL(p.PurchasePrice, p.CurrentPrice, p.Quantity),
		Time:          e.now(),
		Reason:        string(x.Reason),
	})
	e.emit(ctx, "Autopilot Sold",
		fmt.Sprintf("Sold %d shares of %s at $%.2f: %s (%s).", p.Quantity, p.Ticker, p.CurrentPrice, x.Reason, p.Mode))
}

// recordTrade journals rec. The trade has already been persisted, so a
// journal failure is logged and dropped.
func (e *Engine) recordTrade(ctx context.Context, rec journal.TradeRecord) {
	if rec.TradeID == "" {
		rec.TradeID = id.New()
	}
	e.metrics.RecordTrade(string(rec.Side), rec.Mode)

	if err := e.journal.RecordTrade(rec); err != nil {
		e.logger.WarnContext(ctx, "journal trade failed",
			slog.String("position", rec.PositionID),
			slog.Any("err", err),
		)
	}
}

func (e *Engine) emit(ctx context.Context, title, msg string) {
	e.sink.Emit(ctx, notify.New(notify.TradeExecuted, title, msg, e.now()))
}

func realizedPL(purchase, price float64, qty int) float64 {
	return pricing.Round((price - purchase) * float64(qty))
}

package sim

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/kv"
	"github.com/rustyeddy/papertrade/notify"
	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/pricing"
)

type testJournal struct {
	mu     sync.Mutex
	trades []journal.TradeRecord
	err    error
}

func (j *testJournal) RecordTrade(rec journal.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.trades = append(j.trades, rec)
	return nil
}

func (j *testJournal) Close() error { return nil }

type testSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (s *testSink) Emit(_ context.Context, n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

type testRecorder struct {
	ticks  int
	exits  []string
	trades []string
}

func (r *testRecorder) ObserveTick(time.Duration, int) { r.ticks++ }
func (r *testRecorder) RecordExit(reason string)       { r.exits = append(r.exits, reason) }
func (r *testRecorder) RecordTrade(side, mode string)  { r.trades = append(r.trades, side+"/"+mode) }

// failingBackend fails every Put while fail is set.
type failingBackend struct {
	*kv.Memory
	fail bool
}

func (b *failingBackend) Put(ctx context.Context, key string, value []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Memory.Put(ctx, key, value)
}

type fixture struct {
	engine  *Engine
	store   *position.Store
	backend *failingBackend
	journal *testJournal
	sink    *testSink
	metrics *testRecorder
}

// newFixture builds an engine whose store draws volatility from storeDraws
// and whose tick draws from tickDraws.
func newFixture(t *testing.T, storeDraws, tickDraws []float64) *fixture {
	t.Helper()

	backend := &failingBackend{Memory: kv.NewMemory()}
	store, err := position.NewStore(context.Background(), backend,
		position.WithRand(pricing.NewSequence(storeDraws...)),
	)
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		backend: backend,
		journal: &testJournal{},
		sink:    &testSink{},
		metrics: &testRecorder{},
	}
	f.engine = NewEngine(store,
		WithRand(pricing.NewSequence(tickDraws...)),
		WithJournal(f.journal),
		WithSink(f.sink),
		WithMetrics(f.metrics),
	)
	return f
}

// setPrice moves a position's current price directly.
func setPrice(t *testing.T, s *position.Store, ticker string, price float64) {
	t.Helper()
	err := s.Mutate(context.Background(), func(ps []position.Position) ([]position.Position, error) {
		for i := range ps {
			if ps[i].Ticker == ticker {
				ps[i].CurrentPrice = price
			}
		}
		return ps, nil
	})
	require.NoError(t, err)
}

func TestEngineAutopilotTargetReached(t *testing.T) {
	t.Parallel()

	// volatility 0.2 keeps the volatility rule out; draw 0.5 leaves prices flat.
	f := newFixture(t, []float64{0.2}, []float64{0.5})
	ctx := context.Background()

	p, err := f.engine.Buy(ctx, position.Order{
		Ticker:        "aapl",
		Quantity:      10,
		PurchasePrice: 100,
		TargetPrice:   ptr(110),
		StopLossPrice: ptr(90),
		Mode:          position.Autopilot,
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Ticker)
	assert.InDelta(t, 0.2, p.VolatilityFactor, 1e-9)

	rep, err := f.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Exits)
	assert.Equal(t, 1, rep.Open)

	setPrice(t, f.store, "AAPL", 111)

	rep, err = f.engine.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Exits, 1)
	assert.Equal(t, ReasonTargetReached, rep.Exits[0].Reason)
	assert.InDelta(t, 111.0, rep.Exits[0].Position.CurrentPrice, 1e-9)
	assert.Equal(t, uint64(2), rep.Tick)
	assert.Zero(t, f.store.Len())

	require.Len(t, f.sink.sent, 2)
	last := f.sink.sent[1]
	assert.Equal(t, notify.TradeExecuted, last.Category)
	assert.Contains(t, last.Message, "AAPL")
	assert.Contains(t, last.Message, "10 shares")
	assert.Contains(t, last.Message, "$111.00")
	assert.Contains(t, last.Message, string(ReasonTargetReached))
	assert.Contains(t, last.Message, "autopilot")

	require.Len(t, f.journal.trades, 2)
	sell := f.journal.trades[1]
	assert.Equal(t, journal.Sell, sell.Side)
	assert.Equal(t, p.ID, sell.PositionID)
	assert.Equal(t, string(ReasonTargetReached), sell.Reason)
	assert.InDelta(t, 110.0, sell.RealizedPL, 1e-9)
	assert.NotEmpty(t, sell.TradeID)

	assert.Equal(t, []string{string(ReasonTargetReached)}, f.metrics.exits)
	assert.Equal(t, 2, f.metrics.ticks)
}

func TestEngineManualNeverAutoCloses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []float64{0.9}, []float64{0.0})
	ctx := context.Background()

	p, err := f.engine.Buy(ctx, position.Order{
		Ticker:        "TSLA",
		Quantity:      3,
		PurchasePrice: 200,
		StopLossPrice: ptr(150),
		Mode:          position.Manual,
	})
	require.NoError(t, err)
	assert.Zero(t, p.VolatilityFactor)

	// draw 0 drives the price down by the full swing every tick.
	for i := 0; i < 50; i++ {
		rep, err := f.engine.Tick(ctx)
		require.NoError(t, err)
		assert.Empty(t, rep.Exits)
	}

	ps := f.store.List()
	require.Len(t, ps, 1)
	assert.Less(t, ps[0].CurrentPrice, 150.0)
	assert.GreaterOrEqual(t, ps[0].CurrentPrice, pricing.MinPrice)
}

func TestEngineTickAdvancesAllPricesBeforeEvaluating(t *testing.T) {
	t.Parallel()

	// Walk draws come first for every position, then one exit draw each.
	f := newFixture(t, []float64{0.5}, []float64{0.5, 0.5, 0.0, 0.99})
	ctx := context.Background()

	for _, ticker := range []string{"AAA", "BBB"} {
		_, err := f.engine.Buy(ctx, position.Order{
			Ticker:        ticker,
			Quantity:      1,
			PurchasePrice: 100,
			Mode:          position.Autopilot,
		})
		require.NoError(t, err)
	}
	setPrice(t, f.store, "AAA", 105)
	setPrice(t, f.store, "BBB", 105)

	rep, err := f.engine.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Exits, 1)
	assert.Equal(t, "AAA", rep.Exits[0].Position.Ticker)
	assert.Equal(t, ReasonProfitSecured, rep.Exits[0].Reason)

	ps := f.store.List()
	require.Len(t, ps, 1)
	assert.Equal(t, "BBB", ps[0].Ticker)
	assert.InDelta(t, 105.0, ps[0].CurrentPrice, 1e-9)
}

func TestEngineTickPersistsPrices(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, []float64{1.0})
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, position.Order{Ticker: "MSFT", Quantity: 5, PurchasePrice: 100})
	require.NoError(t, err)

	_, err = f.engine.Tick(ctx)
	require.NoError(t, err)

	// A fresh store over the same backend sees the walked price.
	reloaded, err := position.NewStore(ctx, f.backend)
	require.NoError(t, err)
	ps := reloaded.List()
	require.Len(t, ps, 1)
	assert.InDelta(t, 101.5, ps[0].CurrentPrice, 1e-9)
}

func TestEngineTickPersistFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []float64{0.2}, []float64{0.5})
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, position.Order{
		Ticker:        "AAPL",
		Quantity:      10,
		PurchasePrice: 100,
		TargetPrice:   ptr(110),
		Mode:          position.Autopilot,
	})
	require.NoError(t, err)
	setPrice(t, f.store, "AAPL", 120)
	sentBefore := len(f.sink.sent)

	f.backend.fail = true
	_, err = f.engine.Tick(ctx)
	require.Error(t, err)

	assert.Equal(t, 1, f.store.Len(), "failed tick must not drop the position")
	assert.Len(t, f.sink.sent, sentBefore)
	assert.Zero(t, f.engine.Ticks())

	f.backend.fail = false
	rep, err := f.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, rep.Exits, 1)
}

func TestEngineSellPartialThenFull(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, []float64{0.5})
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, position.Order{Ticker: "MSFT", Quantity: 10, PurchasePrice: 100, Mode: position.Autopilot})
	require.NoError(t, err)
	setPrice(t, f.store, "MSFT", 120)

	res, err := f.engine.Sell(ctx, "msft", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sold)
	assert.Equal(t, 7, res.Remaining)
	assert.False(t, res.Full())

	res, err = f.engine.Sell(ctx, "MSFT", 100)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Sold)
	assert.True(t, res.Full())
	assert.Zero(t, f.store.Len())

	require.Len(t, f.journal.trades, 3)
	assert.InDelta(t, 60.0, f.journal.trades[1].RealizedPL, 1e-9)
	assert.InDelta(t, 140.0, f.journal.trades[2].RealizedPL, 1e-9)
	assert.Equal(t, journal.ReasonManualSell, f.journal.trades[2].Reason)

	require.Len(t, f.sink.sent, 3)
	assert.Contains(t, f.sink.sent[1].Message, "7 remaining")

	_, err = f.engine.Sell(ctx, "MSFT", 1)
	assert.ErrorIs(t, err, position.ErrNotFound)
}

func TestEngineBuyRejectsInvalidOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)

	_, err := f.engine.Buy(context.Background(), position.Order{Ticker: "AAPL", Quantity: 0, PurchasePrice: 10})
	assert.ErrorIs(t, err, position.ErrInvalidOrder)
	assert.Empty(t, f.sink.sent)
	assert.Empty(t, f.journal.trades)
}

func TestEngineClosePosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	ctx := context.Background()

	p, err := f.engine.Buy(ctx, position.Order{Ticker: "NVDA", Quantity: 2, PurchasePrice: 50})
	require.NoError(t, err)

	closed, err := f.engine.ClosePosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, closed.ID)
	assert.Zero(t, f.store.Len())

	_, err = f.engine.ClosePosition(ctx, p.ID)
	assert.ErrorIs(t, err, position.ErrNotFound)
}

func TestEngineJournalFailureDoesNotFailTrade(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	f.journal.err = errors.New("journal offline")

	p, err := f.engine.Buy(context.Background(), position.Order{Ticker: "AMD", Quantity: 1, PurchasePrice: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.sink.sent, 1)
}

type holding struct {
	ticker   string
	quantity int
	price    float64
}

func holdings(ps []position.Position) map[string]holding {
	out := make(map[string]holding, len(ps))
	for _, p := range ps {
		out[p.ID] = holding{ticker: p.Ticker, quantity: p.Quantity, price: p.CurrentPrice}
	}
	return out
}

func TestEngineConcurrentTradersAndClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	store, err := position.NewStore(ctx, backend, position.WithRand(pricing.NewSource(1)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := journal.NewCSV(path)
	require.NoError(t, err)

	e := NewEngine(store, WithRand(pricing.NewSource(2)), WithJournal(j))

	const traders, rounds, ticks = 8, 10, 40
	net := make([]int, traders)
	var wg sync.WaitGroup
	for w := 0; w < traders; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ticker := fmt.Sprintf("T%d", w)
			for i := 0; i < rounds; i++ {
				_, err := e.Buy(ctx, position.Order{Ticker: ticker, Quantity: 10, PurchasePrice: 100})
				if !assert.NoError(t, err) {
					return
				}
				net[w] += 10

				res, err := e.Sell(ctx, ticker, 3)
				if !assert.NoError(t, err) {
					return
				}
				net[w] -= res.Sold
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			_, err := e.Tick(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
	require.NoError(t, j.Close())

	assert.Equal(t, uint64(ticks), e.Ticks())

	held := map[string]int{}
	for _, p := range store.List() {
		assert.Positive(t, p.Quantity)
		assert.GreaterOrEqual(t, p.CurrentPrice, pricing.MinPrice)
		held[p.Ticker] += p.Quantity
	}
	for w := 0; w < traders; w++ {
		assert.Equal(t, net[w], held[fmt.Sprintf("T%d", w)], "trader %d", w)
	}

	blob, err := backend.Get(ctx, position.DefaultKey)
	require.NoError(t, err)
	persisted, warnings := position.Decode(blob)
	assert.Empty(t, warnings)
	assert.Equal(t, holdings(store.List()), holdings(persisted))

	reopened, err := position.NewStore(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, holdings(store.List()), holdings(reopened.List()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// header, then one buy and one sell per round per trader
	require.Len(t, rows, 1+traders*rounds*2)
	for _, row := range rows[1:] {
		assert.Len(t, row, len(rows[0]))
	}
}

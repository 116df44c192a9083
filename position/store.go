package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/id"
	"github.com/rustyeddy/papertrade/kv"
	"github.com/rustyeddy/papertrade/pricing"
)

// DefaultKey is the namespace the snapshot blob is stored under.
const DefaultKey = "quantumTradePortfolio"

// Store is the single source of truth for open positions. Every mutating
// call is one read-modify-write step under mu: build the new set from a
// copy, persist the whole snapshot, then commit it in memory. A failed write
// leaves the in-memory set as it was.
type Store struct {
	mu        sync.Mutex
	backend   kv.Store
	key       string
	positions []Position

	rand   pricing.Source
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithRand sets the source used to draw volatility factors for autopilot
// positions. It is only read under the store lock.
func WithRand(src pricing.Source) Option {
	return func(s *Store) { s.rand = src }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore builds a store over backend and loads the existing snapshot.
func NewStore(ctx context.Context, backend kv.Store, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("position: backend is nil")
	}
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		newID:   id.New,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = pricing.NewSource(0)
	}
	s.logger = s.logger.With(slog.String("component", "position.store"))

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory set with the persisted snapshot.
func (s *Store) Reload(ctx context.Context) error {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("position: load snapshot: %w", err)
	}

	positions, warnings := Decode(data)
	for _, w := range warnings {
		s.logger.WarnContext(ctx, "corrupted snapshot record", slog.String("detail", w))
	}

	s.mu.Lock()
	s.positions = positions
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "snapshot loaded", slog.Int("positions", len(positions)))
	return nil
}

// List returns a copy of the open positions in creation order.
func (s *Store) List() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.positions)
}

// Len is the number of open positions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Open validates o, creates the position and persists it.
func (s *Store) Open(ctx context.Context, o Order) (Position, error) {
	if err := o.Validate(); err != nil {
		return Position{}, err
	}

	mode := o.Mode
	if mode == "" {
		mode = Manual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := Position{
		ID:            s.newID(),
		Ticker:        NormalizeTicker(o.Ticker),
		Quantity:      o.Quantity,
		PurchasePrice: o.PurchasePrice,
		CurrentPrice:  o.PurchasePrice,
		Mode:          mode,
		PurchaseDate:  s.now().UTC(),
	}
	if o.TargetPrice != nil {
		v := *o.TargetPrice
		p.TargetPrice = &v
	}
	if o.StopLossPrice != nil {
		v := *o.StopLossPrice
		p.StopLossPrice = &v
	}
	if mode == Autopilot {
		p.VolatilityFactor = s.rand.Float64()
	}

	next := append(cloneAll(s.positions), p)
	if err := s.commitLocked(ctx, next); err != nil {
		return Position{}, err
	}
	return p.Clone(), nil
}

// Close sells up to quantity shares of the first open position for ticker,
// at its current price. The position is removed when nothing remains.
func (s *Store) Close(ctx context.Context, ticker string, quantity int) (CloseResult, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return CloseResult{}, fmt.Errorf("%w: ticker is required", ErrInvalidOrder)
	}
	if quantity <= 0 {
		return CloseResult{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.positions {
		if p.Ticker == ticker {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CloseResult{}, fmt.Errorf("%w: no open position for %s", ErrNotFound, ticker)
	}

	next := cloneAll(s.positions)
	held := next[idx]
	sold := min(quantity, held.Quantity)

	res := CloseResult{
		Position:  held.Clone(),
		Sold:      sold,
		Remaining: held.Quantity - sold,
		Price:     held.CurrentPrice,
	}

	if res.Remaining <= 0 {
		res.Remaining = 0
		next = append(next[:idx], next[idx+1:]...)
	} else {
		next[idx].Quantity = res.Remaining
	}

	if err := s.commitLocked(ctx, next); err != nil {
		return CloseResult{}, err
	}
	return res, nil
}

// CloseByID fully removes the position with the given id.
func (s *Store) CloseByID(ctx context.Context, positionID, reason string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, removed, ok := removeByID(cloneAll(s.positions), positionID)
	if !ok {
		return Position{}, fmt.Errorf("%w: id %s", ErrNotFound, positionID)
	}
	if err := s.commitLocked(ctx, next); err != nil {
		return Position{}, err
	}

	s.logger.InfoContext(ctx, "position closed",
		slog.String("id", removed.ID),
		slog.String("ticker", removed.Ticker),
		slog.String("reason", reason),
	)
	return removed, nil
}

// Mutate hands fn a copy of the open set and persists whatever it returns,
// all under the store lock. If fn or the write fails nothing changes.
func (s *Store) Mutate(ctx context.Context, fn func([]Position) ([]Position, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneAll(s.positions))
	if err != nil {
		return err
	}
	return s.commitLocked(ctx, next)
}

func (s *Store) commitLocked(ctx context.Context, next []Position) error {
	data, err := Encode(next)
	if err != nil {
		return fmt.Errorf("position: encode snapshot: %w", err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("position: persist snapshot: %w", err)
	}
	if next == nil {
		next = []Position{}
	}
	s.positions = next
	return nil
}

func removeByID(ps []Position, positionID string) ([]Position, Position, bool) {
	for i, p := range ps {
		if p.ID == positionID {
			return append(ps[:i], ps[i+1:]...), p, true
		}
	}
	return ps, Position{}, false
}

func cloneAll(ps []Position) []Position {
	out := make([]Position, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

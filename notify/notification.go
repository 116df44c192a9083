// Package notify carries the events the engine produces for user-facing
// display. The engine builds notifications and hands them to a Sink; it
// never reads them back.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Category groups notifications for display.
type Category string

const (
	TradeExecuted Category = "trade-executed"
	Alert         Category = "alert"
	Info          Category = "info"
	SystemUpdate  Category = "system-update"
)

// Notification is one user-facing event.
type Notification struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Seen      bool      `json:"seen"`
}

// New stamps a notification with a fresh id.
func New(category Category, title, message string, at time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Category:  category,
		Title:     title,
		Message:   message,
		Timestamp: at.UTC(),
	}
}

// Sink receives notifications. Emit is fire-and-forget: implementations
// deal with their own failures.
type Sink interface {
	Emit(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Emit(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

// Fanout emits to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, n Notification) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, n)
		}
	}
}

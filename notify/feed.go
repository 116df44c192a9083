package notify

import (
	"context"
	"sync"
)

// DefaultFeedSize bounds a Feed created with a non-positive size.
const DefaultFeedSize = 100

// Feed keeps the most recent notifications in memory for the UI to page
// through. Oldest entries fall off once the feed is full.
type Feed struct {
	mu    sync.RWMutex
	items []Notification // oldest first
	size  int
	subs  map[chan Notification]struct{}
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{
		size: size,
		subs: make(map[chan Notification]struct{}),
	}
}

func (f *Feed) Emit(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, n)
	if over := len(f.items) - f.size; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}

	for ch := range f.subs {
		select {
		case ch <- n:
		default:
			// slow subscriber; it can catch up from List
		}
	}
}

// List returns notifications newest first.
func (f *Feed) List() []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Notification, len(f.items))
	for i, n := range f.items {
		out[len(f.items)-1-i] = n
	}
	return out
}

// Unseen counts notifications not yet marked seen.
func (f *Feed) Unseen() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := 0
	for _, n := range f.items {
		if !n.Seen {
			c++
		}
	}
	return c
}

// MarkSeen flags the given ids as seen; with no ids it flags everything.
// It returns how many entries changed.
func (f *Feed) MarkSeen(ids ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	changed := 0
	for i := range f.items {
		if f.items[i].Seen {
			continue
		}
		if len(ids) == 0 || want[f.items[i].ID] {
			f.items[i].Seen = true
			changed++
		}
	}
	return changed
}

// Subscribe returns a channel that receives every notification emitted
// after the call, and a cancel func that must be called to release it.
func (f *Feed) Subscribe(buffer int) (<-chan Notification, func()) {
	ch := make(chan Notification, buffer)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Package stream fans audit entries out to live subscribers.
package stream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"crewhub.dev/internal/audit"
)

const bufferSize = 16

// Stream is an audit sink that forwards every entry to subscribers.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Int64
}

type subscriber struct {
	ch     chan audit.Entry
	prefix string
}

var _ audit.Sink = (*Stream)(nil)

func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for events starting with prefix (all
// events when empty). The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, prefix string) <-chan audit.Entry {
	ch := make(chan audit.Entry, bufferSize)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, prefix: prefix}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Write publishes e. Slow subscribers miss entries instead of blocking the writer.
func (s *Stream) Write(_ context.Context, e audit.Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.prefix != "" && !strings.HasPrefix(e.Event, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers reports the number of live subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped reports how many entries slow subscribers missed.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

package stream

import (
	"context"
	"testing"
	"time"

	"crewhub.dev/internal/audit"
)

func TestSubscribeFiltersByPrefix(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := s.Subscribe(ctx, "")
	lifecycle := s.Subscribe(ctx, "lifecycle.")

	_ = s.Write(ctx, audit.Entry{Event: "auth.token.issued"})
	_ = s.Write(ctx, audit.Entry{Event: "lifecycle.approve"})

	if e := <-all; e.Event != "auth.token.issued" {
		t.Fatalf("first event %q", e.Event)
	}
	if e := <-all; e.Event != "lifecycle.approve" {
		t.Fatalf("second event %q", e.Event)
	}
	if e := <-lifecycle; e.Event != "lifecycle.approve" {
		t.Fatalf("filtered event %q", e.Event)
	}
	select {
	case e := <-lifecycle:
		t.Fatalf("unexpected event %q", e.Event)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx, "")

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize+5; i++ {
			_ = s.Write(ctx, audit.Entry{Event: "lifecycle.approve"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write blocked on a full subscriber")
	}
	if got := s.Dropped(); got != 5 {
		t.Fatalf("dropped %d, want 5", got)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("subscribers %d", n)
	}
}

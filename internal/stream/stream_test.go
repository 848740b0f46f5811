package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	hub := New[string](4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)
	hub.Publish("hello")

	for _, ch := range []<-chan string{a, b} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Fatalf("unexpected value %q", got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for value")
		}
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	hub := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Subscribers())
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	hub := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx)
	hub.Publish(1)
	hub.Publish(2)

	if got := <-ch; got != 1 {
		t.Fatalf("expected first value, got %d", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("expected dropped value, got %d", got)
	default:
	}
}

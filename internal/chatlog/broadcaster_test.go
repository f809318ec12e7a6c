// ABOUTME: Tests for the record-added notification broadcaster
// ABOUTME: Verifies fan-out, unsubscribe, slow-subscriber drops, and ctx cleanup

package chatlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := context.Background()
	ch1, _ := b.Subscribe(ctx, "conv1")
	ch2, _ := b.Subscribe(ctx, "conv1")
	other, _ := b.Subscribe(ctx, "conv2")

	b.Publish("conv1", Notification{Record: Record{ID: "m1"}})

	assert.Equal(t, "m1", (<-ch1).Record.ID)
	assert.Equal(t, "m1", (<-ch2).Record.ID)

	select {
	case n := <-other:
		t.Fatalf("conv2 subscriber received %v", n)
	default:
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), "conv1")
	b.Unsubscribe("conv1", subID)

	_, open := <-ch
	assert.False(t, open)

	// Publishing afterward must not panic or deliver
	b.Publish("conv1", Notification{Record: Record{ID: "m1"}})

	// Unknown ids are a no-op
	b.Unsubscribe("conv1", "nope")
	b.Unsubscribe("nope", subID)
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "conv1")

	// Fill the buffer and then some; Publish must never block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize+10; i++ {
			b.Publish("conv1", Notification{Record: Record{ID: "m"}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_ContextCancelCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "conv1")

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_CloseClosesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(context.Background(), "conv1")
	ch2, _ := b.Subscribe(context.Background(), "conv2")

	b.Close()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)
}

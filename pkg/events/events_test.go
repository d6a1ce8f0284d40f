package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventTaskFinished, Message: "done"})

	select {
	case ev := <-sub:
		require.Equal(t, EventTaskFinished, ev.Type)
		require.Equal(t, "done", ev.Message)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	require.False(t, ok)
}

func TestBrokerMultipleSubscribersAllReceive(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(&Event{Type: EventWorkerJoined})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			require.Equal(t, EventWorkerJoined, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBrokerPublishPreservesExplicitTimestamp(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ts := time.Now().Add(-time.Hour)
	b.Publish(&Event{Type: EventObjectRemoved, Timestamp: ts})

	ev := <-sub
	require.True(t, ev.Timestamp.Equal(ts))
}

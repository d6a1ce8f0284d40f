/*
Package events provides an in-memory event broker for Rain's pub/sub
notifications.

The events package implements a lightweight event bus for broadcasting
graph-state changes to interested subscribers: the HTTP dashboard's
/watch websocket, and anything else on the process that wants to observe
task/object/session/worker transitions without polling the graph.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - All events broadcast (no topics)         │          │
	│  │  - Buffered publish (blocks when full)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  task.finished, task.failed                 │          │
	│  │  object.finished, object.removed            │          │
	│  │  session.finished, session.failed           │          │
	│  │  worker.joined, worker.left, worker.failed  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

The driver (pkg/driver) is the only publisher. It publishes worker
joins, departures and failures, session failures, objects that become
finished, and tasks that a worker reports finished or failed. Tasks failed
because their worker failed, object removals and session completion are
not published, so object.removed and session.finished are never emitted
by the driver.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s: %s\n", event.Type, event.Message, event.Metadata)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventTaskFailed,
		Message: "task 1/3 failed: exit status 1",
	})

# Limitations

In-memory only: no persistence, no replay, no delivery guarantee. A
subscriber with a full buffer silently misses events rather than
blocking the publisher — acceptable for a dashboard feed, not for
anything that must never miss a transition.
*/
package events

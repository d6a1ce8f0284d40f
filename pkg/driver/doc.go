/*
Package driver implements the Rain server's core reactor: the single
*graph.Graph, the mutation API clients and workers call into, and the
placement engine that reconciles scheduled intent against what workers
actually report back.

# Architecture

	┌────────────────────────── DRIVER ───────────────────────────┐
	│                                                               │
	│  ┌─────────────────────────────────────────────────────┐    │
	│  │              Mutation API (mutations.go)             │    │
	│  │  AddWorker / AddClient / AddSession / AddObject /    │    │
	│  │  AddTask / RemoveX / FailSession / FailWorker        │    │
	│  └───────────────────────┬───────────────────────────────┘    │
	│                          │ marks UpdateSet                    │
	│  ┌───────────────────────▼───────────────────────────────┐    │
	│  │                    graph.Graph                        │    │
	│  │   Sessions, Clients, Workers, Tasks, DataObjects       │    │
	│  └───────────────────────┬───────────────────────────────┘    │
	│                          │ consumed by Turn                   │
	│  ┌───────────────────────▼───────────────────────────────┐    │
	│  │                 pkg/scheduler.Scheduler                │    │
	│  │        Schedule(graph, updates) → Changed              │    │
	│  └───────────────────────┬───────────────────────────────┘    │
	│                          │ reconciled by                      │
	│  ┌───────────────────────▼───────────────────────────────┐    │
	│  │            Placement engine (placement.go)             │    │
	│  │  assign/unassign object & task, distribute_tasks       │    │
	│  └───────────────────────┬───────────────────────────────┘    │
	│                          │ AddNodes/StopTasks/UnassignObjects  │
	└──────────────────────────┼───────────────────────────────────┘
	                           ▼
	                     graph.WorkerControl

Inbound worker reports re-enter through UpdatesFromWorker
(inbound.go), which applies task and object state transitions and
feeds the same placement reconcilers.

# The event loop

Turn is called once per reactor cycle by the RPC server's accept/poll
loop:

	for driver.Turn(ctx) {
	}

If the accumulated UpdateSet is non-empty, the scheduler runs once and
its Changed result is reconciled; distributeTasks always runs after,
so newly assignable work gets dispatched even on cycles that didn't
touch the scheduler. Turn returns false once Shutdown has been called.

Every exported method on Driver runs on the same goroutine as Turn;
nothing here is safe to call concurrently. The RPC layer is
responsible for serializing calls onto that goroutine (a single
request queue, not a mutex) — see pkg/rpcapi.

# Consistency

Every mutation ends by calling checkConsistency, which walks the graph
under pkg/graph's invariant checks. Outside RAIN_DEBUG_MODE this is a
no-op; failures are treated as Internal errors and are fatal, since a
broken invariant means the graph can no longer be trusted to schedule
correctly. AddTask and SubmitBatch always run the full walk regardless
of debug mode, because a client submitting a bad graph must get a
Validation error back rather than corrupt the server — the walk runs
after graph.NewTask links the new tasks' outputs, and the submission is
rolled back out again if it fails, so it still fails atomically.

# See Also

  - pkg/graph for the entity model and invariants
  - pkg/scheduler for the scheduling policy contract
  - pkg/rpcapi for the transport that drives Turn and calls into this
    package's mutation API
*/
package driver

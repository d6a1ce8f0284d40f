/*
Package log provides structured logging for Rain using zerolog.

The log package wraps zerolog to give every component JSON-structured
logging with a configurable level and a small set of context-logger
helpers. All logs carry timestamps and support filtering by severity for
production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout or custom writer          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("driver")                  │          │
	│  │  - WithWorkerID("10.0.0.4:9000")            │          │
	│  │  - WithSessionID("sess-7")                  │          │
	│  │  - WithTaskID("t-42")                       │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Usage

Initializing the logger:

	import "github.com/cuemby/rain/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("rain-server listening")
	log.Debug("probing worker resources")
	log.Warn("worker control RPC slow to respond")
	log.Error("updates_from_worker failed")
	log.Fatal("listen: address already in use") // exits process

Structured logging:

	log.Logger.Info().
		Str("worker_id", workerID.String()).
		Int("assigned_tasks", len(w.AssignedTasks)).
		Msg("worker admitted")

Component loggers:

	driverLog := log.WithComponent("driver")
	driverLog.Info().Msg("turn started")

	taskLog := log.WithTaskID(taskID.String())
	taskLog.Info().Msg("task finished")

# Integration Points

This package is used by every other package: pkg/driver logs graph
mutations and scheduling decisions, pkg/rpcapi logs connection lifecycle
and RPC failures, cmd/rain-server and cmd/rain-worker log startup and
shutdown.

# Best Practices

Do:
  - Use Info level in production
  - Use structured fields (.Str, .Int) for queryable data
  - Create a component logger once per package, reuse it
  - Log errors with .Err() rather than string-formatting them

Don't:
  - Log on every Turn() tick — only on state transitions
  - Concatenate identifiers into the message string instead of fields
*/
package log

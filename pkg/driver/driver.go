// Package driver is the event loop and mutation API at the heart of a Rain
// server (spec.md §4.4/§5): it owns the single *graph.Graph, runs the
// scheduler over an accumulated UpdateSet, and reconciles scheduled intent
// against realized worker assignments. Every exported method here runs on
// the same goroutine; nothing in this package is safe to call
// concurrently — see spec.md §5's single-threaded cooperative model.
package driver

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/rain/pkg/events"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/log"
	"github.com/cuemby/rain/pkg/metrics"
	"github.com/cuemby/rain/pkg/scheduler"
)

// Driver owns the graph and drives it through the mutate/schedule/
// distribute cycle described in spec.md §1.
type Driver struct {
	Graph     *graph.Graph
	scheduler scheduler.Scheduler
	updates   *scheduler.UpdateSet
	events    *events.Broker
	logger    zerolog.Logger

	shutdown bool
}

// New constructs a Driver over a fresh Graph with sched as its scheduling
// policy.
func New(sched scheduler.Scheduler, broker *events.Broker) *Driver {
	return &Driver{
		Graph:     graph.New(),
		scheduler: sched,
		updates:   scheduler.NewUpdateSet(),
		events:    broker,
		logger:    log.WithComponent("driver"),
	}
}

// Shutdown marks the driver to stop; Turn returns false on its next call.
func (d *Driver) Shutdown() {
	d.shutdown = true
}

// checkConsistency runs the debug-gated invariant walk and treats a
// failure as fatal, per spec.md §7: an Internal error means the graph
// itself is corrupt and the core cannot safely continue.
func (d *Driver) checkConsistency() {
	if err := graph.CheckIfDebug(d.Graph); err != nil {
		d.logger.Fatal().Err(err).Msg("consistency check failed after mutation")
	}
}

func (d *Driver) publish(t events.EventType, msg string, meta map[string]string) {
	if d.events == nil {
		return
	}
	d.events.Publish(&events.Event{Type: t, Message: msg, Metadata: meta})
}

// Turn runs one reactor cycle (spec.md §4.5): if the accumulated updates
// are non-empty, run the scheduler and reconcile its Changed result, then
// always distribute newly ready work. Returns false once Shutdown has been
// called, signalling the caller's accept/poll loop to stop.
func (d *Driver) Turn(ctx context.Context) bool {
	if !d.updates.IsEmpty() {
		d.runScheduler(ctx)
	}
	d.distributeTasks(ctx)
	return !d.shutdown
}

// runScheduler implements spec.md §4.5's run_scheduler: invoke the
// scheduler over the accumulated updates, reset them (keeping every Ready
// task the scheduler could not place, so the next run revisits it), then
// reconcile every entry in the returned Changed set.
func (d *Driver) runScheduler(ctx context.Context) {
	runID := uuid.NewString()
	runLog := d.logger.With().Str("scheduling_run", runID).Logger()

	timer := metrics.NewTimer()
	changed := d.scheduler.Schedule(d.Graph, d.updates)
	timer.ObserveDuration(metrics.SchedulingLatency)
	var unplaced []*graph.Task
	for id := range d.updates.Tasks {
		if t, ok := d.Graph.GetTask(id); ok && t.State == graph.TaskReady && t.Scheduled == nil {
			unplaced = append(unplaced, t)
		}
	}
	d.updates.Reset()
	for _, t := range unplaced {
		d.updates.MarkTaskChanged(t.ID)
	}

	runLog.Debug().
		Int("objects_changed", len(changed.Objects)).
		Int("tasks_changed", len(changed.Tasks)).
		Dur("duration", timer.Duration()).
		Msg("scheduler run complete")

	for workerID, objs := range changed.Objects {
		id := workerID
		for _, o := range objs {
			d.updateObjectAssignments(ctx, o, &id)
		}
	}
	for _, t := range changed.Tasks {
		d.updateTaskAssignment(ctx, t)
		metrics.TasksScheduled.Inc()
	}
}

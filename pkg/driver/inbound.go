package driver

import (
	"context"

	"github.com/cuemby/rain/pkg/events"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rainerr"
)

// TaskUpdate is one task state transition reported by a worker.
type TaskUpdate struct {
	Task     ids.TaskID
	NewState graph.TaskState
	Error    string
	Metadata map[string]string
}

// ObjectUpdate is one object placement/finish report from a worker.
type ObjectUpdate struct {
	Object ids.DataObjectID
	Size   int64
}

// UpdatesFromWorker is the single entry point for inbound worker state
// (spec.md §4.4's updates_from_worker). Updates from a single worker must
// be passed in the order they were received; this method processes them
// in slice order and does not reorder across calls.
func (d *Driver) UpdatesFromWorker(ctx context.Context, workerID ids.WorkerID, objUpdates []ObjectUpdate, taskUpdates []TaskUpdate) error {
	w, ok := d.Graph.GetWorker(workerID)
	if !ok {
		return rainerr.Protocolf("updates from unknown worker %s", workerID)
	}

	for _, u := range objUpdates {
		if err := d.applyObjectUpdate(ctx, w, u); err != nil {
			return err
		}
	}
	for _, u := range taskUpdates {
		if err := d.applyTaskUpdate(ctx, w, u); err != nil {
			return err
		}
	}
	d.checkConsistency()
	return nil
}

func (d *Driver) applyObjectUpdate(ctx context.Context, w *graph.Worker, u ObjectUpdate) error {
	o, ok := d.Graph.GetObject(u.Object)
	if !ok {
		return rainerr.Protocolf("update for unknown object %s", u.Object)
	}

	switch o.State {
	case graph.DataObjectUnfinished:
		size := u.Size
		o.Size = &size
		o.State = graph.DataObjectFinished
		o.Located[w.ID] = w
		w.LocatedObjects[o.ID] = o
		o.triggerFinishHooks(&graph.FinishEvent{})
		d.publish(events.EventObjectFinished, "object finished", map[string]string{"object": o.ID.String()})

		for _, c := range o.Consumers {
			delete(c.WaitingFor, o.ID)
			d.updateTaskAssignment(ctx, c)
		}
		d.updates.MarkObjectPlacement(o.ID, w.ID)
		d.updateObjectAssignments(ctx, o, &w.ID)

	case graph.DataObjectFinished:
		o.Located[w.ID] = w
		w.LocatedObjects[o.ID] = o
		d.updates.MarkObjectPlacement(o.ID, w.ID)
		d.updateObjectAssignments(ctx, o, &w.ID)

	default:
		return rainerr.Protocolf("object %s: illegal update while %s", o.ID, o.State)
	}
	return nil
}

func (d *Driver) applyTaskUpdate(ctx context.Context, w *graph.Worker, u TaskUpdate) error {
	t, ok := d.Graph.GetTask(u.Task)
	if !ok {
		return rainerr.Protocolf("update for unknown task %s", u.Task)
	}

	switch {
	case t.State == graph.TaskAssigned && u.NewState == graph.TaskRunning:
		t.State = graph.TaskRunning
		return nil

	case (t.State == graph.TaskAssigned || t.State == graph.TaskRunning) && u.NewState == graph.TaskFinished:
		t.State = graph.TaskFinished
		delete(w.AssignedTasks, t.ID)
		t.Assigned = nil
		t.triggerFinishHooks(&graph.FinishEvent{Additional: u.Metadata})
		d.publish(events.EventTaskFinished, "task finished", map[string]string{"task": t.ID.String()})
		d.updates.MarkTaskChanged(t.ID)
		d.updateTaskAssignment(ctx, t)
		return nil

	case u.NewState == graph.TaskFailed:
		delete(w.AssignedTasks, t.ID)
		t.Assigned = nil
		t.State = graph.TaskFailed
		t.triggerFinishHooks(&graph.FinishEvent{Message: u.Error, Additional: u.Metadata})
		d.publish(events.EventTaskFailed, u.Error, map[string]string{"task": t.ID.String()})
		d.updates.MarkTaskChanged(t.ID)
		return d.FailSession(t.Session.ID, u.Error)

	default:
		return rainerr.Protocolf("task %s: illegal transition %s -> %s", t.ID, t.State, u.NewState)
	}
}

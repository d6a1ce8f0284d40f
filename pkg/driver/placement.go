package driver

import (
	"context"

	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/metrics"
	"github.com/cuemby/rain/pkg/rainerr"
	"github.com/cuemby/rain/pkg/scheduler"
)

// maxLocatedReplicas is the located-copy count above which
// update_object_assignments drops a reporting worker's assignment of a
// Finished object (spec.md §4.5). The located-set pruning further down in
// that function compares against the size of the object's scheduled set,
// not against this constant.
const maxLocatedReplicas = 2

// assignObject instructs worker to hold a replica of o (spec.md §4.5's
// assign_object). pre: o.State == Finished, w not already in o.Assigned.
func (d *Driver) assignObject(ctx context.Context, o *graph.DataObject, w *graph.Worker) {
	if _, already := o.Assigned[w.ID]; already {
		return
	}
	entry := graph.NewObjectEntry{Object: o, Placement: d.sourceFor(o), Assigned: true}
	if err := w.Control.AddNodes(ctx, []graph.NewObjectEntry{entry}, nil); err != nil {
		d.onWorkerFault(w, rainerr.Wrap(rainerr.KindWorkerFault, err, "AddNodes"))
		return
	}
	metrics.RPCSentTotal.WithLabelValues("AddNodes").Inc()
	o.Assigned[w.ID] = w
	w.AssignedObjects[o.ID] = o
}

// sourceFor picks a worker to source o's bytes from: any worker that
// already has it located, or the server sentinel when o carries inline
// data (spec.md §3's server-sourced objects).
func (d *Driver) sourceFor(o *graph.DataObject) ids.WorkerID {
	for id := range o.Located {
		return id
	}
	return ids.WorkerID{}
}

// unassignObject reverses assignObject (spec.md §4.5's unassign_object).
// pre: w in o.Assigned.
func (d *Driver) unassignObject(ctx context.Context, o *graph.DataObject, w *graph.Worker) {
	if _, ok := o.Assigned[w.ID]; !ok {
		return
	}
	if err := w.Control.UnassignObjects(ctx, []ids.DataObjectID{o.ID}); err != nil {
		d.onWorkerFault(w, rainerr.Wrap(rainerr.KindWorkerFault, err, "UnassignObjects"))
		return
	}
	metrics.RPCSentTotal.WithLabelValues("UnassignObjects").Inc()
	delete(o.Assigned, w.ID)
	delete(w.AssignedObjects, o.ID)
}

// assignTask realizes a task's scheduled intent on w (spec.md §4.5's
// assign_task). pre: t.Scheduled == w, t.Assigned == nil, t.State == Ready.
// Gathers every input not already assigned on w plus every output
// (outputs are always assigned to w immediately) into one add_nodes call
// alongside the task descriptor.
func (d *Driver) assignTask(ctx context.Context, t *graph.Task, w *graph.Worker) {
	var objEntries []graph.NewObjectEntry
	for _, in := range t.Inputs {
		o := in.Object
		if _, already := o.Assigned[w.ID]; already {
			continue
		}
		objEntries = append(objEntries, graph.NewObjectEntry{Object: o, Placement: d.sourceFor(o), Assigned: false})
	}
	for _, o := range t.Outputs {
		objEntries = append(objEntries, graph.NewObjectEntry{Object: o, Placement: w.ID, Assigned: true})
	}

	if err := w.Control.AddNodes(ctx, objEntries, []*graph.Task{t}); err != nil {
		d.onWorkerFault(w, rainerr.Wrap(rainerr.KindWorkerFault, err, "AddNodes"))
		return
	}
	metrics.RPCSentTotal.WithLabelValues("AddNodes").Inc()

	for _, in := range t.Inputs {
		o := in.Object
		if _, already := o.Assigned[w.ID]; !already {
			o.Assigned[w.ID] = w
			w.AssignedObjects[o.ID] = o
		}
	}
	for _, o := range t.Outputs {
		o.Assigned[w.ID] = w
		w.AssignedObjects[o.ID] = o
	}

	t.State = graph.TaskAssigned
	w.ScheduledReadyTasks.Remove(t.ID)
	t.Assigned = w
	w.AssignedTasks[t.ID] = t
	metrics.WorkerAssignedTasks.WithLabelValues(w.ID.String()).Set(float64(len(w.AssignedTasks)))
}

// unassignTask reverses assignTask (spec.md §4.5's unassign_task). pre:
// t.Assigned == w and t.Scheduled != w. Re-runs updateTaskAssignment
// afterward to possibly re-enqueue at the new scheduled worker.
func (d *Driver) unassignTask(ctx context.Context, t *graph.Task, w *graph.Worker) {
	if t.Assigned != w {
		return
	}
	if err := w.Control.StopTasks(ctx, []ids.TaskID{t.ID}); err != nil {
		d.onWorkerFault(w, rainerr.Wrap(rainerr.KindWorkerFault, err, "StopTasks"))
		return
	}
	metrics.RPCSentTotal.WithLabelValues("StopTasks").Inc()

	delete(w.AssignedTasks, t.ID)
	metrics.WorkerAssignedTasks.WithLabelValues(w.ID.String()).Set(float64(len(w.AssignedTasks)))
	t.Assigned = nil
	t.State = graph.TaskReady
	d.updateTaskAssignment(ctx, t)
}

// updateTaskAssignment is the task transition function (spec.md §4.5),
// evaluated in the order given there. It is the single place a task's
// scheduling/assignment state is reconciled after any change to it.
func (d *Driver) updateTaskAssignment(ctx context.Context, t *graph.Task) {
	switch t.State {
	case graph.TaskNotAssigned:
		if len(t.WaitingFor) == 0 {
			t.State = graph.TaskReady
			d.updates.MarkTaskChanged(t.ID)
		}
	case graph.TaskReady:
		if t.Scheduled != nil {
			t.Scheduled.ScheduledReadyTasks.Insert(t.ID)
		}
	case graph.TaskAssigned, graph.TaskRunning:
		if t.Assigned != t.Scheduled {
			old := t.Assigned
			d.unassignTask(ctx, t, old)
		}
	case graph.TaskFinished:
		t.Scheduled = nil
	}
}

// updateObjectAssignments reconciles o's scheduled set against its
// realized assignment and location (spec.md §4.5), called on any object
// state or schedule change. Only meaningful for Finished objects.
func (d *Driver) updateObjectAssignments(ctx context.Context, o *graph.DataObject, worker *ids.WorkerID) {
	if o.State != graph.DataObjectFinished {
		return
	}

	if worker != nil {
		w, ok := d.Graph.GetWorker(*worker)
		if ok {
			_, scheduled := o.Scheduled[w.ID]
			_, assigned := o.Assigned[w.ID]
			switch {
			case scheduled && !assigned:
				d.assignObject(ctx, o, w)
			case assigned && (!o.IsNeeded() || len(o.Located) > maxLocatedReplicas || !locatedAt(o, w.ID)):
				d.unassignObject(ctx, o, w)
			}
		}
	}

	if len(o.Scheduled) == 0 && !o.IsNeeded() {
		for _, w := range graph.WorkersOf(o.Assigned) {
			d.unassignObject(ctx, o, w)
		}
		o.State = graph.DataObjectRemoved
		return
	}

	if len(o.Scheduled) > 0 && len(o.Located) > len(o.Scheduled) {
		for id, w := range o.Located {
			if len(o.Located) <= 1 {
				break
			}
			if _, keep := o.Scheduled[id]; keep {
				continue
			}
			delete(o.Located, id)
			delete(w.LocatedObjects, o.ID)
		}
	}
}

func locatedAt(o *graph.DataObject, id ids.WorkerID) bool {
	_, ok := o.Located[id]
	return ok
}

// distributeTasks implements spec.md §4.5's distribute_tasks: for each
// worker, while it is under the overbook ceiling and has a ready
// scheduled task waiting, realize the oldest one.
func (d *Driver) distributeTasks(ctx context.Context) {
	for _, w := range d.Graph.ListWorkers() {
		for len(w.AssignedTasks) < scheduler.OverbookLimit {
			taskID, ok := w.ScheduledReadyTasks.Oldest()
			if !ok {
				break
			}
			t, ok := d.Graph.GetTask(taskID)
			if !ok {
				w.ScheduledReadyTasks.Remove(taskID)
				continue
			}
			d.assignTask(ctx, t, w)
		}
	}
}

// onWorkerFault is invoked when an outbound RPC to a worker fails to
// send. spec.md §5 documents the original behavior as a fire-and-forget
// panic; this implementation treats it as a WorkerFault instead (see
// DESIGN.md) — the worker is forcibly removed so its state stops being
// relied upon, and the error is logged rather than crashing the process.
func (d *Driver) onWorkerFault(w *graph.Worker, err error) {
	d.logger.Error().Err(err).Str("worker", w.ID.String()).Msg("worker control RPC failed")
	d.failWorkerLocked(w.ID, err.Error())
}

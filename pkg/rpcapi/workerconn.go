package rpcapi

import (
	"context"

	"github.com/cuemby/rain/pkg/driver"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rainerr"
)

// handleUpdatesFromWorker is WorkerUpstream's single inbound call (spec.md
// §4.6): a worker reports object placements and task transitions as one
// batch, applied in order.
func (b *bootstrapConn) handleUpdatesFromWorker(req UpdatesFromWorkerReq) (UpdatesFromWorkerResp, error) {
	if b.worker == nil {
		return UpdatesFromWorkerResp{}, rainerr.Protocolf("connection is not registered as a worker")
	}

	objUpdates := make([]driver.ObjectUpdate, 0, len(req.ObjectUpdates))
	for _, u := range req.ObjectUpdates {
		objUpdates = append(objUpdates, driver.ObjectUpdate{Object: u.ObjectID, Size: u.Size})
	}
	taskUpdates := make([]driver.TaskUpdate, 0, len(req.TaskUpdates))
	for _, u := range req.TaskUpdates {
		state, err := taskStateFromWire(u.NewState)
		if err != nil {
			return UpdatesFromWorkerResp{}, err
		}
		taskUpdates = append(taskUpdates, driver.TaskUpdate{Task: u.TaskID, NewState: state, Error: u.Error, Metadata: u.Metadata})
	}

	workerID := b.worker.ID
	var err error
	b.server.do(func() {
		err = b.server.driver.UpdatesFromWorker(context.Background(), workerID, objUpdates, taskUpdates)
	})
	return UpdatesFromWorkerResp{}, err
}

func taskStateFromWire(s string) (graph.TaskState, error) {
	switch s {
	case "Running":
		return graph.TaskRunning, nil
	case "Finished":
		return graph.TaskFinished, nil
	case "Failed":
		return graph.TaskFailed, nil
	default:
		return 0, rainerr.Protocolf("illegal reported task state %q", s)
	}
}

// workerControl implements graph.WorkerControl over an rpcConn, turning
// the driver's outbound placement decisions (add_nodes, unassign_objects,
// stop_tasks) and its admission-time resource probe into RPC calls on the
// worker's own connection (spec.md §4.6's WorkerControl capability).
type workerControl struct {
	conn *rpcConn
}

func (w *workerControl) AddNodes(ctx context.Context, objects []graph.NewObjectEntry, tasks []*graph.Task) error {
	req := AddNodesReq{
		Objects: make([]NewObjectWire, 0, len(objects)),
		Tasks:   make([]NewTaskWire, 0, len(tasks)),
	}
	for _, e := range objects {
		req.Objects = append(req.Objects, toNewObjectWire(e))
	}
	for _, t := range tasks {
		req.Tasks = append(req.Tasks, toNewTaskWire(t))
	}
	_, err := w.conn.call(ctx, req)
	return err
}

func (w *workerControl) UnassignObjects(ctx context.Context, objects []ids.DataObjectID) error {
	_, err := w.conn.call(ctx, UnassignObjectsReq{Objects: objects})
	return err
}

func (w *workerControl) StopTasks(ctx context.Context, tasks []ids.TaskID) error {
	_, err := w.conn.call(ctx, StopTasksReq{Tasks: tasks})
	return err
}

func (w *workerControl) ProbeResources(ctx context.Context) (ids.Resources, error) {
	resp, err := w.conn.call(ctx, ProbeResourcesReq{})
	if err != nil {
		return ids.Resources{}, err
	}
	return resp.(ProbeResourcesResp).Resources, nil
}

func toNewObjectWire(e graph.NewObjectEntry) NewObjectWire {
	return NewObjectWire{
		ID:         e.Object.ID,
		ObjectType: e.Object.Type,
		Label:      e.Object.Label,
		Size:       e.Object.Size,
		Data:       e.Object.Data,
		Placement:  e.Placement,
		Assigned:   e.Assigned,
		Additional: e.Object.Additional,
	}
}

func toNewTaskWire(t *graph.Task) NewTaskWire {
	inputs := make([]TaskInputWire, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		inputs = append(inputs, TaskInputWire{ObjectID: in.Object.ID, Label: in.Label, Path: in.Path})
	}
	outputs := make([]ids.DataObjectID, 0, len(t.Outputs))
	for _, o := range t.Outputs {
		outputs = append(outputs, o.ID)
	}
	return NewTaskWire{
		ID:         t.ID,
		Inputs:     inputs,
		Outputs:    outputs,
		TaskType:   t.TaskType,
		TaskConfig: t.TaskConfig,
		Additional: t.Additional,
		Resources:  t.Resources,
	}
}

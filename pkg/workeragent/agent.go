// Package workeragent is the worker-side half of spec.md §4.6's RPC
// Surface: registration, the single WorkerUpstream push channel, and the
// inbound add_nodes/unassign_objects/stop_tasks/worker_resources calls the
// server issues once a worker is admitted. Task execution itself —
// subworker process management, worker-local filesystem layout — is out
// of scope (spec.md §1's Non-goals); Executor is the seam a real worker
// process would plug its execution strategy into.
package workeragent

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/log"
	"github.com/cuemby/rain/pkg/rpcapi"
)

// TaskSpec is everything an Executor needs to run one assigned task.
type TaskSpec struct {
	ID         ids.TaskID
	Inputs     []rpcapi.TaskInputWire
	Outputs    []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
}

// TaskResult is what an Executor reports back once a task completes.
// OutputSizes must contain exactly one entry per TaskSpec.Outputs; Err
// being non-nil reports the task Failed instead.
type TaskResult struct {
	OutputSizes map[ids.DataObjectID]int64
	Err         error
}

// Executor runs one task to completion. It is called on its own goroutine
// per task, so it may block for as long as the task takes.
type Executor interface {
	Execute(ctx context.Context, spec TaskSpec) TaskResult
}

// Config configures an Agent.
type Config struct {
	ServerAddr       string
	AnnouncedAddress string
	Resources        ids.Resources
	Executor         Executor
}

// Agent is a running worker-side connection: registered with the server,
// executing assigned tasks, and pushing object/task updates back.
type Agent struct {
	cfg      Config
	conn     *rpcapi.Conn
	workerID ids.WorkerID
	logger   zerolog.Logger

	mu      sync.Mutex
	objects map[ids.DataObjectID]int64 // locally-held object sizes, by id

	pushMu sync.Mutex
}

// Dial connects to the server, registers as a worker (spec.md §4.6's
// register_as_worker), and starts answering control RPCs. The inbound
// handler is installed before RegisterAsWorkerReq is sent so a control
// call the server issues the instant it admits this worker is never lost.
func Dial(ctx context.Context, cfg Config) (*Agent, error) {
	a := &Agent{
		cfg:     cfg,
		logger:  log.WithComponent("workeragent"),
		objects: make(map[ids.DataObjectID]int64),
	}

	conn, err := rpcapi.Dial(cfg.ServerAddr, a.handleInbound)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ServerAddr, err)
	}
	a.conn = conn

	resp, err := conn.Call(ctx, rpcapi.RegisterAsWorkerReq{
		Version:          rpcapi.WorkerProtocolVersion,
		AnnouncedAddress: cfg.AnnouncedAddress,
		Resources:        cfg.Resources,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register as worker: %w", err)
	}
	a.workerID = resp.(rpcapi.RegisterAsWorkerResp).WorkerID
	return a, nil
}

// WorkerID reports the id the server assigned this worker at registration.
func (a *Agent) WorkerID() ids.WorkerID {
	return a.workerID
}

// Close disconnects from the server.
func (a *Agent) Close() error {
	return a.conn.Close()
}

// handleInbound answers the outbound worker control calls of spec.md
// §4.6: add_nodes, unassign_objects, stop_tasks, worker_resources.
func (a *Agent) handleInbound(body any) (any, error) {
	switch req := body.(type) {
	case rpcapi.AddNodesReq:
		return a.handleAddNodes(req)
	case rpcapi.UnassignObjectsReq:
		return a.handleUnassignObjects(req)
	case rpcapi.StopTasksReq:
		return a.handleStopTasks(req)
	case rpcapi.ProbeResourcesReq:
		return rpcapi.ProbeResourcesResp{Resources: a.cfg.Resources}, nil
	default:
		return nil, fmt.Errorf("unrecognized inbound request %T", body)
	}
}

// handleAddNodes records the sizes of newly known objects that carry
// inline data and launches an Executor for every task in req. Whether a
// task's inputs are held locally is not checked before it is launched.
func (a *Agent) handleAddNodes(req rpcapi.AddNodesReq) (rpcapi.AddNodesResp, error) {
	a.mu.Lock()
	for _, obj := range req.Objects {
		if obj.Data != nil {
			a.objects[obj.ID] = int64(len(obj.Data))
		}
	}
	a.mu.Unlock()

	for _, t := range req.Tasks {
		go a.runTask(t)
	}
	return rpcapi.AddNodesResp{}, nil
}

func (a *Agent) runTask(t rpcapi.NewTaskWire) {
	if a.cfg.Executor == nil {
		a.pushTaskUpdate(t.ID, "Failed", "no executor configured", nil)
		return
	}

	a.pushTaskUpdate(t.ID, "Running", "", nil)

	result := a.cfg.Executor.Execute(context.Background(), TaskSpec{
		ID:         t.ID,
		Inputs:     t.Inputs,
		Outputs:    t.Outputs,
		TaskType:   t.TaskType,
		TaskConfig: t.TaskConfig,
		Additional: t.Additional,
	})

	if result.Err != nil {
		a.pushTaskUpdate(t.ID, "Failed", result.Err.Error(), nil)
		return
	}

	a.mu.Lock()
	objUpdates := make([]rpcapi.ObjectUpdateWire, 0, len(t.Outputs))
	for _, oid := range t.Outputs {
		size := result.OutputSizes[oid]
		a.objects[oid] = size
		objUpdates = append(objUpdates, rpcapi.ObjectUpdateWire{ObjectID: oid, Size: size})
	}
	a.mu.Unlock()

	a.pushUpdates(objUpdates, []rpcapi.TaskUpdateWire{{TaskID: t.ID, NewState: "Finished"}})
}

func (a *Agent) handleUnassignObjects(req rpcapi.UnassignObjectsReq) (rpcapi.UnassignObjectsResp, error) {
	a.mu.Lock()
	for _, id := range req.Objects {
		delete(a.objects, id)
	}
	a.mu.Unlock()
	return rpcapi.UnassignObjectsResp{}, nil
}

func (a *Agent) handleStopTasks(req rpcapi.StopTasksReq) (rpcapi.StopTasksResp, error) {
	go func() {
		for _, id := range req.Tasks {
			a.pushTaskUpdate(id, "Failed", "stopped", nil)
		}
	}()
	return rpcapi.StopTasksResp{}, nil
}

func (a *Agent) pushTaskUpdate(id ids.TaskID, state, errMsg string, meta map[string]string) {
	a.pushUpdates(nil, []rpcapi.TaskUpdateWire{{TaskID: id, NewState: state, Error: errMsg, Metadata: meta}})
}

// pushUpdates sends one updates_from_worker call (spec.md §4.6's
// WorkerUpstream), serialized per connection so concurrently-finishing
// tasks don't interleave their gob frames.
func (a *Agent) pushUpdates(objUpdates []rpcapi.ObjectUpdateWire, taskUpdates []rpcapi.TaskUpdateWire) {
	a.pushMu.Lock()
	defer a.pushMu.Unlock()
	if _, err := a.conn.Call(context.Background(), rpcapi.UpdatesFromWorkerReq{
		ObjectUpdates: objUpdates,
		TaskUpdates:   taskUpdates,
	}); err != nil {
		a.logger.Error().Err(err).Msg("updates_from_worker failed")
	}
}

package driver

import (
	"context"
	"net"

	"github.com/cuemby/rain/pkg/events"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/metrics"
	"github.com/cuemby/rain/pkg/rainerr"
)

// AddWorker registers a new worker (spec.md §4.4's add_worker). Per
// original_source's worker_resources() probe, the worker's control
// capability is probed for its resources before admission; a worker that
// cannot be probed is never added to the graph.
func (d *Driver) AddWorker(ctx context.Context, id ids.WorkerID, control graph.WorkerControl) (*graph.Worker, error) {
	if _, exists := d.Graph.GetWorker(id); exists {
		return nil, rainerr.Validationf("worker %s already registered", id)
	}
	resources, err := control.ProbeResources(ctx)
	if err != nil {
		return nil, rainerr.Wrap(rainerr.KindWorkerFault, err, "probe resources")
	}

	w := graph.NewWorker(id, control, resources)
	d.Graph.Workers[id] = w
	metrics.WorkersTotal.Set(float64(len(d.Graph.Workers)))
	d.publish(events.EventWorkerJoined, "worker joined", map[string]string{"worker": id.String()})
	d.checkConsistency()
	return w, nil
}

// RemoveWorker removes a worker gracefully: its assigned and scheduled
// tasks and objects are unassigned so the scheduler can re-place them
// elsewhere (spec.md §4.4's remove_worker).
func (d *Driver) RemoveWorker(ctx context.Context, id ids.WorkerID) error {
	w, ok := d.Graph.GetWorker(id)
	if !ok {
		return rainerr.Validationf("unknown worker %s", id)
	}
	d.detachWorker(ctx, w)
	delete(d.Graph.Workers, id)
	metrics.WorkersTotal.Set(float64(len(d.Graph.Workers)))
	d.publish(events.EventWorkerLeft, "worker left", map[string]string{"worker": id.String()})
	d.checkConsistency()
	return nil
}

// FailWorker removes a worker and marks every task that was Assigned or
// Running there as Failed, propagating reason to its session (spec.md
// §4.4's fail_worker). original_source's fail_worker is documented as
// unimplemented (a panic); this is the intended cleanup behavior recorded
// as an Open Question decision in DESIGN.md.
func (d *Driver) FailWorker(ctx context.Context, id ids.WorkerID, reason string) error {
	if _, ok := d.Graph.GetWorker(id); !ok {
		return rainerr.Validationf("unknown worker %s", id)
	}
	d.failWorkerLocked(id, reason)
	return nil
}

// failWorkerLocked is the shared implementation behind FailWorker and
// onWorkerFault (an outbound RPC send failure escalates to the same
// cleanup, see placement.go).
func (d *Driver) failWorkerLocked(id ids.WorkerID, reason string) {
	w, ok := d.Graph.GetWorker(id)
	if !ok {
		return
	}
	sessions := make(map[ids.SessionID]*graph.Session)
	for _, t := range w.AssignedTasks {
		d.failTask(t, reason)
		sessions[t.Session.ID] = t.Session
	}
	d.detachWorker(context.Background(), w)
	delete(d.Graph.Workers, id)
	metrics.WorkersTotal.Set(float64(len(d.Graph.Workers)))
	d.publish(events.EventWorkerFailed, reason, map[string]string{"worker": id.String()})
	for sid, s := range sessions {
		if _, ok := d.Graph.GetSession(sid); ok {
			d.failSessionLocked(s, reason)
		}
	}
	d.checkConsistency()
}

// detachWorker clears every back-reference from the graph to w without
// sending it further RPCs (it may already be unreachable).
func (d *Driver) detachWorker(ctx context.Context, w *graph.Worker) {
	for _, t := range w.AssignedTasks {
		delete(w.AssignedTasks, t.ID)
		t.Assigned = nil
		if t.State == graph.TaskAssigned || t.State == graph.TaskRunning {
			t.State = graph.TaskReady
			d.updates.MarkTaskChanged(t.ID)
			t.Scheduled = nil
			d.updateTaskAssignment(ctx, t)
		}
	}
	for id, o := range w.ScheduledObjects {
		delete(w.ScheduledObjects, id)
		delete(o.Scheduled, w.ID)
	}
	for id, o := range w.AssignedObjects {
		delete(w.AssignedObjects, id)
		delete(o.Assigned, w.ID)
	}
	for id, o := range w.LocatedObjects {
		delete(w.LocatedObjects, id)
		delete(o.Located, w.ID)
	}
	for _, taskID := range w.ScheduledReadyTasks.DrainAll() {
		if t, ok := d.Graph.GetTask(taskID); ok {
			t.Scheduled = nil
			d.updates.MarkTaskChanged(t.ID)
		}
	}
}

// failTask marks t Failed and fires its finish hooks with reason.
func (d *Driver) failTask(t *graph.Task, reason string) {
	t.State = graph.TaskFailed
	t.triggerFinishHooks(&graph.FinishEvent{Message: reason})
	d.updates.MarkTaskChanged(t.ID)
}

// AddClient registers a new client connection (spec.md §4.4's add_client).
func (d *Driver) AddClient(addr net.Addr) (*graph.Client, error) {
	id, err := clientIDFromAddr(addr)
	if err != nil {
		return nil, rainerr.Wrap(rainerr.KindProtocol, err, "client address")
	}
	if _, exists := d.Graph.GetClient(id); exists {
		return nil, rainerr.Validationf("client %s already connected", id)
	}
	c := graph.NewClient(id)
	d.Graph.Clients[id] = c
	d.checkConsistency()
	return c, nil
}

func clientIDFromAddr(addr net.Addr) (ids.ClientID, error) {
	host, port, err := splitHostPort(addr.String())
	if err != nil {
		return ids.ClientID{}, err
	}
	return ids.ClientID{IP: host, Port: port}, nil
}

func splitHostPort(addr string) (net.IP, int, error) {
	w, err := ids.WorkerIDFromAddr(addr)
	if err != nil {
		return nil, 0, err
	}
	return w.IP, w.Port, nil
}

// RemoveClient disconnects a client, failing every session it still owns
// (spec.md §4.4's remove_client).
func (d *Driver) RemoveClient(id ids.ClientID) error {
	c, ok := d.Graph.GetClient(id)
	if !ok {
		return rainerr.Validationf("unknown client %s", id)
	}
	for _, s := range c.Sessions {
		d.failSessionLocked(s, "client disconnected")
	}
	delete(d.Graph.Clients, id)
	d.checkConsistency()
	return nil
}

// AddSession opens a new session under client (spec.md §4.4's
// add_session).
func (d *Driver) AddSession(client *graph.Client) *graph.Session {
	id := d.Graph.NewSessionID()
	s := graph.NewSession(id, client)
	d.Graph.Sessions[id] = s
	metrics.SessionsTotal.Set(float64(len(d.Graph.Sessions)))
	d.checkConsistency()
	return s
}

// RemoveSession tears down a session's tasks and objects (spec.md §4.4's
// remove_session). It does not fail the session; use FailSession first if
// that distinction matters to callers.
func (d *Driver) RemoveSession(id ids.SessionID) error {
	s, ok := d.Graph.GetSession(id)
	if !ok {
		return rainerr.Validationf("unknown session %s", id)
	}
	for _, t := range graph.TasksSnapshot(s) {
		d.removeTaskLocked(t)
	}
	for _, o := range graph.ObjectsSnapshot(s) {
		d.removeObjectLocked(o)
	}
	delete(s.Client.Sessions, id)
	delete(d.Graph.Sessions, id)
	metrics.SessionsTotal.Set(float64(len(d.Graph.Sessions)))
	d.checkConsistency()
	return nil
}

// FailSession marks a session's terminal error and fires its finish hooks
// (spec.md §4.4's fail_session), then tears it down the same way
// RemoveSession does.
func (d *Driver) FailSession(id ids.SessionID, reason string) error {
	s, ok := d.Graph.GetSession(id)
	if !ok {
		return rainerr.Validationf("unknown session %s", id)
	}
	d.failSessionLocked(s, reason)
	return nil
}

func (d *Driver) failSessionLocked(s *graph.Session, reason string) {
	if s.Error == nil {
		s.Error = &graph.FinishEvent{Message: reason}
		s.triggerFinishHooks(s.Error)
		metrics.SessionsFailedTotal.Inc()
		d.publish(events.EventSessionFailed, reason, map[string]string{"session": s.ID.String()})
	}
	_ = d.RemoveSession(s.ID)
}

// AddObject creates a new DataObject under the caller-supplied id (spec.md
// §4.4's add_object). A duplicate id is a Validation error and leaves the
// graph unchanged.
func (d *Driver) AddObject(session *graph.Session, id ids.DataObjectID, objType string, clientKeep bool, label string, data []byte, additional map[string]string) (*graph.DataObject, error) {
	if _, exists := d.Graph.GetObject(id); exists {
		return nil, rainerr.Validationf("object %s already exists", id)
	}
	o := graph.NewDataObject(session, id, objType, clientKeep, label, data, additional)
	d.Graph.Objects[id] = o
	d.updates.MarkNewObject(id)
	if o.State == graph.DataObjectFinished {
		d.publish(events.EventObjectFinished, "object finished", map[string]string{"object": id.String()})
	}
	d.checkConsistency()
	return o, nil
}

// UnkeepObject clears an object's client_keep flag (spec.md §4.4's
// unkeep_object); if the object is no longer Needed it is removed.
func (d *Driver) UnkeepObject(id ids.DataObjectID) error {
	o, ok := d.Graph.GetObject(id)
	if !ok {
		return rainerr.Validationf("unknown object %s", id)
	}
	o.ClientKeep = false
	if !o.IsNeeded() {
		d.removeObjectLocked(o)
	}
	d.checkConsistency()
	return nil
}

// RemoveObject removes o from the graph (spec.md §4.4's remove_object).
func (d *Driver) RemoveObject(id ids.DataObjectID) error {
	o, ok := d.Graph.GetObject(id)
	if !ok {
		return rainerr.Validationf("unknown object %s", id)
	}
	d.removeObjectLocked(o)
	d.checkConsistency()
	return nil
}

func (d *Driver) removeObjectLocked(o *graph.DataObject) {
	ctx := context.Background()
	for _, w := range graph.WorkersOf(o.Assigned) {
		d.unassignObject(ctx, o, w)
	}
	for id, w := range o.Located {
		delete(o.Located, id)
		delete(w.LocatedObjects, o.ID)
	}
	o.State = graph.DataObjectRemoved
	o.triggerFinishHooks(&graph.FinishEvent{})
	o.Unlink()
	delete(d.Graph.Objects, o.ID)
}

// VerifySubmit validates a prospective task submission without mutating
// the graph (spec.md §4.4's verify_submit bullets (a)/(b)): every output
// must be fresh (no existing producer or data), and the input/output edges
// must not close a cycle back through an input's own production chain.
// Bullet (c)'s full consistency walk runs in AddTask once the new task's
// producer links are established, not here — an output placeholder has no
// producer yet at this point (construct.go's documented pattern), so
// running graph.Check against the whole graph before NewTask links it
// would reject every ordinary submission.
func (d *Driver) VerifySubmit(inputs []graph.TaskInput, outputs []*graph.DataObject) error {
	for _, o := range outputs {
		if o.Producer != nil {
			return rainerr.Validationf("object %s already has a producer", o.ID)
		}
		if o.Data != nil {
			return rainerr.Validationf("object %s already carries inline data", o.ID)
		}
	}
	outputSet := make(map[ids.DataObjectID]struct{}, len(outputs))
	for _, o := range outputs {
		outputSet[o.ID] = struct{}{}
	}
	for _, in := range inputs {
		if cyclesTo(in.Object, outputSet) {
			return rainerr.Validationf("cycle detected through input %s", in.Object.ID)
		}
	}
	return nil
}

// cyclesTo reports whether walking back from obj's producer chain reaches
// any id in targets.
func cyclesTo(obj *graph.DataObject, targets map[ids.DataObjectID]struct{}) bool {
	seen := make(map[ids.DataObjectID]bool)
	var walk func(o *graph.DataObject) bool
	walk = func(o *graph.DataObject) bool {
		if o == nil || seen[o.ID] {
			return false
		}
		seen[o.ID] = true
		if _, hit := targets[o.ID]; hit {
			return true
		}
		if o.Producer == nil {
			return false
		}
		for _, in := range o.Producer.Inputs {
			if walk(in.Object) {
				return true
			}
		}
		return false
	}
	return walk(obj)
}

// AddTask validates and adds a new task under the caller-supplied id
// (spec.md §4.4's add_task), running VerifySubmit first. A duplicate id is
// a Validation error and leaves the graph unchanged. Once the task's
// producer links are established, verify_submit's bullet (c) full
// consistency walk runs and, on failure, unlinks the task again so the
// submission fails atomically (spec.md §4.4: "no partial apply"). A Ready
// task is queued into updates for the next scheduler run.
func (d *Driver) AddTask(session *graph.Session, id ids.TaskID, inputs []graph.TaskInput, outputs []*graph.DataObject, taskType string, taskConfig []byte, additional map[string]string, resources ids.Resources) (*graph.Task, error) {
	if _, exists := d.Graph.GetTask(id); exists {
		return nil, rainerr.Validationf("task %s already exists", id)
	}
	if err := d.VerifySubmit(inputs, outputs); err != nil {
		return nil, err
	}
	t, err := graph.NewTask(session, id, inputs, outputs, taskType, taskConfig, additional, resources)
	if err != nil {
		return nil, rainerr.Wrap(rainerr.KindValidation, err, "add_task")
	}
	d.Graph.Tasks[id] = t
	if err := graph.Check(d.Graph); err != nil {
		delete(d.Graph.Tasks, id)
		t.Unlink()
		return nil, rainerr.Wrap(rainerr.KindValidation, err, "verify_submit")
	}
	d.updates.MarkNewTask(id)
	d.checkConsistency()
	return t, nil
}

// BatchObjectSpec describes one object to add within a SubmitBatch call.
type BatchObjectSpec struct {
	ID         ids.DataObjectID
	ObjectType string
	ClientKeep bool
	Label      string
	Data       []byte
	Additional map[string]string
}

// BatchTaskInput is one input edge within a BatchTaskSpec.
type BatchTaskInput struct {
	ObjectID ids.DataObjectID
	Label    string
	Path     string
}

// BatchTaskSpec describes one task to add within a SubmitBatch call. Inputs
// and OutputIDs are resolved against both the graph and the objects staged
// earlier in the same batch, so a task may reference an object submitted
// alongside it.
type BatchTaskSpec struct {
	ID         ids.TaskID
	Inputs     []BatchTaskInput
	OutputIDs  []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources
}

// SubmitBatch adds every object and task in objects/tasks as one atomic
// step (spec.md §4.4's batched verify_submit(tasks, objects), confirmed
// against original_source/src/server/state.rs's
// verify_submit(&mut self, tasks: &[TaskRef], objects: &[DataObjectRef]):
// "fails atomically (no partial apply)"). Objects are staged first, in
// order, so a task later in the batch may reference an object submitted
// earlier in the same call; tasks are then staged in order, resolving
// their inputs/outputs against both the graph and the batch's own objects.
// A duplicate id, an unresolved reference, a VerifySubmit failure, or the
// post-link consistency walk all unwind every object and task staged so
// far in this call, leaving the graph exactly as it was before SubmitBatch
// was called.
func (d *Driver) SubmitBatch(session *graph.Session, objects []BatchObjectSpec, tasks []BatchTaskSpec) (addedObjects []*graph.DataObject, addedTasks []*graph.Task, err error) {
	staged := make(map[ids.DataObjectID]*graph.DataObject, len(objects))

	rollback := func() {
		for i := len(addedTasks) - 1; i >= 0; i-- {
			t := addedTasks[i]
			delete(d.Graph.Tasks, t.ID)
			t.Unlink()
		}
		for i := len(addedObjects) - 1; i >= 0; i-- {
			o := addedObjects[i]
			delete(d.Graph.Objects, o.ID)
			o.Unlink()
		}
	}

	for _, spec := range objects {
		if _, exists := d.Graph.GetObject(spec.ID); exists {
			rollback()
			return nil, nil, rainerr.Validationf("object %s already exists", spec.ID)
		}
		if _, dup := staged[spec.ID]; dup {
			rollback()
			return nil, nil, rainerr.Validationf("object %s submitted twice in the same batch", spec.ID)
		}
		o := graph.NewDataObject(session, spec.ID, spec.ObjectType, spec.ClientKeep, spec.Label, spec.Data, spec.Additional)
		d.Graph.Objects[spec.ID] = o
		staged[spec.ID] = o
		addedObjects = append(addedObjects, o)
	}

	resolve := func(id ids.DataObjectID) (*graph.DataObject, error) {
		if o, ok := staged[id]; ok {
			return o, nil
		}
		if o, ok := d.Graph.GetObject(id); ok {
			return o, nil
		}
		return nil, rainerr.Validationf("unknown object %s", id)
	}

	for _, spec := range tasks {
		if _, exists := d.Graph.GetTask(spec.ID); exists {
			rollback()
			return nil, nil, rainerr.Validationf("task %s already exists", spec.ID)
		}

		inputs := make([]graph.TaskInput, 0, len(spec.Inputs))
		for _, in := range spec.Inputs {
			obj, rerr := resolve(in.ObjectID)
			if rerr != nil {
				rollback()
				return nil, nil, rerr
			}
			inputs = append(inputs, graph.TaskInput{Object: obj, Label: in.Label, Path: in.Path})
		}

		outputs := make([]*graph.DataObject, 0, len(spec.OutputIDs))
		for _, oid := range spec.OutputIDs {
			obj, rerr := resolve(oid)
			if rerr != nil {
				rollback()
				return nil, nil, rerr
			}
			outputs = append(outputs, obj)
		}

		if verr := d.VerifySubmit(inputs, outputs); verr != nil {
			rollback()
			return nil, nil, verr
		}

		t, nerr := graph.NewTask(session, spec.ID, inputs, outputs, spec.TaskType, spec.TaskConfig, spec.Additional, spec.Resources)
		if nerr != nil {
			rollback()
			return nil, nil, rainerr.Wrap(rainerr.KindValidation, nerr, "add_task")
		}
		d.Graph.Tasks[spec.ID] = t
		addedTasks = append(addedTasks, t)
	}

	if cerr := graph.Check(d.Graph); cerr != nil {
		rollback()
		return nil, nil, rainerr.Wrap(rainerr.KindValidation, cerr, "verify_submit")
	}

	for _, o := range addedObjects {
		d.updates.MarkNewObject(o.ID)
		if o.State == graph.DataObjectFinished {
			d.publish(events.EventObjectFinished, "object finished", map[string]string{"object": o.ID.String()})
		}
	}
	for _, t := range addedTasks {
		d.updates.MarkNewTask(t.ID)
	}
	d.checkConsistency()
	return addedObjects, addedTasks, nil
}

// RemoveTask removes a task from the graph (spec.md §4.4's remove_task).
// Per Unlink's documented caveat, this can leave the task's output objects
// producer-less.
func (d *Driver) RemoveTask(id ids.TaskID) error {
	t, ok := d.Graph.GetTask(id)
	if !ok {
		return rainerr.Validationf("unknown task %s", id)
	}
	d.removeTaskLocked(t)
	d.checkConsistency()
	return nil
}

func (d *Driver) removeTaskLocked(t *graph.Task) {
	ctx := context.Background()
	if t.Assigned != nil {
		d.unassignTask(ctx, t, t.Assigned)
	}
	if t.Scheduled != nil {
		t.Scheduled.ScheduledReadyTasks.Remove(t.ID)
	}
	t.Unlink()
	delete(d.Graph.Tasks, t.ID)
}

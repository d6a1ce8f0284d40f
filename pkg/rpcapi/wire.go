package rpcapi

import "github.com/cuemby/rain/pkg/ids"

// ClientProtocolVersion and WorkerProtocolVersion are the integer protocol
// versions register_as_client/register_as_worker check (spec.md §6):
// mismatch is a hard rejection at bootstrap.
const (
	ClientProtocolVersion = 1
	WorkerProtocolVersion = 1
)

// NewObjectWire is the wire shape of add_nodes' new_objects list (spec.md
// §6: "repeated NewObject {id, object_type, label, size?, data?,
// placement:WorkerId, assigned:bool, additional}").
type NewObjectWire struct {
	ID         ids.DataObjectID
	ObjectType string
	Label      string
	Size       *int64
	Data       []byte
	Placement  ids.WorkerID
	Assigned   bool
	Additional map[string]string
}

// TaskInputWire is the wire shape of one NewTask input edge.
type TaskInputWire struct {
	ObjectID ids.DataObjectID
	Label    string
	Path     string
}

// NewTaskWire is the wire shape of add_nodes' new_tasks list (spec.md §6:
// "repeated NewTask {id, inputs:[...], outputs:[id], task_type,
// task_config:bytes, additional, resources}").
type NewTaskWire struct {
	ID         ids.TaskID
	Inputs     []TaskInputWire
	Outputs    []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources
}

// RegisterAsClientReq is Bootstrap's register_as_client call.
type RegisterAsClientReq struct {
	Version int
}

// RegisterAsClientResp acknowledges a successful client registration.
type RegisterAsClientResp struct{}

// RegisterAsWorkerReq is Bootstrap's register_as_worker call.
// AnnouncedAddress is "host:port"; an unspecified host means "use the
// connection's own address" (spec.md §4.6).
type RegisterAsWorkerReq struct {
	Version          int
	AnnouncedAddress string
	Resources        ids.Resources
}

// RegisterAsWorkerResp carries the worker_id the server computed.
type RegisterAsWorkerResp struct {
	WorkerID ids.WorkerID
}

// OpenSessionReq opens a new session under the registered client.
type OpenSessionReq struct{}

// OpenSessionResp carries the newly minted session id.
type OpenSessionResp struct {
	SessionID ids.SessionID
}

// CloseSessionReq tears down a session (spec.md §4.4 remove_session).
type CloseSessionReq struct {
	SessionID ids.SessionID
}

// CloseSessionResp acknowledges session removal.
type CloseSessionResp struct{}

// SubmitObjectReq is ClientService's add_object call. Notify subscribes
// this connection to the object's finish hook: a FinishEventPush is sent
// back over this connection when it fires.
type SubmitObjectReq struct {
	SessionID  ids.SessionID
	ID         ids.DataObjectID
	ObjectType string
	ClientKeep bool
	Label      string
	Data       []byte
	Additional map[string]string
	Notify     bool
}

// SubmitObjectResp acknowledges a successful add_object.
type SubmitObjectResp struct{}

// SubmitTaskReq is ClientService's add_task call, referencing inputs and
// outputs by id — both must already have been submitted in the same
// session. Notify subscribes this connection to the task's finish hook.
type SubmitTaskReq struct {
	SessionID  ids.SessionID
	ID         ids.TaskID
	Inputs     []TaskInputWire
	Outputs    []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources
	Notify     bool
}

// SubmitTaskResp acknowledges a successful add_task.
type SubmitTaskResp struct{}

// SubmitBatchObjectWire is one object within a SubmitBatchReq.
type SubmitBatchObjectWire struct {
	ID         ids.DataObjectID
	ObjectType string
	ClientKeep bool
	Label      string
	Data       []byte
	Additional map[string]string
}

// SubmitBatchTaskWire is one task within a SubmitBatchReq.
type SubmitBatchTaskWire struct {
	ID         ids.TaskID
	Inputs     []TaskInputWire
	Outputs    []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources
}

// SubmitBatchReq is ClientService's batched add_object/add_task call
// (spec.md §4.4/§4.6: "submit (batched; triggers verify_submit)"). Objects
// are staged before tasks, so a task in the batch may reference an object
// submitted alongside it; the whole batch is committed or rejected together
// — "fails atomically (no partial apply)".
type SubmitBatchReq struct {
	SessionID ids.SessionID
	Objects   []SubmitBatchObjectWire
	Tasks     []SubmitBatchTaskWire
}

// SubmitBatchResp acknowledges a successful batch submit.
type SubmitBatchResp struct{}

// UnkeepObjectReq is ClientService's unkeep_object call.
type UnkeepObjectReq struct {
	ObjectID ids.DataObjectID
}

// UnkeepObjectResp acknowledges unkeep_object.
type UnkeepObjectResp struct{}

// FinishEventPush is an unsolicited push from server to client reporting a
// subscribed entity's terminal transition.
type FinishEventPush struct {
	Kind       string // "session", "task", or "object"
	SessionID  ids.SessionID
	TaskID     *ids.TaskID
	ObjectID   *ids.DataObjectID
	Message    string
	Additional map[string]string
}

// ObjectUpdateWire is one element of updates_from_worker's object_updates.
type ObjectUpdateWire struct {
	ObjectID ids.DataObjectID
	Size     int64
}

// TaskUpdateWire is one element of updates_from_worker's task_updates.
// NewState is one of "Running", "Finished", "Failed" — the only
// transitions a worker may report (spec.md §4.5).
type TaskUpdateWire struct {
	TaskID   ids.TaskID
	NewState string
	Error    string
	Metadata map[string]string
}

// UpdatesFromWorkerReq is WorkerUpstream's single inbound call.
type UpdatesFromWorkerReq struct {
	ObjectUpdates []ObjectUpdateWire
	TaskUpdates   []TaskUpdateWire
}

// UpdatesFromWorkerResp acknowledges a processed updates_from_worker call.
type UpdatesFromWorkerResp struct{}

// AddNodesReq is outbound worker control's add_nodes call.
type AddNodesReq struct {
	Objects []NewObjectWire
	Tasks   []NewTaskWire
}

// AddNodesResp acknowledges add_nodes.
type AddNodesResp struct{}

// UnassignObjectsReq is outbound worker control's unassign_objects call.
type UnassignObjectsReq struct {
	Objects []ids.DataObjectID
}

// UnassignObjectsResp acknowledges unassign_objects.
type UnassignObjectsResp struct{}

// StopTasksReq is outbound worker control's stop_tasks call.
type StopTasksReq struct {
	Tasks []ids.TaskID
}

// StopTasksResp acknowledges stop_tasks.
type StopTasksResp struct{}

// ProbeResourcesReq is outbound worker control's worker_resources probe.
type ProbeResourcesReq struct{}

// ProbeResourcesResp carries the worker's advertised resources.
type ProbeResourcesResp struct {
	Resources ids.Resources
}

// ErrorResp carries a rainerr.Kind (by name) and message back to the
// caller of a failed request (spec.md §7's propagation policy).
type ErrorResp struct {
	Kind    string
	Message string
}

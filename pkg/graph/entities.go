package graph

import "github.com/cuemby/rain/pkg/ids"

// FinishEvent is the payload handed to a finish hook when an entity reaches
// a terminal state (spec.md §9: "closures attached to Task/DataObject/
// Session that fire once on Finished/Removed/error").
type FinishEvent struct {
	// Message is empty on a clean finish, set to the failure cause otherwise.
	Message string
	// Additional carries the opaque metadata a worker reported alongside
	// the terminal transition (spec.md §3 Task.additional/DataObject
	// additional metadata).
	Additional map[string]string
}

// FinishHook is a one-shot callback fired exactly once when its owning
// entity reaches a terminal state.
type FinishHook func(*FinishEvent)

// DataObjectState is the lifecycle state of a DataObject (spec.md §3).
type DataObjectState int

const (
	DataObjectUnfinished DataObjectState = iota
	DataObjectFinished
	DataObjectRemoved
)

func (s DataObjectState) String() string {
	switch s {
	case DataObjectUnfinished:
		return "Unfinished"
	case DataObjectFinished:
		return "Finished"
	case DataObjectRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// TaskState is the lifecycle state of a Task (spec.md §3).
type TaskState int

const (
	TaskNotAssigned TaskState = iota
	TaskReady
	TaskAssigned
	TaskRunning
	TaskFinished
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskNotAssigned:
		return "NotAssigned"
	case TaskReady:
		return "Ready"
	case TaskAssigned:
		return "Assigned"
	case TaskRunning:
		return "Running"
	case TaskFinished:
		return "Finished"
	case TaskFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Client is a connected submitter, identified by its network address.
type Client struct {
	ID       ids.ClientID
	Sessions map[ids.SessionID]*Session
}

func newClient(id ids.ClientID) *Client {
	return &Client{ID: id, Sessions: make(map[ids.SessionID]*Session)}
}

// Session is the root of client-scoped garbage collection (spec.md §3).
type Session struct {
	ID          ids.SessionID
	Client      *Client
	Tasks       map[ids.TaskID]*Task
	Objects     map[ids.DataObjectID]*DataObject
	Error       *FinishEvent
	FinishHooks []FinishHook
}

func newSession(id ids.SessionID, client *Client) *Session {
	return &Session{
		ID:      id,
		Client:  client,
		Tasks:   make(map[ids.TaskID]*Task),
		Objects: make(map[ids.DataObjectID]*DataObject),
	}
}

// Failed reports whether the session has entered its terminal error state.
func (s *Session) Failed() bool { return s.Error != nil }

// triggerFinishHooks fires and clears every registered hook with ev.
func (s *Session) triggerFinishHooks(ev *FinishEvent) {
	hooks := s.FinishHooks
	s.FinishHooks = nil
	for _, h := range hooks {
		h(ev)
	}
}

// TaskInput is one input edge of a Task onto a DataObject (spec.md §3).
type TaskInput struct {
	Object *DataObject
	Label  string
	Path   string
}

// Task is a unit of computation (spec.md §3).
type Task struct {
	ID         ids.TaskID
	Session    *Session
	Inputs     []TaskInput
	Outputs    []*DataObject
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources

	WaitingFor map[ids.DataObjectID]*DataObject
	Scheduled  *Worker
	Assigned   *Worker
	State      TaskState

	FinishHooks []FinishHook
}

func (t *Task) triggerFinishHooks(ev *FinishEvent) {
	hooks := t.FinishHooks
	t.FinishHooks = nil
	for _, h := range hooks {
		h(ev)
	}
}

// DataObject is a (possibly still-unfinished) datum (spec.md §3).
type DataObject struct {
	ID         ids.DataObjectID
	Session    *Session
	Type       string
	ClientKeep bool
	Producer   *Task
	Consumers  map[ids.TaskID]*Task
	State      DataObjectState
	Size       *int64
	Data       []byte
	Label      string
	Additional map[string]string

	Located   map[ids.WorkerID]*Worker
	Assigned  map[ids.WorkerID]*Worker
	Scheduled map[ids.WorkerID]*Worker

	FinishHooks []FinishHook
}

func (o *DataObject) triggerFinishHooks(ev *FinishEvent) {
	hooks := o.FinishHooks
	o.FinishHooks = nil
	for _, h := range hooks {
		h(ev)
	}
}

// IsNeeded reports whether the object must still be kept somewhere: it is
// client-kept, has a non-finished consumer, or a scheduled consumer worker
// doesn't have it yet (spec.md §4.5 "Needed" definition).
func (o *DataObject) IsNeeded() bool {
	if o.ClientKeep {
		return true
	}
	for _, c := range o.Consumers {
		if c.State != TaskFinished {
			return true
		}
		if c.Scheduled != nil {
			if _, has := o.Located[c.Scheduled.ID]; !has {
				return true
			}
		}
	}
	return false
}

// Worker is a remote executor (spec.md §3).
type Worker struct {
	ID        ids.WorkerID
	Control   WorkerControl
	Resources ids.Resources
	Error     *string

	AssignedTasks      map[ids.TaskID]*Task
	ScheduledReadyTasks *orderedTaskSet
	AssignedObjects    map[ids.DataObjectID]*DataObject
	LocatedObjects     map[ids.DataObjectID]*DataObject
	ScheduledObjects   map[ids.DataObjectID]*DataObject
}

func newWorker(id ids.WorkerID, control WorkerControl, resources ids.Resources) *Worker {
	return &Worker{
		ID:                  id,
		Control:             control,
		Resources:           resources,
		AssignedTasks:       make(map[ids.TaskID]*Task),
		ScheduledReadyTasks: newOrderedTaskSet(),
		AssignedObjects:     make(map[ids.DataObjectID]*DataObject),
		LocatedObjects:      make(map[ids.DataObjectID]*DataObject),
		ScheduledObjects:    make(map[ids.DataObjectID]*DataObject),
	}
}

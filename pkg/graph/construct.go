package graph

import (
	"fmt"

	"github.com/cuemby/rain/pkg/ids"
)

// NewClient constructs a Client entity. Graph membership is the caller's
// responsibility (pkg/driver's AddClient inserts it and checks for
// duplicates).
func NewClient(id ids.ClientID) *Client {
	return newClient(id)
}

// NewWorker constructs a Worker entity. Graph membership is the caller's
// responsibility.
func NewWorker(id ids.WorkerID, control WorkerControl, resources ids.Resources) *Worker {
	return newWorker(id, control, resources)
}

// NewSession constructs a Session owned by client and links it into the
// client's session set. Graph membership is the caller's responsibility.
func NewSession(id ids.SessionID, client *Client) *Session {
	s := newSession(id, client)
	client.Sessions[id] = s
	return s
}

// NewDataObject constructs a DataObject with either inline data or neither
// (a producer is attached later, by NewTask, when the object is used as a
// task output). It is linked into its session's object set. Graph
// membership is the caller's responsibility.
//
// Per spec.md §3's invariant ("if data is present then producer is absent
// and vice versa") a freshly created object may carry data, but never a
// producer — that link is only ever established by NewTask.
func NewDataObject(session *Session, id ids.DataObjectID, objType string, clientKeep bool, label string, data []byte, additional map[string]string) *DataObject {
	o := &DataObject{
		ID:         id,
		Session:    session,
		Type:       objType,
		ClientKeep: clientKeep,
		Label:      label,
		Data:       data,
		Additional: additional,
		Consumers:  make(map[ids.TaskID]*Task),
		Located:    make(map[ids.WorkerID]*Worker),
		Assigned:   make(map[ids.WorkerID]*Worker),
		Scheduled:  make(map[ids.WorkerID]*Worker),
	}
	if data != nil {
		size := int64(len(data))
		// Server-sourced objects are immediately usable; the worker that
		// first wants them is handed the bytes directly from the server
		// (ids.WorkerID{}.IsServer() sentinel), so there is nothing to
		// wait for.
		o.State = DataObjectFinished
		o.Size = &size
	}
	session.Objects[id] = o
	return o
}

// NewTask constructs a Task, validating and linking its inputs and outputs
// per spec.md §3/§4.4: every output must not already have a producer or
// inline data, and every input object must already exist in the graph
// (callers pass resolved *DataObject, so "exists" is a precondition on the
// caller). Graph membership is the caller's responsibility.
func NewTask(session *Session, id ids.TaskID, inputs []TaskInput, outputs []*DataObject, taskType string, taskConfig []byte, additional map[string]string, resources ids.Resources) (*Task, error) {
	for _, o := range outputs {
		if o.Producer != nil {
			return nil, fmt.Errorf("object %s already has producer task %s", o.ID, o.Producer.ID)
		}
		if o.Data != nil {
			return nil, fmt.Errorf("object %s already has inline data, cannot also be a task output", o.ID)
		}
	}

	t := &Task{
		ID:         id,
		Session:    session,
		Inputs:     inputs,
		Outputs:    outputs,
		TaskType:   taskType,
		TaskConfig: taskConfig,
		Additional: additional,
		Resources:  resources,
		WaitingFor: make(map[ids.DataObjectID]*DataObject),
	}

	for i := range inputs {
		o := inputs[i].Object
		o.Consumers[id] = t
		if o.State != DataObjectFinished {
			t.WaitingFor[o.ID] = o
		}
	}
	for _, o := range outputs {
		o.Producer = t
	}

	if len(t.WaitingFor) == 0 {
		t.State = TaskReady
	} else {
		t.State = TaskNotAssigned
	}

	session.Tasks[id] = t
	return t, nil
}

// Unlink removes o from its session and, if it has a producer, from the
// producer's output list. It does not remove o's consumers' task.Inputs
// references — per spec.md §4.4 remove_task's warning, removing a task can
// leave its output objects producer-less; callers doing bulk removal
// (session clear) must not rely on partial unlink ordering.
func (o *DataObject) Unlink() {
	delete(o.Session.Objects, o.ID)
	if o.Producer != nil {
		for i, out := range o.Producer.Outputs {
			if out == o {
				o.Producer.Outputs = append(o.Producer.Outputs[:i], o.Producer.Outputs[i+1:]...)
				break
			}
		}
		o.Producer = nil
	}
}

// Unlink removes t from its session and from every input object's consumer
// set, and clears the producer backlink on every output object (spec.md
// §4.4 remove_task).
func (t *Task) Unlink() {
	delete(t.Session.Tasks, t.ID)
	for i := range t.Inputs {
		delete(t.Inputs[i].Object.Consumers, t.ID)
	}
	for _, o := range t.Outputs {
		if o.Producer == t {
			o.Producer = nil
		}
	}
}

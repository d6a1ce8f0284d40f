package scheduler

import "github.com/cuemby/rain/pkg/ids"

// UpdateSet accumulates the deltas that have occurred since the scheduler
// last ran (spec.md §4.2): tasks and objects that entered the graph, tasks
// whose state or assignment changed, and objects whose placement changed
// together with the workers that reported the change. The driver grows one
// UpdateSet across a run of mutations and hands it to the scheduler, then
// discards it.
type UpdateSet struct {
	NewTasks   map[ids.TaskID]struct{}
	NewObjects map[ids.DataObjectID]struct{}
	Tasks      map[ids.TaskID]struct{}
	Objects    map[ids.DataObjectID]map[ids.WorkerID]struct{}
}

// NewUpdateSet returns an empty UpdateSet.
func NewUpdateSet() *UpdateSet {
	return &UpdateSet{
		NewTasks:   make(map[ids.TaskID]struct{}),
		NewObjects: make(map[ids.DataObjectID]struct{}),
		Tasks:      make(map[ids.TaskID]struct{}),
		Objects:    make(map[ids.DataObjectID]map[ids.WorkerID]struct{}),
	}
}

// IsEmpty reports whether no field carries any entry (spec.md §4.2).
func (u *UpdateSet) IsEmpty() bool {
	return len(u.NewTasks) == 0 && len(u.NewObjects) == 0 && len(u.Tasks) == 0 && len(u.Objects) == 0
}

// MarkNewTask records that id is newly present in the graph.
func (u *UpdateSet) MarkNewTask(id ids.TaskID) {
	u.NewTasks[id] = struct{}{}
	u.Tasks[id] = struct{}{}
}

// MarkNewObject records that id is newly present in the graph.
func (u *UpdateSet) MarkNewObject(id ids.DataObjectID) {
	u.NewObjects[id] = struct{}{}
}

// MarkTaskChanged records that id's state or assignment changed.
func (u *UpdateSet) MarkTaskChanged(id ids.TaskID) {
	u.Tasks[id] = struct{}{}
}

// MarkObjectPlacement records that worker reported a placement change for
// object id (spec.md §4.2: "the workers that reported them").
func (u *UpdateSet) MarkObjectPlacement(id ids.DataObjectID, worker ids.WorkerID) {
	set, ok := u.Objects[id]
	if !ok {
		set = make(map[ids.WorkerID]struct{})
		u.Objects[id] = set
	}
	set[worker] = struct{}{}
}

// Reset empties every field in place, ready for the next accumulation
// window. Called once per scheduler invocation (spec.md §4.2).
func (u *UpdateSet) Reset() {
	u.NewTasks = make(map[ids.TaskID]struct{})
	u.NewObjects = make(map[ids.DataObjectID]struct{})
	u.Tasks = make(map[ids.TaskID]struct{})
	u.Objects = make(map[ids.DataObjectID]map[ids.WorkerID]struct{})
}

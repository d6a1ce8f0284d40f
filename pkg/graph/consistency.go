package graph

import "fmt"

// Check walks every entity in g and verifies the invariants of spec.md §3/§8.
// It is the "always run" form used by verify_submit; CheckIfDebug is the
// debug-gated form used after ordinary mutations (spec.md §5/§6:
// RAIN_DEBUG_MODE enables full consistency checks after every mutation).
func Check(g *Graph) error {
	for _, t := range g.Tasks {
		if err := checkTask(t); err != nil {
			return err
		}
	}
	for _, o := range g.Objects {
		if err := checkObject(o); err != nil {
			return err
		}
	}
	for _, w := range g.Workers {
		if err := checkWorker(w); err != nil {
			return err
		}
	}
	for _, s := range g.Sessions {
		if err := checkSession(s); err != nil {
			return err
		}
	}
	if err := checkAcyclic(g); err != nil {
		return err
	}
	return nil
}

// DebugEnabled gates the expensive, whole-graph consistency walk. Driver
// code calls CheckIfDebug after every public mutation; it is a no-op unless
// RAIN_DEBUG_MODE is set (spec.md §6).
var DebugEnabled bool

// CheckIfDebug runs Check only if DebugEnabled is set. Internal
// inconsistency is fatal (spec.md §7: Internal errors abort the core), so
// callers should treat a non-nil return as unrecoverable.
func CheckIfDebug(g *Graph) error {
	if !DebugEnabled {
		return nil
	}
	return Check(g)
}

func checkTask(t *Task) error {
	ready := len(t.WaitingFor) == 0 && t.Assigned == nil
	if (t.State == TaskReady) != ready {
		return fmt.Errorf("task %s: state=Ready iff waiting_for empty and unassigned violated (state=%s waiting=%d assigned=%v)",
			t.ID, t.State, len(t.WaitingFor), t.Assigned != nil)
	}
	if (t.State == TaskAssigned || t.State == TaskRunning) && t.Assigned == nil {
		return fmt.Errorf("task %s: state=%s requires an assigned worker", t.ID, t.State)
	}
	if t.State == TaskFinished {
		if t.Assigned != nil {
			return fmt.Errorf("task %s: Finished task still assigned to %s", t.ID, t.Assigned.ID)
		}
		for _, o := range t.Outputs {
			if o.State != DataObjectFinished {
				return fmt.Errorf("task %s: Finished but output %s is %s", t.ID, o.ID, o.State)
			}
		}
	}
	for _, o := range t.Outputs {
		if o.Producer != t {
			return fmt.Errorf("task %s: output %s does not point back at this task", t.ID, o.ID)
		}
	}
	for _, in := range t.Inputs {
		if in.Object.Consumers[t.ID] != t {
			return fmt.Errorf("task %s: input %s missing reverse consumer link", t.ID, in.Object.ID)
		}
	}
	return nil
}

func checkObject(o *DataObject) error {
	for w := range o.Assigned {
		wk, ok := o.Assigned[w]
		if !ok || wk.AssignedObjects[o.ID] != o {
			return fmt.Errorf("object %s: assigned/worker backlink mismatch with %s", o.ID, w)
		}
	}
	for w, wk := range o.Located {
		if wk.LocatedObjects[o.ID] != o {
			return fmt.Errorf("object %s: located/worker backlink mismatch with %s", o.ID, w)
		}
	}
	switch o.State {
	case DataObjectFinished:
		if o.Size == nil {
			return fmt.Errorf("object %s: Finished but size unset", o.ID)
		}
		if o.Data == nil && len(o.Located) == 0 {
			return fmt.Errorf("object %s: Finished but neither data nor a located replica", o.ID)
		}
	case DataObjectRemoved:
		if len(o.Assigned) != 0 || len(o.Located) != 0 {
			return fmt.Errorf("object %s: Removed but still assigned/located somewhere", o.ID)
		}
		if o.IsNeeded() {
			return fmt.Errorf("object %s: Removed but still needed", o.ID)
		}
	}
	if o.Producer != nil && o.Data != nil {
		return fmt.Errorf("object %s: has both a producer and inline data", o.ID)
	}
	if o.Producer == nil && o.Data == nil && o.State != DataObjectRemoved {
		return fmt.Errorf("object %s: has neither a producer nor inline data", o.ID)
	}
	return nil
}

func checkWorker(w *Worker) error {
	for _, t := range w.AssignedTasks {
		if t.Assigned != w {
			return fmt.Errorf("worker %s: assigned task %s does not point back", w.ID, t.ID)
		}
	}
	return nil
}

func checkSession(s *Session) error {
	for _, t := range s.Tasks {
		if t.Session != s {
			return fmt.Errorf("session %s: task %s has mismatched session backref", s.ID, t.ID)
		}
	}
	for _, o := range s.Objects {
		if o.Session != s {
			return fmt.Errorf("session %s: object %s has mismatched session backref", s.ID, o.ID)
		}
	}
	return nil
}

// checkAcyclic verifies the subgraph restricted to (object->producer,
// task->input) edges is acyclic, per spec.md §8.
func checkAcyclic(g *Graph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	taskColor := make(map[*Task]int, len(g.Tasks))
	objColor := make(map[*DataObject]int, len(g.Objects))

	var visitTask func(t *Task) error
	var visitObj func(o *DataObject) error

	visitObj = func(o *DataObject) error {
		switch objColor[o] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected at object %s", o.ID)
		}
		objColor[o] = gray
		if o.Producer != nil {
			if err := visitTask(o.Producer); err != nil {
				return err
			}
		}
		objColor[o] = black
		return nil
	}

	visitTask = func(t *Task) error {
		switch taskColor[t] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected at task %s", t.ID)
		}
		taskColor[t] = gray
		for _, in := range t.Inputs {
			if err := visitObj(in.Object); err != nil {
				return err
			}
		}
		taskColor[t] = black
		return nil
	}

	for _, t := range g.Tasks {
		if err := visitTask(t); err != nil {
			return err
		}
	}
	for _, o := range g.Objects {
		if err := visitObj(o); err != nil {
			return err
		}
	}
	return nil
}

// Package graph holds the in-memory, single-threaded dataflow graph that is
// the sole authoritative state of a Rain server (spec.md §3/§4.1): the
// Session, DataObject, Task, Worker and Client entities, their
// cross-references, and the invariants that must hold between mutations.
package graph

import "github.com/cuemby/rain/pkg/ids"

// Graph is the aggregate container: maps from each id type to its entity,
// plus the session id counter. It carries no scheduling logic of its own —
// that lives in pkg/scheduler and pkg/driver, which are the only callers
// expected to mutate it.
type Graph struct {
	Workers  map[ids.WorkerID]*Worker
	Tasks    map[ids.TaskID]*Task
	Objects  map[ids.DataObjectID]*DataObject
	Sessions map[ids.SessionID]*Session
	Clients  map[ids.ClientID]*Client

	sessionIDCounter ids.SessionID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		Workers:  make(map[ids.WorkerID]*Worker),
		Tasks:    make(map[ids.TaskID]*Task),
		Objects:  make(map[ids.DataObjectID]*DataObject),
		Sessions: make(map[ids.SessionID]*Session),
		Clients:  make(map[ids.ClientID]*Client),
	}
}

// NewSessionID mints the next monotonically increasing session id.
func (g *Graph) NewSessionID() ids.SessionID {
	g.sessionIDCounter++
	return g.sessionIDCounter
}

func (g *Graph) GetWorker(id ids.WorkerID) (*Worker, bool) {
	w, ok := g.Workers[id]
	return w, ok
}

func (g *Graph) GetTask(id ids.TaskID) (*Task, bool) {
	t, ok := g.Tasks[id]
	return t, ok
}

func (g *Graph) GetObject(id ids.DataObjectID) (*DataObject, bool) {
	o, ok := g.Objects[id]
	return o, ok
}

func (g *Graph) GetSession(id ids.SessionID) (*Session, bool) {
	s, ok := g.Sessions[id]
	return s, ok
}

func (g *Graph) GetClient(id ids.ClientID) (*Client, bool) {
	c, ok := g.Clients[id]
	return c, ok
}

// ListWorkers returns a snapshot slice of all workers. Callers that mutate
// the worker set while iterating must operate on this copy, not the map.
func (g *Graph) ListWorkers() []*Worker {
	out := make([]*Worker, 0, len(g.Workers))
	for _, w := range g.Workers {
		out = append(out, w)
	}
	return out
}

// ListSessions returns a snapshot slice of all sessions.
func (g *Graph) ListSessions() []*Session {
	out := make([]*Session, 0, len(g.Sessions))
	for _, s := range g.Sessions {
		out = append(out, s)
	}
	return out
}

// TasksSnapshot returns a snapshot slice of s's tasks, safe to range over
// while the caller mutates s.Tasks (e.g. via Unlink).
func TasksSnapshot(s *Session) []*Task {
	out := make([]*Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t)
	}
	return out
}

// ObjectsSnapshot returns a snapshot slice of s's objects, safe to range
// over while the caller mutates s.Objects (e.g. via Unlink).
func ObjectsSnapshot(s *Session) []*DataObject {
	out := make([]*DataObject, 0, len(s.Objects))
	for _, o := range s.Objects {
		out = append(out, o)
	}
	return out
}

// WorkersOf returns a snapshot slice of the workers in m, safe to range
// over while the caller mutates m.
func WorkersOf(m map[ids.WorkerID]*Worker) []*Worker {
	out := make([]*Worker, 0, len(m))
	for _, w := range m {
		out = append(out, w)
	}
	return out
}

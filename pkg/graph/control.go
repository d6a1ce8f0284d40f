package graph

import (
	"context"

	"github.com/cuemby/rain/pkg/ids"
)

// NewObjectEntry is one element of the add_nodes RPC's new_objects list
// (spec.md §6 wire schema): an object newly known to a worker, the worker
// that already holds its bytes (or the server sentinel), and whether the
// worker being contacted should hold it as its own replica.
type NewObjectEntry struct {
	Object    *DataObject
	Placement ids.WorkerID
	Assigned  bool
}

// WorkerControl is the outbound capability the driver holds per worker —
// the RPC Surface's "outbound worker control" of spec.md §4.6. Implemented
// by pkg/rpcapi and injected here so pkg/graph never depends on the
// transport.
type WorkerControl interface {
	AddNodes(ctx context.Context, objects []NewObjectEntry, tasks []*Task) error
	UnassignObjects(ctx context.Context, objects []ids.DataObjectID) error
	StopTasks(ctx context.Context, tasks []ids.TaskID) error
	ProbeResources(ctx context.Context) (ids.Resources, error)
}

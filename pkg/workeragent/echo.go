package workeragent

import (
	"context"

	"github.com/cuemby/rain/pkg/ids"
)

// EchoExecutor is the default Executor: it "runs" a task by immediately
// reporting every output as a zero-byte placeholder. It exists so
// rain-worker can exercise the full RPC contract (spec.md §4.6) without
// any real subworker process management, which is out of scope.
type EchoExecutor struct{}

// NewEchoExecutor constructs an EchoExecutor.
func NewEchoExecutor() *EchoExecutor {
	return &EchoExecutor{}
}

func (e *EchoExecutor) Execute(_ context.Context, spec TaskSpec) TaskResult {
	sizes := make(map[ids.DataObjectID]int64, len(spec.Outputs))
	for _, o := range spec.Outputs {
		sizes[o] = 0
	}
	return TaskResult{OutputSizes: sizes}
}

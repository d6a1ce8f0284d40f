package scheduler

import (
	"math/rand"
	"sort"

	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
)

// OverbookLimit is the default admission-control ceiling on assigned tasks
// per worker (spec.md §4.5/§9: "max assigned tasks per worker").
const OverbookLimit = 128

// Changed is the scheduler's contract with placement reconciliation
// (spec.md §4.3): the entities whose `scheduled` field a Schedule call
// modified. The driver is the only consumer; no scheduling policy should be
// assumed past this boundary.
type Changed struct {
	Objects map[ids.WorkerID]map[ids.DataObjectID]*graph.DataObject
	Tasks   map[ids.TaskID]*graph.Task
}

func newChanged() Changed {
	return Changed{
		Objects: make(map[ids.WorkerID]map[ids.DataObjectID]*graph.DataObject),
		Tasks:   make(map[ids.TaskID]*graph.Task),
	}
}

func (c *Changed) addObject(w ids.WorkerID, o *graph.DataObject) {
	set, ok := c.Objects[w]
	if !ok {
		set = make(map[ids.DataObjectID]*graph.DataObject)
		c.Objects[w] = set
	}
	set[o.ID] = o
}

func (c *Changed) addTask(t *graph.Task) {
	c.Tasks[t.ID] = t
}

// Scheduler maps tasks and objects onto workers. Multiple policies must be
// pluggable behind this interface (spec.md §9); the driver never assumes
// RandomScheduler specifics.
type Scheduler interface {
	Schedule(g *graph.Graph, updates *UpdateSet) Changed
}

// RandomScheduler is the baseline policy (spec.md §4.3): each new task is
// assigned to a worker chosen at random from those with non-zero cpus,
// honoring OverbookLimit, co-scheduling the task's inputs onto the same
// worker.
type RandomScheduler struct {
	// Deterministic disables the random pick in favor of the lowest-sorting
	// eligible worker, for reproducible tests (RAIN_TEST_MODE, SPEC_FULL.md
	// §A.2).
	Deterministic bool
	rng           *rand.Rand
}

// NewRandomScheduler constructs a RandomScheduler. seed only matters when
// deterministic is false; pass a fixed value from config in test mode so
// runs are reproducible even without full determinism.
func NewRandomScheduler(deterministic bool, seed int64) *RandomScheduler {
	return &RandomScheduler{
		Deterministic: deterministic,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Schedule implements Scheduler. Only tasks named in updates are
// considered: spec.md §4.3's post-condition is that every task in updates
// ends with a non-nil Scheduled, unless no worker can host it — a no-op
// here; the driver keeps such a task in its next UpdateSet so a later call
// revisits it.
func (s *RandomScheduler) Schedule(g *graph.Graph, updates *UpdateSet) Changed {
	changed := newChanged()

	candidates := s.eligibleWorkers(g)

	for taskID := range updates.Tasks {
		task, ok := g.GetTask(taskID)
		if !ok {
			continue
		}
		if task.State != graph.TaskReady || task.Scheduled != nil {
			continue
		}
		worker := s.pick(candidates, task.Resources.CPUs)
		if worker == nil {
			continue
		}
		task.Scheduled = worker
		changed.addTask(task)

		for _, in := range task.Inputs {
			o := in.Object
			if _, already := o.Scheduled[worker.ID]; already {
				continue
			}
			o.Scheduled[worker.ID] = worker
			changed.addObject(worker.ID, o)
		}
	}

	return changed
}

// eligibleWorkers returns the workers with non-zero cpus, sorted when
// running deterministically so the "lowest sorting worker" choice is
// reproducible across calls.
func (s *RandomScheduler) eligibleWorkers(g *graph.Graph) []*graph.Worker {
	all := g.ListWorkers()
	out := make([]*graph.Worker, 0, len(all))
	for _, w := range all {
		if w.Resources.CPUs > 0 {
			out = append(out, w)
		}
	}
	if s.Deterministic {
		sort.Slice(out, func(i, j int) bool {
			return out[i].ID.String() < out[j].ID.String()
		})
	}
	return out
}

// pick chooses a worker with at least requiredCPUs cpus and fewer than
// OverbookLimit assigned tasks. Returns nil if none qualify.
func (s *RandomScheduler) pick(candidates []*graph.Worker, requiredCPUs int) *graph.Worker {
	eligible := make([]*graph.Worker, 0, len(candidates))
	for _, w := range candidates {
		if w.Resources.CPUs < requiredCPUs {
			continue
		}
		if len(w.AssignedTasks) >= OverbookLimit {
			continue
		}
		eligible = append(eligible, w)
	}
	if len(eligible) == 0 {
		return nil
	}
	if s.Deterministic {
		return eligible[0]
	}
	return eligible[s.rng.Intn(len(eligible))]
}

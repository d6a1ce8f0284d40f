/*
Package scheduler maps ready tasks and the objects they depend on onto
workers.

It is invoked synchronously from pkg/driver's event loop whenever the
accumulated UpdateSet is non-empty (spec.md §4.3/§4.5's run_scheduler):
never on its own timer, never concurrently with graph mutation. A single
call to Schedule either places every pending task and returns, or leaves a
task's Scheduled field nil when no worker can currently host it — that
task is revisited the next time it reappears in an UpdateSet.

# Update Set

UpdateSet accumulates the deltas driver mutations produce between
scheduler runs: newly created tasks and objects, tasks whose state or
assignment changed, and objects whose placement changed together with the
workers that reported the change. The driver grows one UpdateSet across a
burst of mutations, hands it to Schedule, then discards it — IsEmpty is
the gate that decides whether a scheduler run happens at all this tick.

# Scheduler contract

	type Scheduler interface {
		Schedule(g *graph.Graph, updates *UpdateSet) Changed
	}

Schedule returns a Changed value: the workers each touched object's
scheduled set grew into, and the tasks whose scheduled field it set. This
is the entire contract between a scheduling policy and the driver's
placement reconciliation — nothing past Changed should assume
RandomScheduler specifics, so a smarter policy can be swapped in later.

# RandomScheduler

The baseline policy picks, for each ready unscheduled task in updates, a
worker at random from those whose total cpus cover the task's request and
that have fewer than OverbookLimit assigned tasks; cpus already taken by
tasks assigned there are not subtracted. It co-schedules every input
object of the task, finished or not, onto the same worker, anticipating
the fetch the worker will need to do before it can start the task. No ordering is promised
across tasks in the same UpdateSet; distribute_tasks, not Schedule, is
where FIFO fairness is applied via an insertion-ordered set.

Deterministic mode (RAIN_TEST_MODE) replaces the random pick with the
lowest-sorting eligible worker, so tests can assert exact placement
without stubbing the RNG.

# See Also

  - pkg/graph — the entities Schedule reads and mutates
  - pkg/driver — the only caller; owns run_scheduler/distribute_tasks
*/
package scheduler

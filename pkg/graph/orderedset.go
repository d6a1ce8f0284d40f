package graph

import "github.com/cuemby/rain/pkg/ids"

// orderedTaskSet is an insertion-ordered set of tasks, keyed by TaskID.
// distribute_tasks (spec.md §4.5) pops from scheduled_ready_tasks in FIFO
// submission order, which a plain map cannot guarantee — this is the
// "insertion-ordered set" spec.md §4.5 recommends rather than leaves a
// known suboptimality.
type orderedTaskSet struct {
	order []ids.TaskID
	index map[ids.TaskID]int
}

func newOrderedTaskSet() *orderedTaskSet {
	return &orderedTaskSet{index: make(map[ids.TaskID]int)}
}

func (s *orderedTaskSet) Insert(id ids.TaskID) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = len(s.order)
	s.order = append(s.order, id)
}

func (s *orderedTaskSet) Remove(id ids.TaskID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	delete(s.index, id)
	s.order = append(s.order[:i], s.order[i+1:]...)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

func (s *orderedTaskSet) Contains(id ids.TaskID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *orderedTaskSet) Len() int { return len(s.order) }

// Oldest returns the first (earliest-inserted) member, and true if any exist.
func (s *orderedTaskSet) Oldest() (ids.TaskID, bool) {
	if len(s.order) == 0 {
		return ids.TaskID{}, false
	}
	return s.order[0], true
}

// DrainAll empties the set and returns its former members in insertion
// order.
func (s *orderedTaskSet) DrainAll() []ids.TaskID {
	out := s.order
	s.order = nil
	s.index = make(map[ids.TaskID]int)
	return out
}

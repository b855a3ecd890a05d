package engine

import (
	"sort"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

// Sort returns a dependency-respecting execution order for the given
// tasks using Kahn's algorithm, or a *domain.CycleError naming every
// task that could not be ordered.
//
// The adjacency structure is built fresh per call, indexed by position
// in the input. Dependencies referencing tasks outside the input set are
// treated as externally satisfied and contribute no in-degree; the
// Runner's live dependency check gates those at execution time.
//
// Ties between simultaneously ready tasks break by task ID, so the order
// is deterministic for a fixed input.
func Sort(tasks []*domain.Task) ([]string, error) {
	index := make(map[string]int, len(tasks))
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		ids[i] = t.ID
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			j, ok := index[dep]
			if !ok {
				continue
			}
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	ready := make([]string, 0, len(tasks))
	for i, t := range tasks {
		if indegree[i] == 0 {
			ready = append(ready, t.ID)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(tasks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, di := range dependents[index[id]] {
			indegree[di]--
			if indegree[di] == 0 {
				pos := sort.SearchStrings(ready, ids[di])
				ready = append(ready, "")
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = ids[di]
			}
		}
	}

	if len(order) != len(tasks) {
		emitted := make(map[string]struct{}, len(order))
		for _, id := range order {
			emitted[id] = struct{}{}
		}
		remaining := make([]string, 0, len(tasks)-len(order))
		for _, id := range ids {
			if _, ok := emitted[id]; !ok {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &domain.CycleError{Remaining: remaining}
	}

	return order, nil
}

package compose

import (
	"fmt"
	"sort"
	"strings"
)

// CyclicDependencyError reports a dependency graph with no topological
// order. Remaining holds the group indices involved in (or downstream of)
// the cycle.
type CyclicDependencyError struct {
	Remaining []int
}

func (e *CyclicDependencyError) Error() string {
	nodes := make([]string, len(e.Remaining))
	for i, n := range e.Remaining {
		nodes[i] = fmt.Sprintf("%d", n)
	}
	return "circular dependency between groups " + strings.Join(nodes, ", ")
}

// Order computes a linear application order for the groups such that every
// group's dependencies precede it. Kahn's algorithm with a lowest-index
// tie-break keeps the order deterministic across runs with identical input.
func Order(groups []ChangeGroup) ([]int, error) {
	n := len(groups)
	inDegree := make([]int, n)
	adjacency := make([][]int, n)
	for i, group := range groups {
		for _, dep := range group.Dependencies {
			if dep < 0 || dep >= n {
				return nil, fmt.Errorf("group %d: invalid dependency index %d (have %d groups)", i, dep, n)
			}
			adjacency[dep] = append(adjacency[dep], i)
			inDegree[i]++
		}
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var remaining []int
			for i := 0; i < n; i++ {
				if !done[i] {
					remaining = append(remaining, i)
				}
			}
			sort.Ints(remaining)
			return nil, &CyclicDependencyError{Remaining: remaining}
		}
		done[next] = true
		order = append(order, next)
		for _, dependent := range adjacency[next] {
			inDegree[dependent]--
		}
	}
	return order, nil
}

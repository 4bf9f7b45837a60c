package dag

import (
	"container/heap"
	"slices"
)

// readyQueue hands out runnable actions lowest emission index first, which
// keeps the topological order tied to manifest order.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }

func (q *readyQueue) Pop() any {
	last := (*q)[len(*q)-1]
	*q = (*q)[:len(*q)-1]
	return last
}

// sortActions runs Kahn's algorithm over action indices. complete is false
// when some actions never became ready, i.e. the graph has a cycle.
func (g *BuildGraph) sortActions() (order []int, complete bool) {
	pending := slices.Clone(g.indeg)
	q := &readyQueue{}
	for idx, n := range pending {
		if n == 0 {
			*q = append(*q, idx)
		}
	}
	heap.Init(q)

	order = make([]int, 0, len(g.actions))
	for q.Len() > 0 {
		idx := heap.Pop(q).(int)
		order = append(order, idx)
		for _, consumer := range g.outgoing[idx] {
			if pending[consumer]--; pending[consumer] == 0 {
				heap.Push(q, consumer)
			}
		}
	}
	return order, len(order) == len(g.actions)
}

func (g *BuildGraph) validateAcyclic() error {
	if _, ok := g.sortActions(); ok {
		return nil
	}
	return cycleError(g.cycleWitness())
}

// cycleWitness walks the graph depth first from the lowest index and returns
// the first cycle it closes, as output paths ending where they started,
// e.g. ["a.o", "b.o", "a.o"].
func (g *BuildGraph) cycleWitness() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(g.actions))

	type frame struct{ node, next int }
	for start := range g.actions {
		if state[start] != unvisited {
			continue
		}
		path := []frame{{node: start}}
		state[start] = onPath
		for len(path) > 0 {
			top := &path[len(path)-1]
			edges := g.outgoing[top.node]
			if top.next == len(edges) {
				state[top.node] = done
				path = path[:len(path)-1]
				continue
			}
			succ := edges[top.next]
			top.next++
			switch state[succ] {
			case unvisited:
				state[succ] = onPath
				path = append(path, frame{node: succ})
			case onPath:
				var witness []string
				for i := len(path) - 1; i >= 0; i-- {
					if path[i].node == succ {
						for _, f := range path[i:] {
							witness = append(witness, g.actions[f.node].Output)
						}
						break
					}
				}
				return append(witness, g.actions[succ].Output)
			}
		}
	}
	return nil
}

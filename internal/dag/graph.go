package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

type edgeIndex struct {
	from int
	to   int
}

// BuildGraph is an immutable, validated DAG of build actions.
//
// It is safe for concurrent read access.
type BuildGraph struct {
	actions  []Action      // emission order
	byOutput map[string]int // primary and implicit outputs -> action index

	edges []edgeIndex // sorted

	outgoing [][]int // by action index, sorted ascending
	incoming [][]int // by action index, sorted ascending
	indeg    []int

	goal int
	hash GraphHash
}

// NewBuildGraph builds and validates a BuildGraph.
//
// Edges are derived from the actions: whenever an input or implicit dependency
// of one action is an output of another, the producer precedes the consumer.
//
// Validation runs immediately and rejects:
//   - an empty action list or unknown rule
//   - empty output paths
//   - any output path written by more than one action
//   - an action consuming its own output
//   - a default goal that is not the primary output of some action
//   - any cycle (direct or indirect)
func NewBuildGraph(actions []Action, goal string) (*BuildGraph, error) {
	if len(actions) == 0 {
		return nil, invalidf("no actions")
	}

	g := &BuildGraph{
		actions:  make([]Action, 0, len(actions)),
		byOutput: make(map[string]int, len(actions)),
	}

	for i, a := range actions {
		if !a.Rule.Valid() {
			return nil, invalidf("action #%d: unknown rule %q", i, a.Rule)
		}
		if a.Output == "" {
			return nil, invalidf("action #%d (%s): output is required", i, a.Rule)
		}
		for _, out := range append([]string{a.Output}, a.ImplicitOutputs...) {
			if out == "" {
				return nil, invalidf("action #%d (%s): empty implicit output", i, a.Rule)
			}
			if prev, exists := g.byOutput[out]; exists {
				return nil, duplicateOutput(out, prev, i)
			}
			g.byOutput[out] = i
		}
		g.actions = append(g.actions, a.clone())
	}

	goalIdx, ok := g.byOutput[goal]
	if !ok || g.actions[goalIdx].Output != goal {
		return nil, invalidf("default goal %q is not the output of any action", goal)
	}
	g.goal = goalIdx

	seen := make(map[edgeIndex]struct{})
	for to, a := range g.actions {
		for _, dep := range a.Deps() {
			from, produced := g.byOutput[dep]
			if !produced {
				continue
			}
			if from == to {
				return nil, invalidf("action %q consumes its own output %q", a.Output, dep)
			}
			pair := edgeIndex{from: from, to: to}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			g.edges = append(g.edges, pair)
		}
	}
	sort.Slice(g.edges, func(i, j int) bool {
		a, b := g.edges[i], g.edges[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	n := len(g.actions)
	g.outgoing = make([][]int, n)
	g.incoming = make([][]int, n)
	g.indeg = make([]int, n)
	for _, e := range g.edges {
		g.outgoing[e.from] = append(g.outgoing[e.from], e.to)
		g.incoming[e.to] = append(g.incoming[e.to], e.from)
		g.indeg[e.to]++
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}

	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *BuildGraph) Hash() GraphHash { return g.hash }

// Len returns the number of actions.
func (g *BuildGraph) Len() int { return len(g.actions) }

// Actions returns copies of the actions in emission order.
func (g *BuildGraph) Actions() []Action {
	out := make([]Action, len(g.actions))
	for i, a := range g.actions {
		out[i] = a.clone()
	}
	return out
}

// Producer returns the action writing path, either as its primary output or as
// an implicit output.
func (g *BuildGraph) Producer(path string) (Action, bool) {
	idx, ok := g.byOutput[path]
	if !ok {
		return Action{}, false
	}
	return g.actions[idx].clone(), true
}

// Goal returns the default goal action.
func (g *BuildGraph) Goal() Action { return g.actions[g.goal].clone() }

// Edges returns the dependency edges as (From, To) output pairs in canonical order.
func (g *BuildGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.actions[e.from].Output, To: g.actions[e.to].Output})
	}
	return out
}

// TopologicalOrder returns a deterministic topological ordering of action
// outputs. Among ready actions, emission order wins.
//
// Since the graph is validated on construction, this method must not fail.
func (g *BuildGraph) TopologicalOrder() []string {
	order, _ := g.sortActions()
	names := make([]string, 0, len(order))
	for _, idx := range order {
		names = append(names, g.actions[idx].Output)
	}
	return names
}

// Dependencies returns every path the action producing output transitively
// depends on: source files, intermediate artifacts and external inputs alike.
// The result is sorted and contains no duplicates.
func (g *BuildGraph) Dependencies(output string) ([]string, bool) {
	start, ok := g.byOutput[output]
	if !ok {
		return nil, false
	}

	paths := make(map[string]struct{})
	visited := make([]bool, len(g.actions))
	stack := []int{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[u] {
			continue
		}
		visited[u] = true
		for _, dep := range g.actions[u].Deps() {
			paths[dep] = struct{}{}
		}
		stack = append(stack, g.incoming[u]...)
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, true
}

func (g *BuildGraph) computeGraphHash() GraphHash {
	h := sha256.New()

	writeCount(h, len(g.actions))
	for _, a := range g.actions {
		writeField(h, []byte(a.Rule))
		writeField(h, []byte(a.Output))
		writeList(h, a.Inputs)
		writeList(h, a.Implicit)
		writeList(h, a.ImplicitOutputs)

		keys := make([]string, 0, len(a.Vars))
		for k := range a.Vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeCount(h, len(keys))
		for _, k := range keys {
			writeField(h, []byte(k))
			writeField(h, []byte(a.Vars[k]))
		}
	}

	writeCount(h, len(g.edges))
	for _, e := range g.edges {
		writeCount(h, e.from)
		writeCount(h, e.to)
	}

	writeField(h, []byte(g.actions[g.goal].Output))

	return GraphHash(hex.EncodeToString(h.Sum(nil)))
}

// writeField writes data with an 8-byte big-endian length prefix so that
// adjacent fields can never be confused.
func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

func writeList(h hash.Hash, items []string) {
	writeCount(h, len(items))
	for _, s := range items {
		writeField(h, []byte(s))
	}
}

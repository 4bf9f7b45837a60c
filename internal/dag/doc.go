// Package dag defines the deterministic build graph that romforge hands to an
// external build executor.
//
// A BuildGraph is an immutable arena of actions indexed by output path:
//   - Actions keep the order in which they were emitted (linker placement
//     depends on it).
//   - Edges are derived, never declared: an action depends on whichever action
//     produces one of its inputs.
//   - Exactly one action is the default goal.
//
// The graph identity (GraphHash) is computed from action content, emission
// order and edge structure, so two compilations of the same manifest can be
// compared structurally.
package dag

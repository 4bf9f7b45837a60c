package dag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Description is the serializable form of a BuildGraph. Two graphs are
// structurally identical exactly when their descriptions are equal.
type Description struct {
	Hash    GraphHash `json:"hash"`
	Default string    `json:"default"`
	Actions []Action  `json:"actions"`
	Edges   []Edge    `json:"edges"`
}

// Description returns the graph as a plain value.
func (g *BuildGraph) Description() Description {
	return Description{
		Hash:    g.hash,
		Default: g.actions[g.goal].Output,
		Actions: g.Actions(),
		Edges:   g.Edges(),
	}
}

// MarshalIndent encodes the description as indented JSON with a trailing newline.
func (d Description) MarshalIndent() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Graph rebuilds the BuildGraph and checks that the recorded hash and edges
// still match what the actions imply.
func (d Description) Graph() (*BuildGraph, error) {
	g, err := NewBuildGraph(d.Actions, d.Default)
	if err != nil {
		return nil, err
	}
	if d.Hash != "" && d.Hash != g.Hash() {
		return nil, invalidf("recorded hash %s does not match computed hash %s", d.Hash, g.Hash())
	}
	edges := g.Edges()
	if len(edges) != len(d.Edges) {
		return nil, invalidf("recorded %d edges, actions imply %d", len(d.Edges), len(edges))
	}
	for i := range edges {
		if edges[i] != d.Edges[i] {
			return nil, invalidf("recorded edge %d (%s -> %s) does not match %s -> %s",
				i, d.Edges[i].From, d.Edges[i].To, edges[i].From, edges[i].To)
		}
	}
	return g, nil
}

// LoadDescription reads and parses a graph description written by MarshalIndent.
//
// The loader is strict:
//   - Disallows unknown fields (to avoid silent divergence).
//   - Rejects trailing data after the JSON value.
func LoadDescription(path string) (Description, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read graph description: %w", err)
	}
	var d Description
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Description{}, fmt.Errorf("parse graph description: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return Description{}, fmt.Errorf("parse graph description: trailing data")
		}
		return Description{}, fmt.Errorf("parse graph description: %w", err)
	}
	if len(d.Actions) == 0 {
		return Description{}, fmt.Errorf("parse graph description: no actions")
	}
	return d, nil
}

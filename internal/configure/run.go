package configure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"romforge/internal/config"
	"romforge/internal/ctxlog"
	"romforge/internal/dag"
	"romforge/internal/fsutil"
	"romforge/internal/ninja"
	"romforge/internal/segment"
)

// Result describes a completed configure pass.
type Result struct {
	Graph     *dag.BuildGraph
	NinjaFile string
	GraphFile string

	// PreviousHash is the hash recorded by the last configure pass, if any.
	PreviousHash dag.GraphHash
}

// Changed reports whether the graph differs from the previously recorded one.
// A first configure counts as a change.
func (r *Result) Changed() bool { return r.PreviousHash != r.Graph.Hash() }

// OptionsFromConfig derives compile options from the project configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Root:             cfg.Root,
		LinkScript:       cfg.LinkScript,
		ChecksumManifest: cfg.ChecksumManifest,
		AutoSymbolTables: cfg.AutoSymbolTables,
		Elf:              cfg.Elf(),
		Map:              cfg.Map(),
		Rom:              cfg.Rom(),
		Sentinel:         cfg.Sentinel(),
	}
}

// Plan loads the segment manifest and compiles the build graph without
// writing anything.
//
// The base ROM is checked first: without it the decomposition that produced
// the manifest cannot be trusted, so nothing else is read.
func Plan(ctx context.Context, cfg config.Config) (*dag.BuildGraph, error) {
	if err := requireFile(cfg.Root, "base ROM", cfg.BaseROM); err != nil {
		return nil, err
	}

	manifest, err := segment.Load(cfg.Resolve(cfg.Manifest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{What: "segment manifest", Path: cfg.Manifest}
		}
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Segment manifest loaded", "path", cfg.Manifest, "segments", len(manifest))

	return Compile(ctx, manifest, OptionsFromConfig(cfg))
}

// Run plans the graph and writes the ninja build file and the JSON graph
// description.
//
// Both files are written atomically and only after the whole graph has been
// compiled and rendered, so a failed run never leaves a partial graph behind.
func Run(ctx context.Context, cfg config.Config) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := Plan(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ninjaBytes, err := ninja.Render(g, cfg.Toolchain)
	if err != nil {
		return nil, err
	}
	descBytes, err := g.Description().MarshalIndent()
	if err != nil {
		return nil, fmt.Errorf("encode graph description: %w", err)
	}

	res := &Result{
		Graph:     g,
		NinjaFile: cfg.Resolve(cfg.NinjaFile),
		GraphFile: cfg.Resolve(cfg.GraphFile()),
	}

	if prev, err := dag.LoadDescription(res.GraphFile); err == nil {
		res.PreviousHash = prev.Hash
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Ignoring unreadable previous graph description", "path", res.GraphFile, "error", err)
	}

	// graph.json records what build.ninja holds, so it is written last.
	if err := fsutil.WriteFileAtomic(res.NinjaFile, ninjaBytes, 0o644); err != nil {
		return nil, fmt.Errorf("write ninja file: %w", err)
	}
	if err := fsutil.WriteFileAtomic(res.GraphFile, descBytes, 0o644); err != nil {
		return nil, fmt.Errorf("write graph description: %w", err)
	}

	logger.Info("Build configured",
		"ninja_file", cfg.NinjaFile,
		"actions", g.Len(),
		"hash", g.Hash().String(),
		"changed", res.Changed(),
	)
	return res, nil
}

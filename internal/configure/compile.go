// Package configure compiles a segment manifest into the build graph that
// reconstructs and verifies the ROM image.
package configure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"romforge/internal/ctxlog"
	"romforge/internal/dag"
	"romforge/internal/segment"
)

// Options names the fixed inputs and outputs of the link/extract/verify tail
// of the graph. Relative paths are interpreted against Root when checking the
// filesystem and are emitted into the graph unchanged.
type Options struct {
	Root string

	LinkScript       string
	ChecksumManifest string

	// AutoSymbolTables are glob patterns (doublestar syntax, relative to Root)
	// for toolchain-generated symbol tables the link depends on. Patterns that
	// match nothing are ignored.
	AutoSymbolTables []string

	Elf      string
	Map      string
	Rom      string
	Sentinel string
}

// Compile turns the manifest into a validated build graph whose default goal
// is the verify action's sentinel.
//
// Manifest order is preserved in the emitted actions and in the link's object
// list. The link script and checksum manifest must exist, otherwise a
// *ConfigurationError is returned; a buildable descriptor without a usable
// source yields a *segment.ManifestError.
func Compile(ctx context.Context, manifest []segment.Descriptor, opts Options) (*dag.BuildGraph, error) {
	logger := ctxlog.FromContext(ctx)

	if err := opts.check(); err != nil {
		return nil, err
	}

	actions := make([]dag.Action, 0, len(manifest)+3)
	var buildSet []string
	producedBy := make(map[string]int, len(manifest))

	for i, d := range manifest {
		class, err := segment.Classify(d)
		if err != nil {
			var me *segment.ManifestError
			if errors.As(err, &me) {
				me.Index = i
			}
			return nil, err
		}

		var rule dag.Rule
		switch class {
		case segment.ClassSkip:
			logger.Debug("Skipping segment", "index", i, "segment", d.Label(), "type", d.Kind)
			continue
		case segment.ClassCompile:
			rule = dag.RuleCompile
		case segment.ClassEmbed:
			rule = dag.RuleEmbed
		default:
			return nil, &segment.ManifestError{Index: i, Segment: d.Label(), Msg: fmt.Sprintf("unhandled segment class %v", class)}
		}

		if prev, dup := producedBy[d.ObjectPath]; dup {
			return nil, &segment.ManifestError{
				Index:   i,
				Segment: d.Label(),
				Msg:     fmt.Sprintf("object %q is already produced by segment #%d", d.ObjectPath, prev),
			}
		}
		producedBy[d.ObjectPath] = i

		actions = append(actions, dag.Action{
			Rule:   rule,
			Inputs: []string{d.SourcePaths[0]},
			Output: d.ObjectPath,
		})
		buildSet = append(buildSet, d.ObjectPath)
	}
	logger.Debug("Segments classified", "segments", len(manifest), "objects", len(buildSet))

	tables, err := opts.symbolTables()
	if err != nil {
		return nil, err
	}

	implicit := make([]string, 0, len(buildSet)+len(tables))
	implicit = append(implicit, buildSet...)
	implicit = append(implicit, tables...)

	actions = append(actions,
		dag.Action{
			Rule:            dag.RuleLink,
			Inputs:          []string{opts.LinkScript},
			Implicit:        implicit,
			Output:          opts.Elf,
			ImplicitOutputs: []string{opts.Map},
			Vars:            map[string]string{"mapfile": opts.Map},
		},
		dag.Action{
			Rule:   dag.RuleExtract,
			Inputs: []string{opts.Elf},
			Output: opts.Rom,
		},
		dag.Action{
			Rule:     dag.RuleVerify,
			Inputs:   []string{opts.ChecksumManifest},
			Implicit: []string{opts.Rom},
			Output:   opts.Sentinel,
		},
	)

	g, err := dag.NewBuildGraph(actions, opts.Sentinel)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	logger.Debug("Build graph compiled", "actions", g.Len(), "hash", g.Hash().String())
	return g, nil
}

func (o Options) check() error {
	for _, out := range []struct{ what, path string }{
		{"ELF output", o.Elf},
		{"map output", o.Map},
		{"ROM output", o.Rom},
		{"sentinel output", o.Sentinel},
	} {
		if out.path == "" {
			return &ConfigurationError{What: out.what, Path: out.path, Err: errors.New("path is required")}
		}
	}
	if err := requireFile(o.Root, "link script", o.LinkScript); err != nil {
		return err
	}
	return requireFile(o.Root, "checksum manifest", o.ChecksumManifest)
}

// symbolTables expands the auto-generated symbol table patterns into a sorted,
// duplicate-free list of existing files.
func (o Options) symbolTables() ([]string, error) {
	root := o.Root
	if root == "" {
		root = "."
	}
	fsys := os.DirFS(root)

	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range o.AutoSymbolTables {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, &ConfigurationError{What: "symbol table pattern", Path: pattern, Err: err}
		}
		for _, m := range matches {
			p := filepath.FromSlash(m)
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func requireFile(root, what, path string) error {
	if path == "" {
		return &ConfigurationError{What: what, Path: path, Err: errors.New("path is required")}
	}
	full := path
	if !filepath.IsAbs(full) && root != "" {
		full = filepath.Join(root, path)
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigurationError{What: what, Path: path}
		}
		return &ConfigurationError{What: what, Path: path, Err: err}
	}
	if info.IsDir() {
		return &ConfigurationError{What: what, Path: path, Err: errors.New("is a directory")}
	}
	return nil
}

package configure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romforge/internal/dag"
	"romforge/internal/segment"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, nil, 0o644))
}

func testOptions(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	touch(t, root, "game.ld")
	touch(t, root, "checksum.sha1")
	touch(t, root, "undefined_syms_auto.txt")
	touch(t, root, "undefined_funcs_auto.txt")
	return Options{
		Root:             root,
		LinkScript:       "game.ld",
		ChecksumManifest: "checksum.sha1",
		AutoSymbolTables: []string{"undefined_*_auto.txt", "undefined_syms_auto.txt", "missing_auto.txt"},
		Elf:              "build/game.elf",
		Map:              "build/game.map",
		Rom:              "build/game.z64",
		Sentinel:         "build/game.ok",
	}
}

func testManifest() []segment.Descriptor {
	return []segment.Descriptor{
		{Name: "header", Kind: "header", SourcePaths: []string{"asm/header.s"}, ObjectPath: "build/asm/header.s.o"},
		{Name: "boot", Kind: "bin", SourcePaths: []string{"assets/boot.bin"}, ObjectPath: "build/assets/boot.bin.o"},
		{Name: "main", Kind: ".main"},
		{Name: "main.data", Kind: ".data", SourcePaths: []string{"asm/data/main.data.s"}, ObjectPath: "build/asm/data/main.data.s.o"},
		{Name: "main.text", Kind: "asm", SourcePaths: []string{"asm/main.s"}, ObjectPath: "build/asm/main.s.o"},
		{Name: "pad", Kind: "pad", SourcePaths: []string{"asm/pad.s"}},
		{Name: "font", Kind: "bin", SourcePaths: []string{"assets/font.bin"}, ObjectPath: "build/assets/font.bin.o"},
	}
}

func TestCompile_EmitsOneActionPerBuildableSegment(t *testing.T) {
	opts := testOptions(t)
	g, err := Compile(context.Background(), testManifest(), opts)
	require.NoError(t, err)

	actions := g.Actions()
	require.Len(t, actions, 7)

	wantObjects := []struct {
		rule dag.Rule
		src  string
		obj  string
	}{
		{dag.RuleCompile, "asm/header.s", "build/asm/header.s.o"},
		{dag.RuleEmbed, "assets/boot.bin", "build/assets/boot.bin.o"},
		{dag.RuleCompile, "asm/main.s", "build/asm/main.s.o"},
		{dag.RuleEmbed, "assets/font.bin", "build/assets/font.bin.o"},
	}
	for i, w := range wantObjects {
		assert.Equal(t, w.rule, actions[i].Rule)
		assert.Equal(t, []string{w.src}, actions[i].Inputs)
		assert.Equal(t, w.obj, actions[i].Output)
	}

	seen := map[string]bool{}
	for _, a := range actions {
		assert.False(t, seen[a.Output], "duplicate output %s", a.Output)
		seen[a.Output] = true
	}
	assert.False(t, seen["build/asm/data/main.data.s.o"], "container segments must not be built")

	link := actions[4]
	assert.Equal(t, dag.RuleLink, link.Rule)
	assert.Equal(t, []string{"game.ld"}, link.Inputs)
	assert.Equal(t, []string{
		"build/asm/header.s.o",
		"build/assets/boot.bin.o",
		"build/asm/main.s.o",
		"build/assets/font.bin.o",
		"undefined_funcs_auto.txt",
		"undefined_syms_auto.txt",
	}, link.Implicit)
	assert.Equal(t, []string{"build/game.map"}, link.ImplicitOutputs)
	assert.Equal(t, "build/game.map", link.Vars["mapfile"])

	assert.Equal(t, dag.Action{Rule: dag.RuleExtract, Inputs: []string{"build/game.elf"}, Output: "build/game.z64"}, actions[5])
	assert.Equal(t, dag.Action{
		Rule:     dag.RuleVerify,
		Inputs:   []string{"checksum.sha1"},
		Implicit: []string{"build/game.z64"},
		Output:   "build/game.ok",
	}, actions[6])
	assert.Equal(t, "build/game.ok", g.Goal().Output)
}

func TestCompile_GoalDependsOnEveryObject(t *testing.T) {
	opts := testOptions(t)
	g, err := Compile(context.Background(), testManifest(), opts)
	require.NoError(t, err)

	deps, ok := g.Dependencies(g.Goal().Output)
	require.True(t, ok)
	for _, want := range []string{
		"build/asm/header.s.o", "build/assets/boot.bin.o", "build/asm/main.s.o", "build/assets/font.bin.o",
		"game.ld", "checksum.sha1",
	} {
		assert.Contains(t, deps, want)
	}

	// Dropping one compilable segment must shrink the goal's dependency set.
	trimmed := testManifest()
	trimmed = append(trimmed[:4], trimmed[5:]...)
	g2, err := Compile(context.Background(), trimmed, opts)
	require.NoError(t, err)
	deps2, _ := g2.Dependencies(g2.Goal().Output)
	assert.NotContains(t, deps2, "build/asm/main.s.o")
	assert.NotEqual(t, deps, deps2)
	assert.NotEqual(t, g.Hash(), g2.Hash())
}

func TestCompile_IsDeterministic(t *testing.T) {
	opts := testOptions(t)
	g1, err := Compile(context.Background(), testManifest(), opts)
	require.NoError(t, err)
	g2, err := Compile(context.Background(), testManifest(), opts)
	require.NoError(t, err)

	assert.Equal(t, g1.Hash(), g2.Hash())
	if !reflect.DeepEqual(g1.Description(), g2.Description()) {
		t.Fatalf("expected structurally identical graphs")
	}
	assert.Equal(t, g1.TopologicalOrder(), g2.TopologicalOrder())
}

func TestCompile_ObjectsHaveNoEdgesBetweenThem(t *testing.T) {
	g, err := Compile(context.Background(), testManifest(), testOptions(t))
	require.NoError(t, err)
	for _, e := range g.Edges() {
		from, _ := g.Producer(e.From)
		to, _ := g.Producer(e.To)
		if from.Rule == dag.RuleCompile || from.Rule == dag.RuleEmbed {
			assert.Equal(t, dag.RuleLink, to.Rule, "object %s must only feed the link", e.From)
		}
	}
}

func TestCompile_ManifestErrors(t *testing.T) {
	opts := testOptions(t)

	missingSource := testManifest()
	missingSource[4].SourcePaths = nil
	_, err := Compile(context.Background(), missingSource, opts)
	var me *segment.ManifestError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, 4, me.Index)
	assert.Equal(t, "main.text", me.Segment)

	duplicate := testManifest()
	duplicate[6].ObjectPath = duplicate[1].ObjectPath
	_, err = Compile(context.Background(), duplicate, opts)
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, 6, me.Index)
	assert.ErrorIs(t, err, segment.ErrManifest)
}

func TestCompile_ConfigurationErrors(t *testing.T) {
	cases := map[string]func(*Options){
		"missing link script":       func(o *Options) { o.LinkScript = "other.ld" },
		"missing checksum manifest": func(o *Options) { o.ChecksumManifest = "checksum.md5" },
		"link script is directory":  func(o *Options) { o.LinkScript = "." },
		"no rom output":             func(o *Options) { o.Rom = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := testOptions(t)
			mutate(&opts)
			_, err := Compile(context.Background(), testManifest(), opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestCompile_EmptyManifestStillLinks(t *testing.T) {
	g, err := Compile(context.Background(), nil, testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

package configure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romforge/internal/config"
	"romforge/internal/dag"
)

const testSegments = `segments:
  - name: header
    type: header
    src_paths: [asm/header.s]
    object_path: build/asm/header.s.o
  - name: main
    type: .main
    src_paths: []
  - name: main.text
    type: asm
    src_paths: [asm/main.s]
    object_path: build/asm/main.s.o
`

func testProject(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	touch(t, cfg.Root, cfg.BaseROM)
	touch(t, cfg.Root, cfg.LinkScript)
	touch(t, cfg.Root, cfg.ChecksumManifest)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, cfg.Manifest), []byte(testSegments), 0o644))
	return cfg
}

func TestRun_WritesNinjaAndGraphDescription(t *testing.T) {
	cfg := testProject(t)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Changed(), "first configure is a change")

	ninjaBytes, err := os.ReadFile(filepath.Join(cfg.Root, "build.ninja"))
	require.NoError(t, err)
	assert.Contains(t, string(ninjaBytes), "default build/game.ok")

	d, err := dag.LoadDescription(filepath.Join(cfg.Root, "build", "graph.json"))
	require.NoError(t, err)
	assert.Equal(t, res.Graph.Hash(), d.Hash)
	_, err = d.Graph()
	require.NoError(t, err)

	again, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, again.Changed(), "reconfiguring an unchanged project must not change the graph")

	ninjaAgain, err := os.ReadFile(filepath.Join(cfg.Root, "build.ninja"))
	require.NoError(t, err)
	assert.Equal(t, ninjaBytes, ninjaAgain)
}

func TestRun_MissingBaseROMWritesNothing(t *testing.T) {
	cfg := testProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Root, cfg.BaseROM)))

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, statErr := os.Stat(filepath.Join(cfg.Root, "build.ninja"))
	assert.True(t, os.IsNotExist(statErr), "no ninja file may exist after a failed configure")
	_, statErr = os.Stat(filepath.Join(cfg.Root, "build"))
	assert.True(t, os.IsNotExist(statErr), "no build directory may exist after a failed configure")
}

func TestRun_MissingManifestIsConfigurationError(t *testing.T) {
	cfg := testProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Root, cfg.Manifest)))

	_, err := Run(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRun_ManifestErrorLeavesPreviousGraphIntact(t *testing.T) {
	cfg := testProject(t)
	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(cfg.Root, "build.ninja"))
	require.NoError(t, err)

	broken := testSegments + "  - name: orphan\n    type: asm\n    object_path: build/orphan.o\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, cfg.Manifest), []byte(broken), 0o644))

	_, err = Run(context.Background(), cfg)
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(cfg.Root, "build.ninja"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_NinjaWriteFailureKeepsGraphDescription(t *testing.T) {
	cfg := testProject(t)
	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	graphFile := filepath.Join(cfg.Root, "build", "graph.json")
	before, err := os.ReadFile(graphFile)
	require.NoError(t, err)

	// Change the graph, then make build.ninja unreplaceable.
	touch(t, cfg.Root, "asm/extra.s")
	extended := testSegments + "  - name: extra\n    type: asm\n    src_paths: [asm/extra.s]\n    object_path: build/asm/extra.s.o\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, cfg.Manifest), []byte(extended), 0o644))
	ninjaFile := filepath.Join(cfg.Root, "build.ninja")
	require.NoError(t, os.Remove(ninjaFile))
	touch(t, cfg.Root, "build.ninja/blocker")

	_, err = Run(context.Background(), cfg)
	require.Error(t, err)

	after, err := os.ReadFile(graphFile)
	require.NoError(t, err)
	assert.Equal(t, before, after, "graph.json must not describe a graph that was never written to build.ninja")
}

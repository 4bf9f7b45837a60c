package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "romforge.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `
basename: papermario
build_dir: out
toolchain:
  cross: mips64-elf-
diff:
  count: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "papermario", cfg.Basename)
	assert.Equal(t, "papermario.ld", cfg.LinkScript, "linker script follows basename")
	assert.Equal(t, "mips64-elf-", cfg.Toolchain.Cross)
	assert.Equal(t, "-EB -march=vr4300 -mtune=vr4300 -G 0", cfg.Toolchain.ASFlags, "unset fields keep defaults")
	assert.Equal(t, 12, cfg.Diff.Count)

	assert.Equal(t, filepath.Join("out", "papermario.z64"), cfg.Rom())
	assert.Equal(t, filepath.Join("out", "papermario.map"), cfg.Map())
	assert.Equal(t, filepath.Join("expected", "out", "papermario.z64"), cfg.ExpectedRom())
	assert.Equal(t, filepath.Join(dir, "out", "papermario.ok"), cfg.Resolve(cfg.Sentinel()))
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "basenme: typo\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "game", cfg.Basename)
	assert.Equal(t, 5, cfg.Diff.Count)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "basename: game\n")

	t.Setenv("ROMFORGE_BASENAME", "sm64")
	t.Setenv("ROMFORGE_DIFF_COUNT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sm64", cfg.Basename)
	assert.Equal(t, 3, cfg.Diff.Count)

	t.Setenv("ROMFORGE_DIFF_COUNT", "many")
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoad_DotEnvNextToProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, "basename: game\n")
	writeFile(t, filepath.Join(dir, ".env"), "ROMFORGE_EXPECTED_DIR=reference\n")
	t.Cleanup(func() { _ = os.Unsetenv("ROMFORGE_EXPECTED_DIR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "reference", cfg.ExpectedDir)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Diff.Count = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Manifest = " "
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvironmentBasenameMovesLinkScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "build_dir: build\n")
	t.Setenv("ROMFORGE_BASENAME", "mario")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("build", "mario.z64"), cfg.Rom())
	assert.Equal(t, "mario.ld", cfg.LinkScript)
}

func TestLoad_ExplicitLinkScriptIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "linker_script: game.ld\n")
	t.Setenv("ROMFORGE_BASENAME", "mario")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mario", cfg.Basename)
	assert.Equal(t, "game.ld", cfg.LinkScript)
}

func TestValidate_RequiresToolchainCommands(t *testing.T) {
	cfg := Default()
	cfg.Toolchain.Verify = ""
	assert.ErrorContains(t, cfg.Validate(), "toolchain.verify")

	cfg = Default()
	cfg.Toolchain.Cross = "  "
	assert.ErrorContains(t, cfg.Validate(), "toolchain.cross")
}

func TestLoad_RejectsEmptyVerifyCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeFile(t, path, "toolchain:\n  verify: \"\"\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "toolchain.verify")
}

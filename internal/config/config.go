// Package config loads the romforge project file.
//
// Values come from three layers, later layers winning:
//  1. built-in defaults matching the conventional decomp project layout
//  2. the YAML project file (romforge.yaml)
//  3. ROMFORGE_* environment variables, including those from a .env file
//     next to the project file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the project file looked up when --config is not given.
const DefaultFile = "romforge.yaml"

// Config is the project configuration.
//
// All paths are relative to Root unless absolute. They are kept relative so
// the emitted build graph does not depend on where the project is checked out.
type Config struct {
	// Root is the directory containing the project file. Not read from YAML.
	Root string `yaml:"-"`

	Basename         string   `yaml:"basename"`
	BaseROM          string   `yaml:"baserom"`
	Manifest         string   `yaml:"manifest"`
	LinkScript       string   `yaml:"linker_script"`
	ChecksumManifest string   `yaml:"checksum"`
	BuildDir         string   `yaml:"build_dir"`
	ExpectedDir      string   `yaml:"expected_dir"`
	NinjaFile        string   `yaml:"ninja_file"`
	AutoSymbolTables []string `yaml:"auto_symbol_tables"`

	Toolchain Toolchain `yaml:"toolchain"`
	Diff      Diff      `yaml:"diff"`
}

// Toolchain holds the cross tools invoked by the generated build file.
type Toolchain struct {
	Cross    string `yaml:"cross"`
	Includes string `yaml:"includes"`
	Defines  string `yaml:"defines"`
	ASFlags  string `yaml:"as_flags"`
	// Verify is the command run by the verify action. $in is the checksum
	// manifest and $out the sentinel.
	Verify string `yaml:"verify"`
}

// Diff holds defaults for the diff command.
type Diff struct {
	Count int    `yaml:"count"`
	Color string `yaml:"color"`
}

// Default returns the configuration used when no project file exists.
func Default() Config {
	return Config{
		Root:             ".",
		Basename:         "game",
		BaseROM:          "baserom.z64",
		Manifest:         "segments.yaml",
		LinkScript:       "game.ld",
		ChecksumManifest: "checksum.sha1",
		BuildDir:         "build",
		ExpectedDir:      "expected",
		NinjaFile:        "build.ninja",
		AutoSymbolTables: []string{"undefined_funcs_auto.txt", "undefined_syms_auto.txt"},
		Toolchain: Toolchain{
			Cross:    "mips-linux-gnu-",
			Includes: "-I include",
			Defines:  "-D_FINALROM -DNDEBUG",
			ASFlags:  "-EB -march=vr4300 -mtune=vr4300 -G 0",
			Verify:   "romforge verify $in --touch $out",
		},
		Diff: Diff{Count: 5, Color: "auto"},
	}
}

// Load reads the project file at path. When path is empty the DefaultFile in
// the current directory is used, and its absence is not an error.
//
// Basename-derived defaults (linker script) follow a basename set in the file.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	cfg.Root = filepath.Dir(abs)

	pinnedLinkScript := false
	b, err := os.ReadFile(abs)
	switch {
	case err == nil:
		if pinnedLinkScript, err = decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := loadDotEnv(cfg.Root); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if !pinnedLinkScript {
		cfg.LinkScript = cfg.Basename + ".ld"
	}
	return cfg, cfg.Validate()
}

// decode overlays the YAML document b onto cfg. It reports whether the file
// sets linker_script itself; otherwise the script follows the basename.
func decode(b []byte, cfg *Config) (pinnedLinkScript bool, err error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty file leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	var keys struct {
		LinkScript *string `yaml:"linker_script"`
	}
	if err := yaml.Unmarshal(b, &keys); err != nil {
		return false, err
	}
	return keys.LinkScript != nil, nil
}

func loadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays ROMFORGE_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("ROMFORGE_BASENAME", &c.Basename)
	set("ROMFORGE_BASEROM", &c.BaseROM)
	set("ROMFORGE_MANIFEST", &c.Manifest)
	set("ROMFORGE_BUILD_DIR", &c.BuildDir)
	set("ROMFORGE_EXPECTED_DIR", &c.ExpectedDir)
	set("ROMFORGE_CROSS", &c.Toolchain.Cross)

	if v := strings.TrimSpace(getenv("ROMFORGE_DIFF_COUNT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROMFORGE_DIFF_COUNT: %w", err)
		}
		c.Diff.Count = n
	}
	return nil
}

// Validate checks that required fields are present.
func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"basename", c.Basename},
		{"baserom", c.BaseROM},
		{"manifest", c.Manifest},
		{"linker_script", c.LinkScript},
		{"checksum", c.ChecksumManifest},
		{"build_dir", c.BuildDir},
		{"ninja_file", c.NinjaFile},
		{"toolchain.cross", c.Toolchain.Cross},
		{"toolchain.verify", c.Toolchain.Verify},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("config: %s must not be empty", r.name)
		}
	}
	if c.Diff.Count < 1 {
		return fmt.Errorf("config: diff.count must be at least 1 (got %d)", c.Diff.Count)
	}
	return nil
}

// Resolve returns p joined to Root when it is relative.
func (c Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

func (c Config) buildPath(ext string) string {
	return filepath.Join(c.BuildDir, c.Basename+ext)
}

// Elf is the linked executable image.
func (c Config) Elf() string { return c.buildPath(".elf") }

// Map is the linker map written next to the ELF.
func (c Config) Map() string { return c.buildPath(".map") }

// Rom is the flat ROM image extracted from the ELF.
func (c Config) Rom() string { return c.buildPath(".z64") }

// Sentinel is the zero-byte file created when verification succeeds.
func (c Config) Sentinel() string { return c.buildPath(".ok") }

// GraphFile is the JSON description of the last configured build graph.
func (c Config) GraphFile() string { return filepath.Join(c.BuildDir, "graph.json") }

// ExpectedRom is the reference ROM built from the known-good tree.
func (c Config) ExpectedRom() string {
	return filepath.Join(c.ExpectedDir, c.buildPath(".z64"))
}

// ExpectedMap is the reference linker map.
func (c Config) ExpectedMap() string {
	return filepath.Join(c.ExpectedDir, c.buildPath(".map"))
}

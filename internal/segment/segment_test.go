package segment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		desc Descriptor
		want Class
	}{
		{"assembly", Descriptor{Kind: "asm", SourcePaths: []string{"asm/main.s"}, ObjectPath: "build/asm/main.s.o"}, ClassCompile},
		{"preprocessed assembly", Descriptor{Kind: "hasm", SourcePaths: []string{"asm/boot.S"}, ObjectPath: "build/asm/boot.o"}, ClassCompile},
		{"binary blob", Descriptor{Kind: "bin", SourcePaths: []string{"assets/header.bin"}, ObjectPath: "build/assets/header.o"}, ClassEmbed},
		{"no object", Descriptor{Kind: "asm", SourcePaths: []string{"asm/main.s"}}, ClassSkip},
		{"container", Descriptor{Kind: ".data", SourcePaths: []string{"asm/data/main.data.s"}, ObjectPath: "build/main.data.o"}, ClassSkip},
		{"container without sources", Descriptor{Kind: ".rodata", ObjectPath: "build/x.o"}, ClassSkip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.desc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	cases := map[string]Descriptor{
		"missing source":     {Name: "main", Kind: "asm", ObjectPath: "build/main.o"},
		"blank source":       {Name: "main", Kind: "asm", SourcePaths: []string{"  "}, ObjectPath: "build/main.o"},
		"unsupported suffix": {Name: "game", Kind: "c", SourcePaths: []string{"src/game.c"}, ObjectPath: "build/game.o"},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrManifest))
			var me *ManifestError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, d.Name, me.Segment)
		})
	}
}

func TestParse(t *testing.T) {
	doc := `
segments:
  - name: header
    type: header
    src_paths: [asm/header.s]
    object_path: build/asm/header.s.o
  - name: main
    type: .main
    src_paths: []
  - name: font
    type: bin
    src_paths: [assets/font.bin]
    object_path: build/assets/font.bin.o
`
	segs, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "header", segs[0].Kind)
	assert.True(t, segs[1].IsContainer())
	assert.Equal(t, "", segs[1].ObjectPath)
	assert.Equal(t, []string{"assets/font.bin"}, segs[2].SourcePaths)
}

func TestParse_RejectsUnknownFieldsAndEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader("segments:\n  - name: a\n    vram: 0x80000400\n"))
	assert.ErrorIs(t, err, ErrManifest)

	_, err = Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrManifest)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "segments.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

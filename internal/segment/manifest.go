package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type manifestFile struct {
	Segments []Descriptor `yaml:"segments"`
}

// Load reads the segment manifest at path.
//
// A missing file is returned as an error wrapping fs.ErrNotExist; a file that
// cannot be parsed yields a *ManifestError.
func Load(path string) ([]Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment manifest: %w", err)
	}
	return Parse(bytes.NewReader(b))
}

// Parse decodes a manifest document. Unknown fields are rejected so that a
// renamed key in the decomposition output cannot silently drop segments.
func Parse(r io.Reader) ([]Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var mf manifestFile
	if err := dec.Decode(&mf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ManifestError{Index: -1, Msg: "empty manifest"}
		}
		return nil, &ManifestError{Index: -1, Msg: err.Error()}
	}
	return mf.Segments, nil
}

package firstdiff

import (
	"context"
	"errors"
	"fmt"
	"os"

	"romforge/internal/ctxlog"
	"romforge/internal/mapfile"
)

// ErrImageMissing is the Kind of every *ImageMissingError.
var ErrImageMissing = errors.New("image missing")

// ImageMissingError reports an absent image or map file.
type ImageMissingError struct {
	Role string // "built image", "expected map", ...
	Path string
}

func (e *ImageMissingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s not found at %s", ErrImageMissing, e.Role, e.Path)
}

func (e *ImageMissingError) Unwrap() error { return ErrImageMissing }

// Paths locates the two image/map pairs.
type Paths struct {
	CandidateRom string
	CandidateMap string
	ReferenceRom string
	ReferenceMap string
}

// Inputs holds everything a diagnosis reads.
type Inputs struct {
	Candidate    []byte
	Reference    []byte
	CandidateMap *mapfile.MapFile
	ReferenceMap *mapfile.MapFile
}

// Diagnose runs e over the loaded inputs.
func (in *Inputs) Diagnose(e Engine) Report {
	return e.Diagnose(in.Candidate, in.Reference, in.CandidateMap, in.ReferenceMap)
}

// Open checks that all four files exist, then loads them. Nothing is read
// until every file is known to be present.
func Open(ctx context.Context, p Paths) (*Inputs, error) {
	files := []struct{ role, path string }{
		{"built image", p.CandidateRom},
		{"built map", p.CandidateMap},
		{"expected image", p.ReferenceRom},
		{"expected map", p.ReferenceMap},
	}
	for _, f := range files {
		info, err := os.Stat(f.path)
		if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
			return nil, &ImageMissingError{Role: f.role, Path: f.path}
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f.role, err)
		}
	}

	var (
		in  Inputs
		err error
	)
	if in.Candidate, err = os.ReadFile(p.CandidateRom); err != nil {
		return nil, fmt.Errorf("read built image: %w", err)
	}
	if in.Reference, err = os.ReadFile(p.ReferenceRom); err != nil {
		return nil, fmt.Errorf("read expected image: %w", err)
	}
	if in.CandidateMap, err = mapfile.Load(p.CandidateMap); err != nil {
		return nil, err
	}
	if in.ReferenceMap, err = mapfile.Load(p.ReferenceMap); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("Loaded images",
		"built", p.CandidateRom, "built_size", len(in.Candidate),
		"expected", p.ReferenceRom, "expected_size", len(in.Reference),
		"built_symbols", len(in.CandidateMap.Symbols()),
		"expected_symbols", len(in.ReferenceMap.Symbols()))
	return &in, nil
}

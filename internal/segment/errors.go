package segment

import (
	"errors"
	"fmt"
)

// ErrManifest is the Kind of every *ManifestError.
var ErrManifest = errors.New("manifest error")

// ManifestError reports a malformed or incomplete segment descriptor.
type ManifestError struct {
	// Index is the descriptor's position in the manifest, or -1 when the
	// manifest itself could not be parsed.
	Index   int
	Segment string
	Msg     string
}

func (e *ManifestError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%s: %s", ErrManifest, e.Msg)
	case e.Segment == "":
		return fmt.Sprintf("%s: segment #%d: %s", ErrManifest, e.Index, e.Msg)
	default:
		return fmt.Sprintf("%s: segment #%d (%s): %s", ErrManifest, e.Index, e.Segment, e.Msg)
	}
}

func (e *ManifestError) Unwrap() error { return ErrManifest }

func manifestErrorf(d Descriptor, format string, args ...any) error {
	return &ManifestError{Index: -1, Segment: d.Label(), Msg: fmt.Sprintf(format, args...)}
}

// Package segment models the segment manifest written by the ROM decomposition
// step: an ordered list of typed memory regions, each optionally mapped to a
// relocatable object that the build graph must produce.
package segment

import (
	"path/filepath"
	"strings"
)

// ContainerPrefix marks a segment kind that only groups other segments.
const ContainerPrefix = "."

// Descriptor describes one segment of the target memory image.
type Descriptor struct {
	// Name is informational; it is only used in error messages.
	Name string `yaml:"name"`

	// Kind is the segment type reported by the decomposition step, such as
	// "asm", "bin" or ".data" for containers.
	Kind string `yaml:"type"`

	// SourcePaths lists the segment's sources. The first element decides how
	// the segment is built.
	SourcePaths []string `yaml:"src_paths"`

	// ObjectPath is the relocatable object to produce. Empty means the segment
	// does not take part in the link.
	ObjectPath string `yaml:"object_path,omitempty"`
}

// IsContainer reports whether the descriptor only groups other segments.
func (d Descriptor) IsContainer() bool {
	return strings.HasPrefix(d.Kind, ContainerPrefix)
}

// Label returns a human-readable identifier for error messages.
func (d Descriptor) Label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.ObjectPath != "":
		return d.ObjectPath
	default:
		return d.Kind
	}
}

// Class is the closed set of ways a descriptor can be turned into a build action.
type Class int

const (
	// ClassSkip descriptors produce no action: containers and segments without an object.
	ClassSkip Class = iota
	// ClassCompile descriptors are assembled from a preprocessed source file.
	ClassCompile
	// ClassEmbed descriptors wrap a raw binary blob into a relocatable object.
	ClassEmbed
)

func (c Class) String() string {
	switch c {
	case ClassSkip:
		return "skip"
	case ClassCompile:
		return "compile"
	case ClassEmbed:
		return "embed"
	default:
		return "unknown"
	}
}

var suffixClasses = map[string]Class{
	".s":   ClassCompile,
	".S":   ClassCompile,
	".bin": ClassEmbed,
}

// Classify decides how a descriptor is built.
//
// Containers and descriptors without an object are skipped. Any other
// descriptor must name at least one source whose suffix is known; otherwise a
// *ManifestError is returned.
func Classify(d Descriptor) (Class, error) {
	if d.ObjectPath == "" || d.IsContainer() {
		return ClassSkip, nil
	}
	if len(d.SourcePaths) == 0 || strings.TrimSpace(d.SourcePaths[0]) == "" {
		return ClassSkip, manifestErrorf(d, "no source path for object %q", d.ObjectPath)
	}
	ext := filepath.Ext(d.SourcePaths[0])
	class, ok := suffixClasses[ext]
	if !ok {
		return ClassSkip, manifestErrorf(d, "unsupported source suffix %q in %q", ext, d.SourcePaths[0])
	}
	return class, nil
}

package cli

import (
	"errors"
	"fmt"

	"romforge/internal/checksum"
	"romforge/internal/configure"
	"romforge/internal/dag"
	"romforge/internal/firstdiff"
	"romforge/internal/segment"
)

const (
	ExitSuccess           = 0
	ExitDivergence        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitManifestError     = 5
	ExitImageMissing      = 6
)

// ErrDivergence is returned by the diff command when the images differ. The
// report itself has already been printed.
var ErrDivergence = errors.New("built image differs from the expected image")

// InvocationError carries an explicit exit code for failures detected by the
// CLI layer itself: bad flags or arguments and unreadable project files.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to the process exit status.
// Unknown errors are internal errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	switch {
	case errors.Is(err, ErrDivergence), errors.Is(err, checksum.ErrMismatch):
		return ExitDivergence
	case errors.Is(err, configure.ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, segment.ErrManifest):
		return ExitManifestError
	case errors.Is(err, firstdiff.ErrImageMissing):
		return ExitImageMissing
	case errors.Is(err, dag.ErrInvalidGraph), errors.Is(err, dag.ErrDuplicateOutput), errors.Is(err, dag.ErrCycleFound):
		// A manifest that compiles into a broken graph is still the manifest's fault.
		return ExitManifestError
	}
	return ExitInternalError
}

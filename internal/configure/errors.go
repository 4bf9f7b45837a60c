package configure

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the Kind of every *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a missing required external input: the base
// ROM, the link script or the checksum manifest.
type ConfigurationError struct {
	What string
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %q: %v", ErrConfiguration, e.What, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s %q not found", ErrConfiguration, e.What, e.Path)
}

// Is matches ErrConfiguration as well as the wrapped cause.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

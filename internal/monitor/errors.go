package monitor

import (
	"fmt"
	"strings"
)

// UnsupportedError is returned when the current platform cannot enforce the
// interception mechanism a session needs. It names the specific gaps rather
// than failing silently, the same shape sandbox.EnforcementError uses for
// the same purpose one layer down the stack.
type UnsupportedError struct {
	Gaps     []string
	Platform string
}

func (e *UnsupportedError) Error() string {
	msg := "access monitor: platform cannot enforce: " + strings.Join(e.Gaps, ", ")
	if e.Platform != "" {
		msg += ". " + e.Platform
	}
	return msg
}

// InstallError wraps a failure to install the interceptor registry. Install
// is transactional: when it fails, any partially-applied state has already
// been rolled back by the time InstallError is returned.
type InstallError struct {
	Err error
}

func (e *InstallError) Error() string { return fmt.Sprintf("install interceptors: %v", e.Err) }
func (e *InstallError) Unwrap() error { return e.Err }

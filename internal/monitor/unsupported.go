//go:build !linux

package monitor

import (
	"context"
	"os/exec"
	"time"
)

// backendFactory is left nil on platforms with no interception mechanism
// wired up yet (spec.md's Non-goals exclude non-Linux enforcement from
// this iteration; see DESIGN.md). installRefcount.install already turns a
// nil backendFactory into a well-formed *UnsupportedError rather than a
// nil-pointer panic, so this file only needs to exist to satisfy the
// build on those platforms.
func init() {}

// Spawn is unimplemented outside Linux: there is no wrapper/handshake
// mechanism wired up to install interceptors before exec'ing the target.
func Spawn(ctx context.Context, s *Session, name string, args []string, timeout time.Duration) (*exec.Cmd, error) {
	return nil, &UnsupportedError{Gaps: []string{"spawn with interceptors"}, Platform: platformName()}
}

var currentSession *Session

func setCurrentProcessSession(s *Session) { currentSession = s }
func currentProcessSession() *Session     { return currentSession }

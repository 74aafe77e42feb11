// Package monitor implements the access-monitoring subsystem: starting a
// session, spawning or attaching to participant processes, collecting the
// file-access events they produce, and folding those events into a single
// per-path accumulated record (spec.md §§3-8).
package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

// DefaultHandshakeTimeout bounds how long Spawn waits for a child to
// report its interceptors are active before giving up.
const DefaultHandshakeTimeout = 5 * time.Second

// StartSession begins a new root session rooted at opts.Directory,
// installing this process's own interceptors so that even file accesses
// made directly by the calling process (not just its spawned children)
// are recorded. The returned Session must eventually be passed to
// StopSession.
func StartSession(opts Options) (*Session, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("monitor: Options.Directory is required")
	}

	var s *Session
	var err error
	if opts.ID == NewSessionID {
		s, err = registry.create(opts.Directory, opts.LogAspects, opts.InitBinary)
	} else {
		s, err = registry.join(opts.ID, opts.Directory, opts.LogAspects, opts.InitBinary)
	}
	if err != nil {
		return nil, fmt.Errorf("monitor: create session: %w", err)
	}
	setCurrentProcessSession(s)
	s.AddParticipant(os.Getpid())

	if err := interceptors.install(); err != nil {
		registry.remove(s.ID)
		return nil, err
	}
	if err := startDrainer(s, os.Getpid()); err != nil {
		interceptors.uninstall()
		registry.remove(s.ID)
		return nil, err
	}
	return s, nil
}

// StopSession stops interception for s, flushes its local event log, and
// folds every participant's event log into a single result map keyed by
// canonical path (component H). It does not stop sibling sessions sharing
// this process's interceptor installation — install/uninstall is
// refcounted precisely so overlapping sessions in one process don't
// disturb each other.
func StopSession(s *Session) (map[string]*record.AccessRecord, error) {
	s.stopDrainer()
	s.closeDebugLog()

	if err := interceptors.uninstall(); err != nil {
		return nil, fmt.Errorf("monitor: uninstall interceptors: %w", err)
	}

	result, err := Fold(s)
	registry.remove(s.ID)
	if currentProcessSession() == s {
		setCurrentProcessSession(nil)
	}
	return result, err
}

// SpawnInSession starts name/args as a new monitored participant of s,
// using the forced-suspend re-exec wrapper (spawn_linux.go) on platforms
// that support it. timeout of zero uses DefaultHandshakeTimeout.
func SpawnInSession(ctx context.Context, s *Session, name string, args []string, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	cmd, err := Spawn(ctx, s, name, args, timeout)
	if err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

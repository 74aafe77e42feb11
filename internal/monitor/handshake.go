package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// handshakeContext is the payload a parent writes for a spawned child to
// pick up, replacing the named-shared-memory / named-event handshake the
// original Windows implementation used (spec.md §4.E/§4.F, GLOSSARY
// "Named handshake"). The child learns everything it needs to join the
// session purely from this file, whose path it receives as an argument.
type handshakeContext struct {
	SessionID  int    `json:"session_id"`
	Directory  string `json:"directory"`
	LogAspects Aspect `json:"log_aspects"`
	ParentPID  int    `json:"parent_pid"`
	InitBinary string `json:"init_binary"`
}

const handshakeEnvVar = "ACCESSMONITOR_HANDSHAKE"

// handshakePath returns a process-unique path under dir so concurrent
// spawns from the same session never collide on the same context file.
func handshakePath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("handshake-%s.json", uuid.NewString()))
}

// writeHandshake serializes ctx to a fresh file under dir and returns its
// path, for the caller to pass to the child via handshakeEnvVar.
func writeHandshake(dir string, ctx handshakeContext) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("handshake dir: %w", err)
	}
	path := handshakePath(dir)
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("marshal handshake: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write handshake: %w", err)
	}
	return path, nil
}

// readHandshake loads the context a parent wrote. WrapperMain invokes this
// with the handshake path it receives as its first argument.
func readHandshake(path string) (handshakeContext, error) {
	var ctx handshakeContext
	data, err := os.ReadFile(path)
	if err != nil {
		return ctx, fmt.Errorf("read handshake: %w", err)
	}
	if err := json.Unmarshal(data, &ctx); err != nil {
		return ctx, fmt.Errorf("unmarshal handshake: %w", err)
	}
	return ctx, nil
}

// removeHandshake deletes the context file once the child has consumed
// it; the parent never needs it again and a session directory otherwise
// accumulates one file per spawned descendant for the life of the build.
func removeHandshake(path string) {
	os.Remove(path)
}

// signalPath is the file a child creates, beside its handshake context,
// the moment its interceptors are installed and it is safe for the parent
// (or the ptrace injector) to stop holding the child suspended. It
// replaces the Windows named-event "monitoring active" signal.
func signalPath(handshakePath string) string {
	return handshakePath + ".active"
}

// signalReady marks this process as having finished installing
// interceptors.
func signalReady(handshakePath string) error {
	return os.WriteFile(signalPath(handshakePath), []byte("ready"), 0o600)
}

// waitForReady blocks until the child identified by handshakePath has
// called signalReady, or timeout elapses. It uses fsnotify rather than
// polling so a parent spawning many children at once isn't burning a CPU
// core per wait.
func waitForReady(handshakePath string, timeout time.Duration) error {
	target := signalPath(handshakePath)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("handshake watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch handshake dir: %w", err)
	}

	// The signal file may have been created in the window between the
	// Stat above and Add registering the watch.
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("handshake watcher closed before %s appeared", target)
			}
			if ev.Name == target && (ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				return nil
			}
		case err := <-w.Errors:
			return fmt.Errorf("handshake watch: %w", err)
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", target)
		}
	}
}

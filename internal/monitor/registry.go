package monitor

import "sync"

// interceptorBackend is whatever platform-specific mechanism actually
// intercepts syscalls and feeds RawEvents to bound sessions. On Linux this
// is the seccomp-notify listener loop in seccomp_linux.go; unsupported
// platforms never populate backendFactory, so install always fails with
// UnsupportedError there.
type interceptorBackend interface {
	// start begins intercepting for the current process. It must be safe
	// to call only once per process lifetime (enforced by installRefcount
	// below, not by the backend itself).
	start() error
	// stop tears the interception down. Called once, when the last
	// session using this process's interceptors goes away.
	stop() error
}

// backendFactory is set by the platform-specific file that can actually
// build an interceptorBackend (seccomp_linux.go). unsupported.go leaves it
// nil.
var backendFactory func() (interceptorBackend, error)

// installRefcount makes interceptor installation a shared, idempotent
// resource: the first session in a process to call install() actually
// wires up the backend; later sessions just bump the refcount; the last
// one out tears it down. This mirrors wingthing's sandbox enforcement
// being applied once per process rather than once per invocation.
type installRefcount struct {
	mu      sync.Mutex
	backend interceptorBackend
	count   int
}

var interceptors = &installRefcount{}

// install is transactional: if the backend fails to start, the refcount
// is left exactly as it was found, and the caller gets back an
// *InstallError wrapping the underlying failure.
func (r *installRefcount) install() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count > 0 {
		r.count++
		return nil
	}
	if backendFactory == nil {
		return &UnsupportedError{Gaps: []string{"syscall interception"}, Platform: platformName()}
	}
	b, err := backendFactory()
	if err != nil {
		return &InstallError{Err: err}
	}
	if err := b.start(); err != nil {
		return &InstallError{Err: err}
	}
	r.backend = b
	r.count = 1
	return nil
}

// uninstall decrements the refcount, tearing the backend down once it
// reaches zero. Calling uninstall more times than install was called is a
// no-op rather than a panic, so a defensive double-Stop in caller code
// (e.g. an already-failed session's cleanup path) is harmless.
func (r *installRefcount) uninstall() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	r.count--
	if r.count > 0 {
		return nil
	}
	b := r.backend
	r.backend = nil
	if b == nil {
		return nil
	}
	return b.stop()
}

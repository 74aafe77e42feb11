package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/peterpjaspers/accessmonitor/internal/queue"
)

// NewSessionID, passed as Options.ID, asks Start to allocate a fresh id
// rather than join an existing one.
const NewSessionID = -1

// Options configures a session. See spec.md §6's configuration surface.
type Options struct {
	Directory        string        // root under which the session's event directory is created
	ID               int           // NewSessionID to allocate, or an explicit id to join (child only)
	LogAspects       Aspect        // which debug categories this session's debug log records
	HandshakeTimeout HandshakeTimeout
	InitBinary       string // re-exec wrapper binary Spawn uses; "" falls back to os.Executable()
}

// HandshakeTimeout is an upper bound, in whole seconds, on how long the
// injector waits for a spawned child's monitoring_active signal. It is an
// alias of int, named so Options reads clearly at call sites that pass it
// as a struct literal.
type HandshakeTimeout = durationSeconds

// durationSeconds avoids importing "time" into every Options call site for
// what's fundamentally one knob. StartSession does not read
// Options.HandshakeTimeout; the wait is bounded by the timeout argument
// passed to Spawn.
type durationSeconds = int

// Session ties together one root build step and the tree of descendant
// processes that join it. The session registry (below) exclusively owns
// Sessions; a Session exclusively owns its event queue and auxiliary logs.
type Session struct {
	ID         int
	Directory  string // <base>/AccessMonitorData/Session_<id>
	LogAspects Aspect
	InitBinary string // re-exec wrapper binary Spawn uses; "" falls back to os.Executable()

	mu           sync.Mutex
	participants map[int]bool // process ids that have joined

	Queue     *queue.Queue // this process's local event queue (component B)
	DebugLog  *slog.Logger // nil unless an aspect is enabled
	debugFile *os.File

	drainerDone chan struct{}
}

func sessionDir(base string, id int) string {
	return filepath.Join(base, "AccessMonitorData", fmt.Sprintf("Session_%d", id))
}

func newSession(id int, base string, aspects Aspect, initBinary string) (*Session, error) {
	dir := sessionDir(base, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	s := &Session{
		ID:           id,
		Directory:    dir,
		LogAspects:   aspects,
		InitBinary:   initBinary,
		participants: map[int]bool{},
		Queue:        queue.New(),
		drainerDone:  make(chan struct{}),
	}
	if aspects != 0 {
		if err := s.openDebugLog(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) openDebugLog() error {
	path := filepath.Join(s.Directory, fmt.Sprintf("Debug_%d.log", os.Getpid()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	s.debugFile = f
	s.DebugLog = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return nil
}

// AddParticipant records pid as having joined the session.
func (s *Session) AddParticipant(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[pid] = true
}

// Participants returns a snapshot of the current participant pid set.
func (s *Session) Participants() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.participants))
	for pid := range s.participants {
		out = append(out, pid)
	}
	return out
}

func (s *Session) closeDebugLog() {
	if s.debugFile != nil {
		s.debugFile.Close()
	}
}

// eventLogPath is the per-process event log this process's drainer writes
// to (component H). Every participant process has its own, named by its
// own pid — there is no shared file and therefore no cross-process lock.
func (s *Session) eventLogPath(pid int) string {
	return filepath.Join(s.Directory, fmt.Sprintf("Events_%d.log", pid))
}

// sessionRegistry is the process-wide {id -> Session} map plus the id
// allocator (component G); interceptor bodies find their session through
// currentProcessSession, not through this registry. Only one
// instance exists per process; each process's registry is independent —
// identity of a session across processes is by id alone (§4.G).
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[int]*Session
	freeIDs  []int // released ids, consulted before bumping next
	nextID   int
}

var registry = &sessionRegistry{sessions: map[int]*Session{}}

// create allocates a fresh id (reusing a released one if available) and
// registers a new Session under it.
func (r *sessionRegistry) create(base string, aspects Aspect, initBinary string) (*Session, error) {
	r.mu.Lock()
	id := r.allocateIDLocked()
	r.mu.Unlock()

	s, err := newSession(id, base, aspects, initBinary)
	if err != nil {
		r.mu.Lock()
		r.releaseIDLocked(id)
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

// join registers, in this process's registry, a Session for an existing
// session id, known by a child process from the handshake context it
// retrieved. It does not add any pid to the participant set.
func (r *sessionRegistry) join(id int, base string, aspects Aspect, initBinary string) (*Session, error) {
	s, err := newSession(id, base, aspects, initBinary)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

func (r *sessionRegistry) get(id int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// remove unregisters id and returns its id to the free list so a later
// session in the same process can reuse it, per spec.md §3.
func (r *sessionRegistry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	r.releaseIDLocked(id)
}

func (r *sessionRegistry) allocateIDLocked() int {
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		return id
	}
	id := r.nextID
	r.nextID++
	return id
}

func (r *sessionRegistry) releaseIDLocked(id int) {
	r.freeIDs = append(r.freeIDs, id)
}

// count reports the number of currently live sessions in this process.
func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

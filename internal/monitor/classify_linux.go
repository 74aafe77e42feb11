//go:build linux

package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/peterpjaspers/accessmonitor/internal/queue"
	"github.com/peterpjaspers/accessmonitor/internal/record"
)

// currentProcessSession is the session this process is currently
// participating in. The seccomp-notify model intercepts at the kernel
// level rather than via an injected trampoline, so there is no re-entrancy
// hazard to guard against with a per-thread nesting counter (§4.C's
// concern doesn't arise: the kernel only ever calls the notify loop once
// per syscall, never recursively) — a single process-wide pointer is
// enough, set once when the process joins or starts a session.
var (
	processSessionMu sync.RWMutex
	processSession   *Session
)

func setCurrentProcessSession(s *Session) {
	processSessionMu.Lock()
	defer processSessionMu.Unlock()
	processSession = s
}

func currentProcessSession() *Session {
	processSessionMu.RLock()
	defer processSessionMu.RUnlock()
	return processSession
}

// classifySyscall turns a raw seccomp notification into the RawEvent(s) it
// represents, following the syscall -> category table of spec.md §4.D. The
// notification fires before the kernel actually executes the syscall, so
// path arguments, file descriptors and their /proc state are all still
// exactly as the caller set them up — this is what lets fd-keyed calls
// (ftruncate, fchmod, fchown, close) be resolved via /proc/<pid>/fd without
// any of our own open-time bookkeeping.
func classifySyscall(pid int, data seccompData) ([]queue.RawEvent, bool) {
	switch uint32(data.Nr) {
	case unix.SYS_OPEN:
		return classifyOpen(pid, data.Args[0], data.Args[1])
	case unix.SYS_OPENAT:
		return classifyOpen(pid, data.Args[1], data.Args[2])
	case unix.SYS_CREAT:
		return pathEvent(pid, data.Args[0], record.Write)
	case unix.SYS_UNLINK:
		return pathEvent(pid, data.Args[0], record.Delete)
	case unix.SYS_UNLINKAT:
		return pathEvent(pid, data.Args[1], record.Delete)
	case unix.SYS_RENAME:
		return classifyRename(pid, data.Args[0], data.Args[1])
	case unix.SYS_RENAMEAT:
		return classifyRename(pid, data.Args[1], data.Args[3])
	case unix.SYS_RENAMEAT2:
		return classifyRename(pid, data.Args[1], data.Args[3])
	case unix.SYS_MKDIR:
		return pathEvent(pid, data.Args[0], record.Write)
	case unix.SYS_MKDIRAT:
		return pathEvent(pid, data.Args[1], record.Write)
	case unix.SYS_RMDIR:
		return pathEvent(pid, data.Args[0], record.Delete)
	case unix.SYS_LINK:
		return pathEvent(pid, data.Args[1], record.Write)
	case unix.SYS_LINKAT:
		return pathEvent(pid, data.Args[3], record.Write)
	case unix.SYS_SYMLINK:
		return pathEvent(pid, data.Args[1], record.Write)
	case unix.SYS_SYMLINKAT:
		return pathEvent(pid, data.Args[2], record.Write)
	case unix.SYS_TRUNCATE:
		return pathEvent(pid, data.Args[0], record.Write)
	case unix.SYS_FTRUNCATE:
		return fdEvent(pid, data.Args[0], record.Write)
	case unix.SYS_CHMOD:
		return pathEvent(pid, data.Args[0], record.Write)
	case unix.SYS_FCHMOD:
		return fdEvent(pid, data.Args[0], record.Write)
	case unix.SYS_CHOWN:
		return pathEvent(pid, data.Args[0], record.Write)
	case unix.SYS_FCHOWN:
		return fdEvent(pid, data.Args[0], record.Write)
	case unix.SYS_CLOSE:
		return classifyClose(pid, data.Args[0])
	default:
		return nil, false
	}
}

// pathEvent is the common case: a single path argument maps directly to a
// fixed mode (directory create/remove, delete, link targets, ...).
func pathEvent(pid int, pathPtr uint64, mode record.Mode) ([]queue.RawEvent, bool) {
	path, err := readRemoteString(pid, uintptr(pathPtr))
	if err != nil || path == "" {
		return nil, false
	}
	return []queue.RawEvent{{Path: path, Mode: mode, Success: true}}, true
}

// classifyOpen projects the open/openat flags argument into a mode per
// spec.md §4.D's "File open/create" row: all-access ⇒ Read∪Write, read-any
// ⇒ Read, write-any or append ⇒ Write. Linux's open(2)/openat(2) have no
// flag analogous to Windows' delete-on-open access right, so the
// delete-flag leg of the projection has no case here.
func classifyOpen(pid int, pathPtr, flags uint64) ([]queue.RawEvent, bool) {
	path, err := readRemoteString(pid, uintptr(pathPtr))
	if err != nil || path == "" {
		return nil, false
	}
	return []queue.RawEvent{{Path: path, Mode: projectOpenFlags(flags), Success: true}}, true
}

func projectOpenFlags(flags uint64) record.Mode {
	var mode record.Mode
	switch flags & uint64(unix.O_ACCMODE) {
	case uint64(unix.O_WRONLY):
		mode = record.Write
	case uint64(unix.O_RDWR):
		mode = record.Read | record.Write
	default: // O_RDONLY == 0
		mode = record.Read
	}
	if flags&uint64(unix.O_APPEND) != 0 {
		mode |= record.Write
	}
	return mode
}

// classifyRename emits the two-event pair spec.md §4.D's "File move/rename"
// row requires: a Delete on the source and a Write on the destination. Both
// paths live in the same notification, so both are read before either event
// is built; a source or destination that fails to resolve drops just that
// half of the pair rather than the whole rename (matching §4.D's "paths
// that fail to resolve ... cause the event to be dropped without failing
// the call").
func classifyRename(pid int, oldPtr, newPtr uint64) ([]queue.RawEvent, bool) {
	var events []queue.RawEvent
	if oldPath, err := readRemoteString(pid, uintptr(oldPtr)); err == nil && oldPath != "" {
		events = append(events, queue.RawEvent{Path: oldPath, Mode: record.Delete, Success: true})
	}
	if newPath, err := readRemoteString(pid, uintptr(newPtr)); err == nil && newPath != "" {
		events = append(events, queue.RawEvent{Path: newPath, Mode: record.Write, Success: true})
	}
	return events, len(events) > 0
}

// fdEvent handles the fd-keyed attribute-mutate calls (ftruncate, fchmod,
// fchown): the path isn't in the syscall's own arguments, so it's resolved
// from the notifying process's still-open fd table instead.
func fdEvent(pid int, fdArg uint64, mode record.Mode) ([]queue.RawEvent, bool) {
	path, err := resolveFD(pid, int(fdArg))
	if err != nil {
		return nil, false
	}
	return []queue.RawEvent{{Path: path, Mode: mode, Success: true}}, true
}

// classifyClose implements spec.md §4.D's "Handle close" row: if the
// closing fd was opened for write or append, emit a Write for the path it
// pointed to; a read-only handle's close is silent. Both the path and the
// access mode are read from /proc before the notification is resolved
// (i.e. before the real close(2) runs and the fd goes away).
func classifyClose(pid int, fdArg uint64) ([]queue.RawEvent, bool) {
	fd := int(fdArg)
	path, err := resolveFD(pid, fd)
	if err != nil {
		return nil, false
	}
	flags, err := readFDFlags(pid, fd)
	if err != nil {
		return nil, false
	}
	if projectOpenFlags(flags)&record.Write == 0 {
		return nil, false
	}
	return []queue.RawEvent{{Path: path, Mode: record.Write, Success: true}}, true
}

// resolveFD reads the path an open file descriptor in pid's fd table
// refers to, via the /proc/<pid>/fd/<n> symlink. Anonymous targets
// (pipes, sockets, anonymous inodes) aren't filesystem paths and are
// rejected.
func resolveFD(pid, fd int) (string, error) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/fd/%d", pid, fd))
	if err != nil {
		return "", err
	}
	path = strings.TrimSuffix(path, " (deleted)")
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("fd %d in pid %d is not a filesystem path: %s", fd, pid, path)
	}
	return path, nil
}

// readFDFlags reads the open file status flags (access mode + O_APPEND,
// etc.) for a still-open fd out of /proc/<pid>/fdinfo/<n>'s "flags:" line,
// the same field lsof and similar tools parse.
func readFDFlags(pid, fd int) (uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/fdinfo/%d", pid, fd))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		rest, ok := strings.CutPrefix(line, "flags:")
		if !ok {
			continue
		}
		return strconv.ParseUint(strings.TrimSpace(rest), 8, 64)
	}
	return 0, fmt.Errorf("no flags: line in fdinfo for pid %d fd %d", pid, fd)
}

// readRemoteString reads a NUL-terminated string out of the notifying
// process's address space at addr. /proc/<pid>/mem is the portable way to
// do this from Go without hand-rolling process_vm_readv's raw iovec ABI;
// it requires the same ptrace access a notify listener already implicitly
// has over its filter's subject.
func readRemoteString(pid int, addr uintptr) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("nil path pointer")
	}
	f, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return "", err
	}
	defer f.Close()

	const maxPath = 4096
	buf := make([]byte, maxPath)
	n, err := f.ReadAt(buf, int64(addr))
	if err != nil && n == 0 {
		return "", err
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf[:n]), nil
}

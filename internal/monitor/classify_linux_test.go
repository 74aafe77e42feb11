//go:build linux

package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

func TestProjectOpenFlags(t *testing.T) {
	cases := []struct {
		name  string
		flags uint64
		want  record.Mode
	}{
		{"read-only", uint64(unix.O_RDONLY), record.Read},
		{"write-only", uint64(unix.O_WRONLY), record.Write},
		{"read-write", uint64(unix.O_RDWR), record.Read | record.Write},
		{"write-append", uint64(unix.O_WRONLY | unix.O_APPEND), record.Write},
		{"write-create-trunc", uint64(unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC), record.Write},
	}
	for _, c := range cases {
		if got := projectOpenFlags(c.flags); got != c.want {
			t.Errorf("%s: projectOpenFlags(%#o) = %v, want %v", c.name, c.flags, got, c.want)
		}
	}
}

// TestResolveFDAndCloseOnWriteHandle exercises resolveFD/readFDFlags/
// classifyClose against this test process's own fd table (os.Getpid(),
// reachable via /proc/self/...) rather than a seccomp notification, since
// standing up a real notifying child is an integration concern.
func TestResolveFDAndCloseOnWriteHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	pid := os.Getpid()
	fd := int(f.Fd())

	got, err := resolveFD(pid, fd)
	if err != nil {
		t.Fatalf("resolveFD: %v", err)
	}
	if got != path {
		t.Errorf("resolveFD = %q, want %q", got, path)
	}

	events, ok := classifyClose(pid, uint64(fd))
	if !ok {
		t.Fatal("classifyClose on a write-opened handle reported ok=false")
	}
	if len(events) != 1 || events[0].Path != path || events[0].Mode != record.Write {
		t.Errorf("classifyClose = %+v, want one Write event for %q", events, path)
	}
}

func TestClassifyCloseOnReadOnlyHandleIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	_, ok := classifyClose(os.Getpid(), uint64(f.Fd()))
	if ok {
		t.Error("classifyClose on a read-only handle should report ok=false")
	}
}

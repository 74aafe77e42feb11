//go:build linux

package monitor

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	backendFactory = newSeccompBackend
}

// monitoredSyscalls lists every syscall number classify_linux.go knows how
// to turn into a RawEvent. Anything not in this list is allowed straight
// through by the filter without ever reaching user space, the same
// allow-by-default, deny/notify-by-exception shape sandbox.buildSeccompFilter
// uses for its own (much smaller, deny-only) filter.
var monitoredSyscalls = []uint32{
	unix.SYS_OPEN,
	unix.SYS_OPENAT,
	unix.SYS_CREAT,
	unix.SYS_UNLINK,
	unix.SYS_UNLINKAT,
	unix.SYS_RENAME,
	unix.SYS_RENAMEAT,
	unix.SYS_RENAMEAT2,
	unix.SYS_MKDIR,
	unix.SYS_MKDIRAT,
	unix.SYS_RMDIR,
	unix.SYS_LINK,
	unix.SYS_LINKAT,
	unix.SYS_SYMLINK,
	unix.SYS_SYMLINKAT,
	unix.SYS_TRUNCATE,
	unix.SYS_FTRUNCATE,
	unix.SYS_CHMOD,
	unix.SYS_FCHMOD,
	unix.SYS_CHOWN,
	unix.SYS_FCHOWN,
	unix.SYS_CLOSE,
}

const (
	seccompSetModeFilter        = 1
	seccompFilterFlagNewListner = 1 << 3 // SECCOMP_FILTER_FLAG_NEW_LISTENER
	seccompRetUserNotif         = 0x7fc00000
	seccompRetAllowLocal        = 0x7fff0000

	seccompIoctlNotifRecv = 0xc0502100
	seccompIoctlNotifSend = 0xc0182101

	notifFlagContinue = 1 << 0
)

// seccompNotif / seccompNotifResp mirror struct seccomp_notif /
// struct seccomp_notif_resp from <linux/seccomp.h>. x/sys/unix doesn't
// expose these (they're new enough, and layout-fragile enough, that the
// package only ships the ioctl numbers under some build configs) so the
// layout is reproduced directly; field order and sizes must not change.
type seccompNotif struct {
	ID    uint64
	PID   uint32
	Flags uint32
	Data  seccompData
}

type seccompData struct {
	Nr                 int32
	Arch               uint32
	InstructionPointer uint64
	Args               [6]uint64
}

type seccompNotifResp struct {
	ID    uint64
	Val   int64
	Error int32
	Flags uint32
}

// buildMonitorFilter constructs a BPF program that routes every syscall in
// monitoredSyscalls to SECCOMP_RET_USER_NOTIF and allows everything else,
// following the same load-nr / compare-chain / default-action shape as
// sandbox.buildSeccompFilter, just with the action polarity flipped:
// monitor traps the small list and passes everything else, where sandbox
// denies the small list and passes everything else.
func buildMonitorFilter() []unix.SockFilter {
	n := len(monitoredSyscalls)
	prog := make([]unix.SockFilter, 0, n+2)

	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS,
		K:    0,
	})

	for i, nr := range monitoredSyscalls {
		jmpToNotify := uint8(n - i)
		prog = append(prog, unix.SockFilter{
			Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K,
			Jt:   jmpToNotify,
			Jf:   0,
			K:    nr,
		})
	}

	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_RET | unix.BPF_K,
		K:    seccompRetAllowLocal,
	})
	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_RET | unix.BPF_K,
		K:    seccompRetUserNotif,
	})

	return prog
}

// seccompBackend is the Linux interceptorBackend: install a notifying
// filter on the current process (inherited by every fork/exec child per
// §4.E) and run one goroutine per notify fd draining SECCOMP_IOCTL_NOTIF_RECV
// into classified RawEvents pushed onto the process's current session
// (currentProcessSession).
type seccompBackend struct {
	notifyFD int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newSeccompBackend() (interceptorBackend, error) {
	return &seccompBackend{stopCh: make(chan struct{}), doneCh: make(chan struct{})}, nil
}

func (b *seccompBackend) start() error {
	prog := buildMonitorFilter()

	if _, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0); errno != 0 {
		return fmt.Errorf("prctl(NO_NEW_PRIVS): %w", errno)
	}

	bpfProg := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}

	fd, _, errno := unix.RawSyscall6(unix.SYS_SECCOMP,
		seccompSetModeFilter,
		seccompFilterFlagNewListner,
		uintptr(unsafe.Pointer(&bpfProg)),
		0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("seccomp(SET_MODE_FILTER, NEW_LISTENER): %w", errno)
	}
	b.notifyFD = int(fd)

	go b.loop()
	return nil
}

func (b *seccompBackend) stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		unix.Close(b.notifyFD)
	})
	<-b.doneCh
	return nil
}

// loop drains notifications one at a time. The monitor never denies a
// syscall, so every response unconditionally CONTINUEs the real syscall —
// the kernel actually executes it and the traced process sees its normal
// return value. This is what makes the monitor observational rather than
// a sandbox: interception exists purely to record, never to enforce.
func (b *seccompBackend) loop() {
	defer close(b.doneCh)
	for {
		var notif seccompNotif
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.notifyFD),
			uintptr(seccompIoctlNotifRecv), uintptr(unsafe.Pointer(&notif)))
		if errno != 0 {
			select {
			case <-b.stopCh:
				return
			default:
			}
			if errno == unix.EINTR {
				continue
			}
			// ENOENT: the notifying process died between a wakeup and
			// our recv; there's nothing to respond to so move on.
			if errno == unix.ENOENT {
				continue
			}
			return
		}

		if events, ok := classifySyscall(int(notif.PID), notif.Data); ok {
			if s := currentProcessSession(); s != nil {
				now := time.Now()
				for _, event := range events {
					event.Time = now
					s.Queue.Push(event)
				}
			}
		}

		resp := seccompNotifResp{ID: notif.ID, Flags: notifFlagContinue}
		unix.Syscall(unix.SYS_IOCTL, uintptr(b.notifyFD),
			uintptr(seccompIoctlNotifSend), uintptr(unsafe.Pointer(&resp)))
	}
}

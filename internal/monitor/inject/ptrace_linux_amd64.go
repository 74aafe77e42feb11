//go:build linux && amd64

// Package inject attaches monitoring to a process that is already
// running, rather than one this program spawned itself (spec.md §4.F,
// GLOSSARY "Injection"). The original Windows implementation does this by
// writing a loader stub into the target and redirecting a thread to run
// it; on Linux the equivalent primitive is ptrace: seize the target,
// interrupt it just long enough to install a seccomp filter on its
// behalf via PTRACE_SEIZE's PTRACE_O_SUSPEND_SECCOMP-free path (the
// target installs its own filter, we only pause it around the syscall),
// and detach.
package inject

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Attach seizes pid, interrupts it at the next safe stopping point, and
// returns once the target is paused. The caller is then responsible for
// getting a seccomp filter installed in the target (via a PTRACE_POKETEXT
// call-injection of a small syscall stub, below) before calling Detach.
func Attach(pid int) error {
	if err := unix.PtraceSeize(pid); err != nil {
		return fmt.Errorf("inject: seize %d: %w", pid, err)
	}
	if err := unix.PtraceInterrupt(pid); err != nil {
		unix.PtraceDetach(pid)
		return fmt.Errorf("inject: interrupt %d: %w", pid, err)
	}
	if _, err := waitStopped(pid, 2*time.Second); err != nil {
		unix.PtraceDetach(pid)
		return fmt.Errorf("inject: wait for stop %d: %w", pid, err)
	}
	return nil
}

// Detach resumes pid's normal execution, leaving behind whatever state
// InstallFilter wrote into it.
func Detach(pid int) error {
	return unix.PtraceDetach(pid)
}

// InstallFilter injects a call to seccomp(2) into the stopped target so
// it installs filterBytes itself, then restores the target's original
// registers so execution resumes exactly where it was interrupted. This
// is the same register-save / inject-a-few-instructions / register-restore
// technique a debugger uses to call a function in a stopped inferior;
// unlike the DLL-injection approach it replaces, nothing is ever written
// into the target's code segment — only its register file, which is
// restored before returning, and a small scratch area below its stack
// pointer, which is left as written.
func InstallFilter(pid int, filterBytes []byte) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return fmt.Errorf("inject: getregs %d: %w", pid, err)
	}
	saved := regs

	scratch := regs.Rsp - 4096 // red zone + margin, well below the live stack
	if err := pokeBytes(pid, uintptr(scratch), filterBytes); err != nil {
		return fmt.Errorf("inject: write filter program %d: %w", pid, err)
	}

	// Arrange registers for a direct seccomp(SECCOMP_SET_MODE_FILTER, 0, &sock_fprog)
	// call via the syscall instruction at the target's current RIP — the
	// instruction byte itself is never modified, only argument registers
	// and RIP are redirected to a `syscall; int3` trampoline we also write
	// into the scratch area just ahead of the filter bytes.
	trampolineAddr := scratch - 16
	trampoline := []byte{0x0f, 0x05, 0xcc} // syscall; int3
	if err := pokeBytes(pid, uintptr(trampolineAddr), trampoline); err != nil {
		return fmt.Errorf("inject: write trampoline %d: %w", pid, err)
	}

	regs.Rip = uint64(trampolineAddr)
	regs.Rax = unix.SYS_SECCOMP
	regs.Rdi = 1 // SECCOMP_SET_MODE_FILTER
	regs.Rsi = 0
	regs.Rdx = uint64(scratch)
	if err := unix.PtraceSetRegs(pid, &regs); err != nil {
		return fmt.Errorf("inject: setregs %d: %w", pid, err)
	}

	if err := unix.PtraceCont(pid, 0); err != nil {
		return fmt.Errorf("inject: cont to trampoline %d: %w", pid, err)
	}
	if _, err := waitStopped(pid, 2*time.Second); err != nil {
		return fmt.Errorf("inject: wait for trampoline trap %d: %w", pid, err)
	}

	// Restore the target exactly as it was; the filter it just installed
	// is process state that survives the register rewind.
	if err := unix.PtraceSetRegs(pid, &saved); err != nil {
		return fmt.Errorf("inject: restore regs %d: %w", pid, err)
	}
	return nil
}

func pokeBytes(pid int, addr uintptr, data []byte) error {
	// PTRACE_POKETEXT writes one word at a time; a final partial word is
	// zero-padded, so up to 7 bytes past the end of data are overwritten
	// (scratch space here, so nothing the target relies on).
	for i := 0; i < len(data); i += 8 {
		end := i + 8
		if end > len(data) {
			end = len(data)
		}
		var word [8]byte
		copy(word[:], data[i:end])
		if _, err := unix.PtracePokeData(pid, addr+uintptr(i), word[:]); err != nil {
			return err
		}
	}
	return nil
}

func waitStopped(pid int, timeout time.Duration) (unix.WaitStatus, error) {
	deadline := time.Now().Add(timeout)
	var ws unix.WaitStatus
	for time.Now().Before(deadline) {
		wpid, err := unix.Wait4(pid, &ws, unix.WALL, nil)
		if err != nil {
			return ws, err
		}
		if wpid == pid && ws.Stopped() {
			return ws, nil
		}
		time.Sleep(time.Millisecond)
	}
	return ws, fmt.Errorf("timed out waiting for pid %d to stop", pid)
}

//go:build linux

package monitor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// reexecSubcommand is the hidden argv[1] the current binary recognizes
// when invoked as the spawn wrapper, mirroring sandbox.DenyInit's
// "_deny_init" convention. cmd/accessmonitor-init wires this into its
// own main() by calling WrapperMain(os.Args[1:]) before doing anything
// else, exactly the way wingthing's cmd/wt dispatches to DenyInit.
const reexecSubcommand = "_accessmonitor_init"

// Spawn starts name/args as a new participant of s: it re-execs the
// current binary under the wrapper subcommand, which installs this
// process's interceptors and completes the handshake before exec'ing the
// real target in its place (§4.E "forced suspend"). The parent blocks
// until the child signals its interceptors are active, so no access made
// by the real target before the filter is in place can be missed. If no
// signal arrives within timeout, the child is left running unmonitored:
// Spawn returns it without adding it as a participant, and logs a warning
// to the session's debug log when one is open.
func Spawn(ctx context.Context, s *Session, name string, args []string, timeout time.Duration) (*exec.Cmd, error) {
	exe := s.InitBinary
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve own executable: %w", err)
		}
	}

	hsPath, err := writeHandshake(s.Directory, handshakeContext{
		SessionID:  s.ID,
		Directory:  s.Directory,
		LogAspects: s.LogAspects,
		ParentPID:  os.Getpid(),
		InitBinary: s.InitBinary,
	})
	if err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	wrapArgs := append([]string{reexecSubcommand, hsPath, name}, args...)
	cmd := exec.CommandContext(ctx, exe, wrapArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", handshakeEnvVar, hsPath))

	if err := cmd.Start(); err != nil {
		removeHandshake(hsPath)
		return nil, fmt.Errorf("start wrapper: %w", err)
	}

	if err := waitForReady(hsPath, timeout); err != nil {
		if s.DebugLog != nil {
			s.DebugLog.Warn("spawned child is running unmonitored", "pid", cmd.Process.Pid, "error", err)
		}
		return cmd, nil
	}

	s.AddParticipant(cmd.Process.Pid)
	return cmd, nil
}

// WrapperMain is the body cmd/accessmonitor-init's main() delegates to
// when re-exec'd by Spawn. args is os.Args[1:]; a leading reexecSubcommand,
// which Spawn passes first, is skipped.
//
// It never returns on success: like DenyInit's eventual exec of the real
// agent, it execs the real target in place of itself once setup is done,
// so the real target becomes this OS process (inheriting the installed
// seccomp filter) rather than a child of it.
func WrapperMain(args []string) error {
	if len(args) > 0 && args[0] == reexecSubcommand {
		args = args[1:]
	}
	if len(args) < 2 {
		return fmt.Errorf("_accessmonitor_init: usage: <handshake-path> <cmd> [args...]")
	}
	hsPath, target, targetArgs := args[0], args[1], args[2:]

	ctx, err := readHandshake(hsPath)
	if err != nil {
		return fmt.Errorf("_accessmonitor_init: %w", err)
	}
	removeHandshake(hsPath)

	s, err := registry.join(ctx.SessionID, ctx.Directory, ctx.LogAspects, ctx.InitBinary)
	if err != nil {
		return fmt.Errorf("_accessmonitor_init: join session: %w", err)
	}
	setCurrentProcessSession(s)

	if err := interceptors.install(); err != nil {
		return fmt.Errorf("_accessmonitor_init: install interceptors: %w", err)
	}
	if err := startDrainer(s, os.Getpid()); err != nil {
		return fmt.Errorf("_accessmonitor_init: start drainer: %w", err)
	}

	if err := signalReady(hsPath); err != nil {
		return fmt.Errorf("_accessmonitor_init: signal ready: %w", err)
	}

	bin, err := exec.LookPath(target)
	if err != nil {
		return fmt.Errorf("_accessmonitor_init: resolve %s: %w", target, err)
	}
	argv := append([]string{bin}, targetArgs...)
	return execSelf(bin, argv, os.Environ())
}

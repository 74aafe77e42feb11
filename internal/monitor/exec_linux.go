//go:build linux

package monitor

import "golang.org/x/sys/unix"

// execSelf replaces the current process image with bin, the same way
// DenyInit's nested namespace setup ultimately hands off to the real
// agent binary. Using exec rather than a subprocess keeps the target's
// pid identical to the wrapper's, so the installed seccomp filter (which
// is a property of the process, not the argv) carries straight over.
func execSelf(bin string, argv, envv []string) error {
	return unix.Exec(bin, argv, envv)
}

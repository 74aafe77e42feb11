// Command accessmonitor-init is the re-exec wrapper bootstrap target: the
// Linux analogue of the Windows original's injected monitor library
// (spec.md §4.F, GLOSSARY "Injection"). internal/monitor.Spawn invokes it
// in place of the calling process's own binary so a spawned child installs
// its interceptors, completes the parent handshake, and execs the real
// target without ever loading cmd/amctl's own dependency graph (cobra,
// sqlite, yaml) into a process that's about to exec over itself anyway.
//
// Usage: accessmonitor-init [_accessmonitor_init] <handshake-file> <command> [args...]
// (Spawn passes the _accessmonitor_init word first; WrapperMain skips it.)
package main

import (
	"fmt"
	"os"

	"github.com/peterpjaspers/accessmonitor/internal/monitor"
)

func main() {
	if err := monitor.WrapperMain(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

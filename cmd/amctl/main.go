// Command amctl is the human-facing front end to the access monitor
// library: a reference build driver used for manual smoke-testing and as
// the demonstration caller of start_session/stop_session (spec.md §6).
// It plays the role cmd/wt played for wingthing — a small cobra root with
// one subcommand per operation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/peterpjaspers/accessmonitor/internal/logger"
)

var version = "dev"

func main() {
	if err := logger.Init("info", ""); err != nil {
		fmt.Fprintln(os.Stderr, "amctl: init logger:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "amctl",
		Short: "access monitor — observe file accesses of a program and its descendants",
		Long: "amctl starts an access-monitoring session, runs a command under it, and reports\n" +
			"which absolute paths the command (and everything it transitively spawned) read,\n" +
			"wrote, or deleted, with each path's effective mode and last-write time.",
	}
	root.AddCommand(
		runCmd(),
		aspectsCmd(),
		historyCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "amctl:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print amctl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

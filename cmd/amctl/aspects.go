package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/peterpjaspers/accessmonitor/internal/monitor"
)

var aspectDescriptions = []struct {
	name monitor.Aspect
	desc string
}{
	{monitor.RegisteredFunctions, "functions the interceptor has registered patches for"},
	{monitor.ParseLibrary, "library/module parsing during interceptor installation"},
	{monitor.PatchedFunction, "individual function patch application"},
	{monitor.PatchExecution, "control transfers through an installed patch"},
	{monitor.FileAccesses, "every classified file access, successful or not"},
	{monitor.WriteTime, "last-write-time bookkeeping for folded records"},
}

func aspectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aspects",
		Short: "List the diagnostic log aspects a session can enable",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, a := range aspectDescriptions {
				fmt.Fprintf(w, "%s\t%s\n", a.name, a.desc)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/peterpjaspers/accessmonitor/internal/config"
	"github.com/peterpjaspers/accessmonitor/internal/history"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the optional cross-session audit trail",
	}
	cmd.AddCommand(historyLastCmd(), historySinceCmd())
	return cmd
}

func openHistoryStore() (*history.Store, error) {
	cfgDir, err := config.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.HistoryDB == "" {
		return nil, fmt.Errorf("history_db is not configured (set it in %s/config.yaml)", cfgDir)
	}
	return history.Open(cfg.HistoryDB)
}

func historyLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the most recently recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer st.Close()

			last, err := st.Last()
			if err != nil {
				return fmt.Errorf("query last session: %w", err)
			}
			if last == nil {
				fmt.Println("no sessions recorded")
				return nil
			}

			fmt.Printf("session %d: %s - %s  directory=%s  participants=%d\n",
				last.SessionID, last.StartedAt.Format(time.RFC3339), last.StoppedAt.Format(time.RFC3339),
				last.Directory, last.Participants)

			paths := make([]string, 0, len(last.Records))
			for p := range last.Records {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tMODE\tSUCCESS\tFAILED")
			for _, p := range paths {
				r := last.Records[p]
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p, r.EffectiveMode, r.SuccessCount, r.FailureCount)
			}
			return w.Flush()
		},
	}
}

func historySinceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths-written-since <duration>",
		Short: "List paths written or deleted in sessions recorded within the last <duration>, e.g. 24h",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("parse duration %q: %w", args[0], err)
			}

			st, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer st.Close()

			paths, err := st.PathsWrittenSince(time.Now().Add(-d))
			if err != nil {
				return fmt.Errorf("query paths written since: %w", err)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
}

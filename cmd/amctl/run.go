package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/peterpjaspers/accessmonitor/internal/config"
	"github.com/peterpjaspers/accessmonitor/internal/history"
	"github.com/peterpjaspers/accessmonitor/internal/monitor"
	"github.com/peterpjaspers/accessmonitor/internal/record"
)

func runCmd() *cobra.Command {
	var dirFlag string
	var aspectsFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command under a monitoring session and report its file accesses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.UserConfigDir()
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			cfg, err := config.Load(cfgDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if aspectsFlag != "" {
				cfg.LogAspects = aspectsFlag
			}

			sessionDir, err := cfg.SessionDirectory(dirFlag)
			if err != nil {
				return fmt.Errorf("resolve session directory: %w", err)
			}

			started := time.Now().UTC()
			s, err := monitor.StartSession(monitor.Options{
				Directory:        sessionDir,
				ID:               monitor.NewSessionID,
				LogAspects:       cfg.Aspects(),
				HandshakeTimeout: cfg.HandshakeTimeoutSeconds,
				InitBinary:       cfg.InitBinary,
			})
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}

			child, err := monitor.Spawn(context.Background(), s, args[0], args[1:], cfg.HandshakeTimeout())
			if err != nil {
				monitor.StopSession(s)
				return fmt.Errorf("spawn %s: %w", args[0], err)
			}
			waitErr := child.Wait()

			result, foldErr := monitor.StopSession(s)
			if foldErr != nil {
				return fmt.Errorf("stop session: %w", foldErr)
			}

			if cfg.HistoryDB != "" {
				stopped := time.Now().UTC()
				if err := recordHistory(cfg.HistoryDB, s.ID, started, stopped, sessionDir, len(s.Participants()), result); err != nil {
					fmt.Fprintln(os.Stderr, "amctl: record history:", err)
				}
			}

			if jsonOut || !term.IsTerminal(int(os.Stdout.Fd())) {
				if err := printJSON(result); err != nil {
					return err
				}
			} else {
				printTable(result)
			}

			if waitErr != nil {
				return fmt.Errorf("%s: %w", args[0], waitErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "dir", "", "session base directory (default: config, then project root)")
	cmd.Flags().StringVar(&aspectsFlag, "log-aspects", "", "comma-separated debug log aspects (overrides config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "force JSON output even on a terminal")
	return cmd
}

func recordHistory(dsn string, sessionID int, started, stopped time.Time, dir string, participants int, records map[string]*record.AccessRecord) error {
	st, err := history.Open(dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.Record(history.SessionSummary{
		SessionID:    sessionID,
		StartedAt:    started,
		StoppedAt:    stopped,
		Directory:    dir,
		Participants: participants,
		Records:      records,
	})
}

func printJSON(result map[string]*record.AccessRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printTable(result map[string]*record.AccessRecord) {
	paths := make([]string, 0, len(result))
	for p := range result {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tMODE\tSUCCESS\tFAILED\tLAST WRITE")
	for _, p := range paths {
		r := result[p]
		lastWrite := "-"
		if !r.LastWriteTime.IsZero() {
			lastWrite = r.LastWriteTime.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", p, r.EffectiveMode, r.SuccessCount, r.FailureCount, lastWrite)
	}
	w.Flush()
}

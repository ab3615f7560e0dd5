package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hpcsched/kestrel/internal/eventlog"
	"github.com/hpcsched/kestrel/internal/kvs"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
}

// jobLog is the JSON form of one job's committed eventlog.
type jobLog struct {
	JobID  uint64           `json:"jobid"`
	Events []eventlog.Entry `json:"events"`
}

// NewLogCommand creates the log command, which prints a job's eventlog.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <jobid>",
		Short: "Print a job's eventlog",
		Long: `Print the committed eventlog of one job, in append order.

Example:
  kestrel log --db ./kestrel.db 42
  kestrel log --db ./kestrel.db 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLog(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite eventlog store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showLog(opts *LogOptions, arg string, cmd *cobra.Command) error {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return failf(ExitUsage, "invalid job id %q: %w", arg, err)
	}

	store, err := kvs.Open(opts.Database)
	if err != nil {
		return failf(ExitUsage, "open store: %w", err)
	}
	defer store.Close()

	data, err := store.ReadLog(cmd.Context(), kvs.EventlogKey(id))
	if err != nil {
		return failf(ExitFailure, "read eventlog: %w", err)
	}
	entries, err := eventlog.ParseLog(data)
	if err != nil {
		return failf(ExitFailure, "corrupt eventlog: %w", err)
	}
	if len(entries) == 0 {
		return failf(ExitUsage, "no eventlog for job %d", id)
	}

	w := cmd.OutOrStdout()
	if opts.Format == formatJSON {
		return json.NewEncoder(w).Encode(jobLog{JobID: id, Events: entries})
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%.6f %s", e.Timestamp, e.Name)
		if len(e.Context) > 0 {
			fmt.Fprintf(w, " %v", e.Context)
		}
		fmt.Fprintln(w)
	}
	return nil
}

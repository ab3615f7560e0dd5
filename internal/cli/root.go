// Package cli implements the kestrel command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Output formats accepted by the --format flag.
const (
	formatText = "text"
	formatJSON = "json"
)

// RootOptions carries the persistent flags down to subcommands.
type RootOptions struct {
	Verbose bool
	Format  string
}

// NewRootCommand creates the root command for the kestrel CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kestrel",
		Short: "Kestrel job-manager event engine",
		Long: "Kestrel runs the job-manager event engine: a durable, batched\n" +
			"job eventlog with broadcast state notifications.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.Format {
			case formatText, formatJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format %q, want %s or %s",
					opts.Format, formatText, formatJSON)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", formatText, "output format (text or json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

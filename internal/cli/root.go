// Package cli implements the cooldb command-line client.
//
// Commands talk to a CoolDB server through the sdk package. Every command
// prints JSON on stdout; failures are returned to the caller, which prints
// them on stderr and exits with status 1.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/birbparty/cooldb/sdk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	cliName        = "cooldb"
	cliDescription = "cooldb - command-line client for CoolDB key-value servers"
)

// GlobalOptions holds options that are common to all commands
type GlobalOptions struct {
	// Server is the CoolDB base address
	Server string

	// Transport selects the HTTP implementation: http or fasthttp
	Transport string

	// Retries is the number of retries for failed exchanges, 0 disables them
	Retries int

	// Timeout bounds each exchange
	Timeout time.Duration

	// Verbose logs every exchange on stderr
	Verbose bool

	// Headers are extra request headers in Name=Value form
	Headers []string

	log *logrus.Entry
}

// NewRootCommand creates the root cooldb command with all subcommands
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   cliName,
		Short: cliDescription,
		Long: `cooldb reads and writes entries on a CoolDB server.

The server address comes from --server, then the COOLDB_SERVER environment
variable, then http://localhost:8080.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			opts.log = telemetry.NewLogger(&telemetry.Config{
				LogLevel:    level,
				LogFormat:   "text",
				ServiceName: cliName,
			}, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOrDefault("COOLDB_SERVER", sdk.DefaultBaseURL),
		"CoolDB server address")
	cmd.PersistentFlags().StringVar(&opts.Transport, "transport", "http",
		"HTTP implementation: http or fasthttp")
	cmd.PersistentFlags().IntVar(&opts.Retries, "retries", 0,
		"retry failed exchanges up to this many times")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second,
		"timeout for each exchange")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"log every exchange on stderr")
	cmd.PersistentFlags().StringArrayVarP(&opts.Headers, "header", "H", nil,
		"extra request header as Name=Value (repeatable)")

	cmd.AddCommand(
		NewSetCommand(opts),
		NewGetCommand(opts),
		NewListCommand(opts),
		NewStatusCommand(opts),
		NewSnapshotCommand(opts),
	)

	return cmd
}

// Execute runs the CLI with args and returns the process exit status
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package cli

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/birbparty/cooldb/sdk"
	"github.com/spf13/cobra"
)

// NewSetCommand creates the set command.
//
// The value argument is parsed as JSON when possible and sent as a plain
// string otherwise, so `cooldb set n 3` stores a number and
// `cooldb set greeting hello` stores "hello".
func NewSetCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value under a key",
		Example: `  # Store a string
  cooldb set greeting hello

  # Store a JSON document
  cooldb set user '{"name":"ada","age":36}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				value, err := client.SetValue(cmd.Context(), args[0], parseValue(args[1]), callOpts...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), value)
			})
		},
	}
}

// NewGetCommand creates the get command
func NewGetCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				value, err := client.GetValue(cmd.Context(), args[0], callOpts...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), value)
			})
		},
	}
}

// NewListCommand creates the list command
func NewListCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every key",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				keys, err := client.ListKeys(cmd.Context(), callOpts...)
				if err != nil {
					return err
				}
				if keys == nil {
					keys = []interface{}{}
				}
				return printJSON(cmd.OutOrStdout(), keys)
			})
		},
	}
}

// NewStatusCommand creates the status command
func NewStatusCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the server status line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				status, err := client.GetStatus(cmd.Context(), callOpts...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

// withClient builds a client for one command and closes it afterwards
func withClient(opts *GlobalOptions, fn func(*sdk.Client, []sdk.CallOption) error) error {
	callOpts, err := callOptions(opts)
	if err != nil {
		return err
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client, callOpts)
}

// parseValue decodes arg as a single JSON value, falling back to the raw string
func parseValue(arg string) interface{} {
	dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return arg
	}
	// `1 2` is two values, not one
	if _, err := dec.Token(); err != io.EOF {
		return arg
	}
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

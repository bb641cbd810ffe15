package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/birbparty/cooldb/internal/snapshot"
	"github.com/birbparty/cooldb/sdk"
	"github.com/spf13/cobra"
)

// SnapshotOptions holds options for the snapshot commands
type SnapshotOptions struct {
	*GlobalOptions
	Bucket string
	Name   string
	File   string
	Key    string
	Date   string
}

// NewSnapshotCommand creates the snapshot command group
func NewSnapshotCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &SnapshotOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, restore and list snapshots",
		Long: `Snapshots are JSON-lines documents with one {"key":...,"value":...} object
per line. They are written to a file, to stdout, or to an S3-compatible bucket
configured through the SNAPSHOT_* environment variables and --bucket.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Bucket, "bucket", "", "bucket to upload to or restore from (default $SNAPSHOT_BUCKET)")

	cmd.AddCommand(
		newSnapshotExportCommand(opts),
		newSnapshotRestoreCommand(opts),
		newSnapshotListCommand(opts),
	)

	return cmd
}

func newSnapshotExportCommand(opts *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry",
		Example: `  # Print the snapshot document
  cooldb snapshot export

  # Upload it as <prefix>/<date>/nightly.jsonl
  cooldb snapshot export --bucket backups --name nightly`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts.GlobalOptions, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				var doc bytes.Buffer
				count, err := snapshot.NewExporter(client).Export(cmd.Context(), &doc)
				if err != nil {
					return err
				}

				switch {
				case opts.Bucket != "" || os.Getenv("SNAPSHOT_BUCKET") != "":
					uploader, err := newUploader(opts)
					if err != nil {
						return err
					}
					name := opts.Name
					if name == "" {
						name = "snapshot-" + time.Now().UTC().Format("150405")
					}
					key, err := uploader.Upload(cmd.Context(), name, &doc)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"entries": count, "object": key})

				case opts.File != "":
					if err := os.WriteFile(opts.File, doc.Bytes(), 0644); err != nil {
						return fmt.Errorf("failed to write snapshot: %w", err)
					}
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"entries": count, "file": opts.File})

				default:
					_, err := io.Copy(cmd.OutOrStdout(), &doc)
					return err
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "snapshot name when uploading")
	cmd.Flags().StringVarP(&opts.File, "output", "o", "", "write the snapshot to this file")

	return cmd
}

func newSnapshotRestoreCommand(opts *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Set every entry of a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc io.ReadCloser
			switch {
			case opts.Key != "":
				uploader, err := newUploader(opts)
				if err != nil {
					return err
				}
				if doc, err = uploader.Download(cmd.Context(), opts.Key); err != nil {
					return err
				}
			case opts.File != "":
				f, err := os.Open(opts.File)
				if err != nil {
					return fmt.Errorf("failed to open snapshot: %w", err)
				}
				doc = f
			default:
				return fmt.Errorf("one of --input or --object is required")
			}
			defer doc.Close()

			return withClient(opts.GlobalOptions, func(client *sdk.Client, callOpts []sdk.CallOption) error {
				count, err := snapshot.NewImporter(client).Import(cmd.Context(), doc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"entries": count})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "input", "i", "", "read the snapshot from this file")
	cmd.Flags().StringVar(&opts.Key, "object", "", "read the snapshot from this bucket object")

	return cmd
}

func newSnapshotListCommand(opts *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded snapshots for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().UTC()
			if opts.Date != "" {
				parsed, err := time.Parse("2006-01-02", opts.Date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				date = parsed
			}

			uploader, err := newUploader(opts)
			if err != nil {
				return err
			}
			keys, err := uploader.List(cmd.Context(), date)
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []string{}
			}
			return printJSON(cmd.OutOrStdout(), keys)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "day to list as YYYY-MM-DD (default today, UTC)")

	return cmd
}

func newUploader(opts *SnapshotOptions) (*snapshot.S3Uploader, error) {
	config, err := snapshot.NewConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if opts.Bucket != "" {
		config.Bucket = opts.Bucket
	}
	return snapshot.NewS3Uploader(config)
}

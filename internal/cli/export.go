package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogotex/records/internal/config"
	"github.com/gogotex/records/internal/record/service"
	"github.com/gogotex/records/internal/snapshot"
	"github.com/gogotex/records/internal/storage"
	"github.com/gogotex/records/pkg/logger"
	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Owner  string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one owner's records as a gzip-compressed JSON snapshot",
		Long: `Export reads every record of --owner from the configured backend.

With --output the snapshot is written to that file ("-" for stdout).
Otherwise it is uploaded to MinIO and the object key is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner identity whose records are exported")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the snapshot to a file instead of object storage")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	rdb, err := connectRedis(ctx, cfg)
	if err != nil && cfg.Records.Backend == config.BackendRedis {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	be, err := openBackend(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer be.close()

	svc := service.New(be.store, service.Options{StrictDelete: cfg.Records.StrictDelete})

	if opts.Output != "" {
		return writeSnapshotFile(ctx, svc, opts.Owner, opts.Output, out)
	}

	if cfg.MinIO.Endpoint == "" {
		return errors.New("export: MINIO_ENDPOINT is not set; use --output to write a local file")
	}
	objects, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	res, err := snapshot.NewExporter(svc, objects).Export(ctx, opts.Owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "key: %s\n", res.Key)
	if res.URL != "" {
		fmt.Fprintf(out, "url: %s\n", res.URL)
	}
	return nil
}

func writeSnapshotFile(ctx context.Context, records snapshot.Lister, owner, path string, out io.Writer) error {
	list, err := records.List(ctx, owner)
	if err != nil {
		return err
	}
	snap := &snapshot.Snapshot{Owner: owner, TakenAt: time.Now().Unix(), Records: list}

	if path == "-" {
		return snapshot.Encode(out, snap)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := snapshot.Encode(f, snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(out, "wrote %d records to %s\n", len(list), path)
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oio-go/blobkit/backend/s3"
	"github.com/oio-go/blobkit/config"
	"github.com/oio-go/blobkit/internal/cli/output"
)

var (
	lsPrefix    string
	lsServiceID string
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List objects in the configured S3 back-end",
	Long: `ls enumerates objects under --prefix in the S3 bucket named by the
config file's s3 section (see --config on the root command).

Examples:
  blobctl ls --config ./blobkit.yaml --prefix chunks/
  blobctl ls --config ./blobkit.yaml --prefix chunks/ --service-id rawx-1`,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsPrefix, "prefix", "", "Key prefix to list")
	lsCmd.Flags().StringVar(&lsServiceID, "service-id", "", "Service ID to report for every listed key")
}

type lsRow struct {
	ServiceID string
	Key       string
}

type lsResult struct {
	rows []lsRow
}

func (r *lsResult) Headers() []string { return []string{"SERVICE ID", "KEY"} }

func (r *lsResult) Rows() [][]string {
	out := make([][]string, len(r.rows))
	for i, row := range r.rows {
		out[i] = []string{row.ServiceID, row.Key}
	}
	return out
}

func runLs(cmd *cobra.Command, args []string) error {
	if Flags.Config == "" {
		return fmt.Errorf("ls requires --config pointing at a config file with an s3 section")
	}

	cfg, err := config.Load(Flags.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	client, err := s3.NewClientFromConfig(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.ForcePathStyle)
	if err != nil {
		return fmt.Errorf("build s3 client: %w", err)
	}

	s3cfg := s3.Config{Client: client, Bucket: cfg.S3.Bucket, PartSize: int64(cfg.S3.PartSize)}
	listing := s3.NewListing(ctx, s3cfg, lsPrefix, lsServiceID)
	if st := listing.Prepare(); !st.Ok() {
		return fmt.Errorf("prepare: %s", st.Explanation)
	}

	result := &lsResult{}
	for {
		id, key, ok := listing.Next()
		if !ok {
			break
		}
		result.rows = append(result.rows, lsRow{ServiceID: id, Key: key})
	}

	return printer().Print(result)
}

var _ output.TableRenderer = (*lsResult)(nil)

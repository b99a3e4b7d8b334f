package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oio-go/blobkit/backend/local"
	"github.com/oio-go/blobkit/slice"
)

var (
	downloadOffset uint64
	downloadSize   uint64
)

var downloadCmd = &cobra.Command{
	Use:   "download <src-path> <dst-file>",
	Short: "Download a file from the local back-end",
	Long: `Download streams src-path's contents out of the local back-end into
dst-file via the Download transaction, optionally restricted to a byte
range.

Examples:
  blobctl download /var/blobkit/chunks/report.bin ./report.bin
  blobctl download /var/blobkit/chunks/report.bin ./slice.bin --offset 1024 --size 4096`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Uint64Var(&downloadOffset, "offset", 0, "Byte offset to start reading from")
	downloadCmd.Flags().Uint64Var(&downloadSize, "size", 0, "Number of bytes to read (0 means to end of file)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	down := local.NewDownload(src, local.DefaultConfig())
	if downloadOffset != 0 || downloadSize != 0 {
		if st := down.SetRange(downloadOffset, downloadSize); !st.Ok() {
			return fmt.Errorf("set range: %s", st.Explanation)
		}
	}
	if st := down.Prepare(); !st.Ok() {
		return fmt.Errorf("prepare: %s", st.Explanation)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	var total int64
	for !down.IsEof() {
		s := slice.New()
		if st := down.Read(s); !st.Ok() {
			return fmt.Errorf("read: %s", st.Explanation)
		}
		if s.Len() == 0 {
			continue
		}
		if _, err := out.Write(s.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		total += int64(s.Len())
	}

	printer().Success(fmt.Sprintf("downloaded %s -> %s (%d bytes)", src, dst, total))
	return nil
}

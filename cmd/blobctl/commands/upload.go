package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oio-go/blobkit/backend/local"
	"github.com/oio-go/blobkit/slice"
)

const uploadChunkSize = 1 << 20

var uploadCmd = &cobra.Command{
	Use:   "upload <src-file> <dst-path>",
	Short: "Upload a file to the local back-end",
	Long: `Upload streams src-file's contents into dst-path via the local
back-end's atomic write-then-rename Upload transaction.

Examples:
  blobctl upload ./report.bin /var/blobkit/chunks/report.bin`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	up := local.NewUpload(dst, local.DefaultConfig())
	if st := up.Prepare(); !st.Ok() {
		return fmt.Errorf("prepare: %s", st.Explanation)
	}

	buf := make([]byte, uploadChunkSize)
	var total int64
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			s := slice.FromBytes(buf[:n])
			if st := up.Write(s); !st.Ok() {
				_ = up.Abort()
				return fmt.Errorf("write: %s", st.Explanation)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = up.Abort()
			return fmt.Errorf("read %s: %w", src, readErr)
		}
	}

	if st := up.Commit(); !st.Ok() {
		return fmt.Errorf("commit: %s", st.Explanation)
	}

	printer().Success(fmt.Sprintf("uploaded %s -> %s (%d bytes)", src, dst, total))
	return nil
}

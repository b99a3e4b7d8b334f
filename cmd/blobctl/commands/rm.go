package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oio-go/blobkit/backend/local"
	"github.com/oio-go/blobkit/internal/cli/prompt"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file from the local back-end",
	Long: `rm stats then unlinks path via the local back-end's Removal
transaction.

Examples:
  blobctl rm /var/blobkit/chunks/report.bin
  blobctl rm /var/blobkit/chunks/report.bin --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	path := args[0]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove %s", path), rmForce)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if !ok {
		printer().Println("aborted")
		return nil
	}

	r := local.NewRemoval(path)
	if st := r.Prepare(); !st.Ok() {
		return fmt.Errorf("prepare: %s", st.Explanation)
	}
	if st := r.Commit(); !st.Ok() {
		return fmt.Errorf("commit: %s", st.Explanation)
	}

	printer().Success(fmt.Sprintf("removed %s", path))
	return nil
}

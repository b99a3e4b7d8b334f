// Package commands implements the blobctl CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oio-go/blobkit/internal/cli/output"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Flags holds the global flags synced from the root command's
// PersistentPreRun, mirroring the teacher's cmdutil.Flags pattern.
var Flags struct {
	Output  string
	NoColor bool
	Config  string
}

var rootCmd = &cobra.Command{
	Use:   "blobctl",
	Short: "blobctl - direct client for the blobkit back-ends",
	Long: `blobctl drives blobkit's back-ends (local filesystem, S3) directly,
without going through a running server.

Use "blobctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Flags.Output, _ = cmd.Flags().GetString("output")
		Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		Flags.Config, _ = cmd.Flags().GetString("config")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (for commands needing back-end credentials)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
}

// printer builds an output.Printer from the global flags.
func printer() *output.Printer {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		format = output.FormatTable
	}
	return output.NewPrinter(os.Stdout, format, !Flags.NoColor)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("blobctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}

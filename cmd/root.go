package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azul-dupescan",
	Short: "Find duplicate files in very large directory trees",
	Long: `Dupescan walks one or more directory trees and reports files whose content
already appeared earlier in the scan.

Files are hashed in parallel batches and every digest is checked against a
fixed size bloom filter, so memory use stays bounded no matter how many files
are scanned. Filter hits are confirmed against a digest index (and optionally
a byte comparison) before being reported.

Settings are read from defaults, an optional yaml file named by DS_CONFIG and
DS_ prefixed environment variables, in that order. Command line flags win over all of them.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

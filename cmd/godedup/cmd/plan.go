package cmd

import (
	"github.com/spf13/cobra"
)

var planOpts runOptions

var planCmd = &cobra.Command{
	Use:   "plan [root]",
	Short: "Show which duplicates would be moved, without moving them",
	Long: `Plan runs the full scan and grouping and reports where every duplicate
would be moved, without creating the quarantine directory or touching any
file. It is equivalent to "scan --dry-run".

Example:
  godedup plan ~/Pictures --keep shortest-path`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOpts.keep, "keep", "k", "",
		"Keeper policy (first, oldest, newest, shortest-path)")
	planCmd.Flags().StringVar(&planOpts.reportPath, "report", "",
		"Path to save JSON report (optional)")
	planCmd.Flags().BoolVar(&planOpts.noProgress, "no-progress", false,
		"Disable the hashing progress bar")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts := planOpts
	opts.dryRun = true
	return executeRun(cmd, args, opts)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tanq16/splitdl/internal/utils"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [LIST_FILE] [OPTIONS]",
		Short: "Download every URL in a list file (text or YAML)",
		Long: `Download every URL in a list file.

Text lists hold one "URL [OUTPUT]" pair per line; blank lines and lines
starting with # are ignored. Files ending in .yaml or .yml hold a list of
entries with a "link" and an optional "op" output path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := utils.ReadDownloadList(args[0])
			if err != nil {
				return err
			}
			return runJobs(cmd, jobs)
		},
	}
}

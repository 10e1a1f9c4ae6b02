package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanq16/splitdl/internal/output"
	"github.com/tanq16/splitdl/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT...]",
		Short: "Remove chunk files left behind for the given output paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, outputPath := range args {
				if err := utils.CleanFunction(outputPath); err != nil {
					errs = append(errs, fmt.Errorf("clean %s: %w", outputPath, err))
					continue
				}
				output.PrintSuccess(fmt.Sprintf("Chunk files cleaned up for %s", outputPath))
			}
			return errors.Join(errs...)
		},
	}
}

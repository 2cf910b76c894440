package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytqdgo/internal/cleanup"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove incomplete download files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, err := cleanup.RemovePartials(cfg.DownloadDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range res.Failed {
				fmt.Fprintf(out, "Failed to remove %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d incomplete files, %d complete downloads remain\n", len(res.Removed), res.Remaining)
			return nil
		},
	}
}

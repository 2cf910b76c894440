package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytqdgo/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check for yt-dlp and FFmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := deps.CheckBinaries(deps.Requirements(cfg.FFmpegPath))
			rows := make([][]string, 0, len(results))
			missing := 0
			for _, s := range results {
				state := "ok"
				switch {
				case !s.Available && s.Optional:
					state = "missing (optional)"
				case !s.Available:
					state = "missing"
					missing++
				}
				rows = append(rows, []string{s.Name, state, s.Command, s.Description, s.Detail})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Name", "Status", "Command", "Used for", "Detail"}, rows, nil))
			if missing > 0 {
				return fmt.Errorf("%d required dependencies missing", missing)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ytqdgo/internal/storage"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := storage.OpenHistory(cfg.DataDir)
			if err != nil {
				return err
			}
			defer history.Close()

			records, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No downloads recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					strconv.FormatInt(r.Id, 10),
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					r.Status,
					r.Title,
					r.Locator,
					r.Path,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Time", "Status", "Title", "URL", "Path"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	return cmd
}

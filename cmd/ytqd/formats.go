package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ytqdgo/internal/download"
	"ytqdgo/internal/extractor"
	"ytqdgo/internal/logging"
	"ytqdgo/internal/presets"
	"ytqdgo/internal/utils"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats URL",
		Short: "List format presets with estimated sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			url := args[0]
			if !utils.ValidateLocator(url) {
				return errors.New("invalid YouTube URL")
			}

			logger, err := logging.New(logging.Options{Level: cfg.Level(), Console: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer logger.Close()

			metadata := extractor.NewMetadata(cfg.MetadataCacheTTL, cfg.MetadataConcurrency, logger.Logger)
			info, err := metadata.Fetch(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("fetch formats: %w", err)
			}

			rows := make([][]string, 0)
			for _, e := range presets.Estimates(info.Formats) {
				size := "Unknown"
				if e.SizeBytes > 0 {
					size = download.FormatBytes(float64(e.SizeBytes))
				}
				rows = append(rows, []string{e.Name, size})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, info.Title)
			fmt.Fprint(out, renderTable([]string{"Preset", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ytqdgo/internal/download"
	"ytqdgo/internal/presets"
)

// consoleNotifier prints worker progress on one rewritten line.
type consoleNotifier struct {
	mu       sync.Mutex
	out      io.Writer
	finished chan download.Report
}

func (n *consoleNotifier) QueueChanged(int) {}

func (n *consoleNotifier) Progress(p download.Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "\r%s", p.Status)
}

func (n *consoleNotifier) Status(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "\nStatus: %s", message)
}

func (n *consoleNotifier) Finished(r download.Report) {
	n.finished <- r
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get URL...",
		Short: "Download one or more videos in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if format != "" {
				if _, ok := presets.Lookup(presets.StripSize(format)); !ok {
					return fmt.Errorf("unknown format %q (see `ytqd formats`)", format)
				}
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			notifier := &consoleNotifier{out: out, finished: make(chan download.Report, len(args))}
			ctrl := a.startController(notifier)

			queued := 0
			for _, url := range args {
				entry, err := ctrl.Enqueue(url, format)
				if err != nil {
					fmt.Fprintf(out, "Skipping %s: %v\n", url, err)
					continue
				}
				fmt.Fprintf(out, "Queued %s\n", entry.DisplayText())
				queued++
			}
			if queued == 0 {
				return errors.New("nothing to download")
			}
			if err := ctrl.Start(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			failed := 0
			for i := 0; i < queued; i++ {
				select {
				case r := <-notifier.finished:
					if last := ctrl.Snapshot().Last; last != nil && last.Id == r.ItemId {
						text := last.DisplayText()
						if r.Success {
							text += " | " + r.Message
						}
						fmt.Fprintf(out, "\n%s\n", text)
					} else {
						fmt.Fprintf(out, "\n%s: %s\n", r.Locator, r.Message)
					}
					if !r.Success {
						failed++
					}
				case <-runCtx.Done():
					ctrl.Clear()
					ctrl.Cancel()
					return runCtx.Err()
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, queued)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Format preset, e.g. \"Audio Only (MP3)\"")
	return cmd
}

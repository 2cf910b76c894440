package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ytqdgo/internal/cleanup"
	"ytqdgo/internal/controller"
	"ytqdgo/internal/handler"
	"ytqdgo/internal/metrics"
	"ytqdgo/internal/websocket"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var static string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket queue server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, a, static)
		},
	}
	cmd.Flags().StringVar(&static, "static", "", "Directory of static files served at /")
	return cmd
}

func serve(ctx context.Context, a *app, static string) error {
	logger := a.logger.Logger

	hub := websocket.NewHub(logger)
	stats := metrics.New()
	ctrl := a.startController(controller.Notifiers{hub, stats})

	go hub.Run(ctx)
	go hub.StartTicker(ctx, 10*time.Second)

	sweeper, err := cleanup.NewSweeper(a.cfg.DownloadDir, a.cfg.CleanupSchedule, func() bool {
		return ctrl.Snapshot().State == controller.StateDownloading
	}, logger)
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	r := handler.NewRouter(handler.Routes{
		Queue:     ctrl,
		History:   a.history,
		Formats:   a.metadata,
		Websocket: hub.WsHandler,
		Metrics:   stats.Handler(),
		Static:    static,
	})

	server := &http.Server{Addr: ":" + a.cfg.Port, Handler: r}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
	}()

	logger.Info("Server starting", "port", a.cfg.Port, "downloads", a.cfg.DownloadDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	logger.Info("Server exited")
	return nil
}

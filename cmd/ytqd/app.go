package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"ytqdgo/internal/config"
	"ytqdgo/internal/controller"
	"ytqdgo/internal/deps"
	"ytqdgo/internal/extractor"
	"ytqdgo/internal/logging"
	"ytqdgo/internal/storage"
)

// app holds the components shared by serve and get.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	lock     *flock.Flock
	history  *storage.History
	metadata *extractor.Metadata
	ctrl     *controller.Controller
}

func openApp(cfg config.Config) (*app, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Level(), LogFile: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	a.lock = flock.New(filepath.Join(cfg.DataDir, "ytqd.lock"))
	ok, err := a.lock.TryLock()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		a.lock = nil
		a.Close()
		return nil, errors.New("another ytqd instance is using " + cfg.DataDir)
	}

	a.history, err = storage.OpenHistory(cfg.DataDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("History opened", "path", a.history.Path())

	a.metadata = extractor.NewMetadata(cfg.MetadataCacheTTL, cfg.MetadataConcurrency, logger.Logger)

	if _, found := deps.FindFFmpeg(cfg.FFmpegPath); !found {
		logger.Warn("FFmpeg not found; merged formats and MP3 extraction will fail")
	}
	return a, nil
}

// startController wires the download controller to notifier.
func (a *app) startController(notifier controller.Notifier) *controller.Controller {
	cfg := a.cfg
	a.ctrl = controller.New(controller.Deps{
		Extractor:  extractor.NewYTDLP(a.logger.Logger),
		Titles:     a.metadata,
		History:    a.history,
		Notifier:   notifier,
		Transcoder: deps.Locator(cfg.FFmpegPath),
		Logger:     a.logger.Logger,
	}, controller.Settings{
		DownloadDir:       cfg.DownloadDir,
		OutputTemplate:    cfg.OutputTemplate,
		Retries:           cfg.Retries,
		FragmentRetries:   cfg.FragmentRetries,
		RetryBudget:       cfg.RetryBudget,
		RetryBackoff:      cfg.RetryBackoff,
		AdvanceDelay:      cfg.AdvanceDelay,
		RestrictFilenames: true,
	})
	return a.ctrl
}

func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Failed to close history", "error", err)
		}
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			a.logger.Warn("Failed to release lock", "error", err)
		}
	}
	a.logger.Close()
}

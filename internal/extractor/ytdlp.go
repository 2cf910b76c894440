package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"ytqdgo/internal/download"
	"ytqdgo/internal/models"
	"ytqdgo/internal/utils"
)

const progressInterval = 500 * time.Millisecond

// runFunc executes dl for locator, passing progress updates to progress.
type runFunc func(ctx context.Context, dl *ytdlp.Command, locator string, progress func(ytdlp.ProgressUpdate)) (*ytdlp.Result, error)

// YTDLP downloads through the yt-dlp binary.
type YTDLP struct {
	logger *slog.Logger
	run    runFunc
}

func NewYTDLP(logger *slog.Logger) *YTDLP {
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{logger: logger, run: runCommand}
}

func runCommand(ctx context.Context, dl *ytdlp.Command, locator string, progress func(ytdlp.ProgressUpdate)) (*ytdlp.Result, error) {
	dl.ProgressFunc(progressInterval, progress)
	return dl.Run(ctx, locator)
}

// Command builds the yt-dlp invocation for opts.
func (y *YTDLP) Command(opts download.Options) *ytdlp.Command {
	dl := ytdlp.New().
		Continue().
		PrintJSON().
		Output(opts.OutputTemplate)

	if opts.RestrictFilenames {
		dl.RestrictFilenames()
	}
	if opts.Format != "" {
		dl.Format(opts.Format)
	}
	if opts.Retries > 0 {
		dl.Retries(strconv.Itoa(opts.Retries))
	}
	if opts.FragmentRetries > 0 {
		dl.FragmentRetries(strconv.Itoa(opts.FragmentRetries))
	}
	if opts.FFmpegLocation != "" {
		dl.FFmpegLocation(opts.FFmpegLocation)
	}
	if pp := opts.PostProcess; pp != nil {
		dl.ExtractAudio().AudioFormat(pp.Codec)
		if pp.Quality != "" {
			dl.AudioQuality(pp.Quality)
		}
	}
	return dl
}

func (y *YTDLP) Download(ctx context.Context, locator string, opts download.Options, tick download.TickFunc) (models.MediaInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		tickErr error
	)
	progress := func(update ytdlp.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		if tickErr != nil {
			return
		}
		if err := tick(toTick(update)); err != nil {
			tickErr = err
			cancel()
		}
	}

	result, err := y.run(ctx, y.Command(opts), locator, progress)

	mu.Lock()
	stopped := tickErr
	mu.Unlock()
	if stopped != nil {
		return models.MediaInfo{}, stopped
	}
	if err != nil {
		return models.MediaInfo{}, fmt.Errorf("yt-dlp: %w", err)
	}
	if result == nil {
		return models.MediaInfo{}, errors.New("yt-dlp returned no result")
	}

	infos, err := result.GetExtractedInfo()
	if err != nil {
		return models.MediaInfo{}, fmt.Errorf("read extracted info: %w", err)
	}
	if len(infos) == 0 {
		return models.MediaInfo{}, errors.New("failed to extract video information")
	}

	media := models.MediaInfo{}
	first := infos[0]
	if first.Title != nil {
		media.Title = *first.Title
	}
	switch {
	case first.Filename != nil:
		media.OutputPath = *first.Filename
	case media.Title != "":
		media.OutputPath = filepath.Join(filepath.Dir(opts.OutputTemplate), utils.SanitizeFilename(media.Title))
	}
	if opts.PostProcess != nil && media.OutputPath != "" {
		media.OutputPath = strings.TrimSuffix(media.OutputPath, filepath.Ext(media.OutputPath)) + "." + opts.PostProcess.Codec
	}
	y.logger.Debug("yt-dlp finished", "url", locator, "path", media.OutputPath)
	return media, nil
}

func toTick(update ytdlp.ProgressUpdate) download.Tick {
	t := download.Tick{
		Downloaded: int64(update.DownloadedBytes),
		Total:      int64(update.TotalBytes),
		ETA:        update.ETA(),
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			t.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}
	return t
}

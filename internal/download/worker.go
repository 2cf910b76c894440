package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ytqdgo/internal/models"
)

const (
	DefaultRetryBudget = 3
	DefaultBackoff     = 3 * time.Second

	completeMessage  = "Download complete!"
	cancelledMessage = "Download cancelled"
	unknownTitle     = "Unknown Title"
)

// ErrCancelled is returned from a TickFunc once the worker has been asked to
// stop. Extractors abort the in-flight transfer when they see it.
var ErrCancelled = errors.New("download cancelled")

// PostProcess asks the extractor to transcode the result through FFmpeg.
type PostProcess struct {
	Codec   string
	Quality string
}

// Options are the extractor settings for one download.
type Options struct {
	OutputTemplate    string
	Format            string
	Retries           int
	FragmentRetries   int
	RestrictFilenames bool
	FFmpegLocation    string
	PostProcess       *PostProcess
}

type Request struct {
	ItemId      string
	Locator     string
	Title       string
	Options     Options
	RetryBudget int
	Backoff     time.Duration
}

// Tick is a cumulative progress sample from the extractor. Speed is in bytes
// per second; ETA is zero when unknown.
type Tick struct {
	Downloaded int64
	Total      int64
	Speed      float64
	ETA        time.Duration
}

type TickFunc func(Tick) error

type Extractor interface {
	Download(ctx context.Context, locator string, opts Options, tick TickFunc) (models.MediaInfo, error)
}

type Progress struct {
	ItemId  string
	Percent int
	Speed   string
	Status  string
}

type Report struct {
	ItemId     string
	Success    bool
	Message    string
	Locator    string
	Title      string
	OutputPath string
	Status     models.Status
	Attempts   int
	Cancelled  bool
}

// Sink receives a worker's events in the order they happen. Finished is
// called exactly once per Run, after every Progress call of that run.
type Sink interface {
	Progress(Progress)
	Finished(Report)
}

// Worker drives one download to completion. A Worker is single-use.
type Worker struct {
	extractor Extractor
	sink      Sink
	logger    *slog.Logger

	cancelled atomic.Bool
	mu        sync.Mutex
	stop      context.CancelFunc
	done      chan struct{}
}

func NewWorker(extractor Extractor, sink Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		extractor: extractor,
		sink:      sink,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs the download on its own goroutine.
func (w *Worker) Start(ctx context.Context, req Request) {
	go w.Run(ctx, req)
}

// Done is closed once the terminal report has been delivered.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Cancel requests a stop. It is safe to call from any goroutine and more
// than once.
func (w *Worker) Cancel() {
	w.cancelled.Store(true)
	w.mu.Lock()
	stop := w.stop
	w.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (w *Worker) Cancelled() bool {
	return w.cancelled.Load()
}

// Run performs the download with retries and returns the terminal report,
// which has already been handed to the sink.
func (w *Worker) Run(ctx context.Context, req Request) Report {
	defer close(w.done)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	w.mu.Lock()
	w.stop = stop
	w.mu.Unlock()
	if w.cancelled.Load() {
		stop()
	}

	report := w.run(ctx, req)
	w.sink.Finished(report)
	return report
}

func (w *Worker) run(ctx context.Context, req Request) Report {
	budget := req.RetryBudget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}
	interval := req.Backoff
	if interval < 0 {
		interval = 0
	}

	report := Report{ItemId: req.ItemId, Locator: req.Locator}
	tick := func(t Tick) error {
		if w.cancelled.Load() {
			return ErrCancelled
		}
		w.sink.Progress(Progress{
			ItemId:  req.ItemId,
			Percent: Percent(t.Downloaded, t.Total),
			Speed:   FormatBytes(t.Speed) + "/s",
			Status:  StatusLine(t),
		})
		return nil
	}

	var info models.MediaInfo
	op := func() error {
		if w.cancelled.Load() {
			return backoff.Permanent(ErrCancelled)
		}
		report.Attempts++
		w.logger.Info("Download attempt", "id", req.ItemId, "url", req.Locator, "attempt", report.Attempts, "max", budget)

		result, err := w.attempt(ctx, req, tick)
		if err != nil {
			if errors.Is(err, ErrCancelled) || w.cancelled.Load() {
				return backoff.Permanent(ErrCancelled)
			}
			return err
		}
		info = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(budget-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		w.logger.Warn("Download attempt failed, retrying", "id", req.ItemId, "error", err, "retryIn", next)
	}

	err := backoff.RetryNotify(op, policy, notify)
	switch {
	case err == nil:
		report.Success = true
		report.Message = completeMessage
		report.Status = models.StatusCompleted
		report.Title = info.Title
		if report.Title == "" {
			report.Title = unknownTitle
		}
		report.OutputPath = info.OutputPath
		w.logger.Info("Download complete", "id", req.ItemId, "path", info.OutputPath)
	case errors.Is(err, ErrCancelled) || w.cancelled.Load() || ctx.Err() != nil:
		report.Cancelled = true
		report.Message = cancelledMessage
		report.Status = models.StatusFailed
		w.logger.Info("Download cancelled", "id", req.ItemId)
	default:
		report.Message = fmt.Sprintf("Download failed after %d attempts: %v", report.Attempts, err)
		report.Status = models.StatusFailed
		w.logger.Error("Download failed", "id", req.ItemId, "attempts", report.Attempts, "error", err)
	}
	return report
}

func (w *Worker) attempt(ctx context.Context, req Request, tick TickFunc) (info models.MediaInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return w.extractor.Download(ctx, req.Locator, req.Options, tick)
}

// Percent maps a byte count onto 0..100. An unknown total counts as one byte.
func Percent(downloaded, total int64) int {
	if total <= 0 {
		total = 1
	}
	p := math.Floor(float64(downloaded) / float64(total) * 100)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

func FormatBytes(b float64) string {
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if b < 1024 {
			return fmt.Sprintf("%.1f%s", b, unit)
		}
		b /= 1024
	}
	return fmt.Sprintf("%.1fTB", b)
}

func FormatETA(eta time.Duration) string {
	secs := int(eta.Seconds())
	if secs <= 0 {
		return "--"
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// StatusLine renders a tick as "42% | 1.0MB/2.4MB | Speed: 512.0KB/s | ETA: 0m 3s".
func StatusLine(t Tick) string {
	total := t.Total
	if total <= 0 {
		total = 1
	}
	return fmt.Sprintf("%d%% | %s/%s | Speed: %s/s | ETA: %s",
		Percent(t.Downloaded, t.Total),
		FormatBytes(float64(t.Downloaded)),
		FormatBytes(float64(total)),
		FormatBytes(t.Speed),
		FormatETA(t.ETA),
	)
}

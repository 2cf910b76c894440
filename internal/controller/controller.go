package controller

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytqdgo/internal/download"
	"ytqdgo/internal/models"
	"ytqdgo/internal/presets"
	"ytqdgo/internal/storage"
	"ytqdgo/internal/utils"
)

var (
	ErrInvalidLocator   = errors.New("invalid YouTube URL")
	ErrDuplicateLocator = errors.New("URL is already in the queue")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrClosed           = errors.New("controller is closed")
)

const (
	DefaultAdvanceDelay = 100 * time.Millisecond
	titleTimeout        = 30 * time.Second
)

type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
)

type TitleFetcher interface {
	Title(ctx context.Context, locator string) (string, error)
}

type HistoryWriter interface {
	Append(ctx context.Context, locator, title, path, status string) error
}

// Notifier is told about every visible change. Calls are made from the
// controller goroutine and must not block.
type Notifier interface {
	QueueChanged(length int)
	Progress(p download.Progress)
	Status(message string)
	Finished(r download.Report)
}

// TranscoderLocator returns the FFmpeg binary path, or false when missing.
type TranscoderLocator func() (string, bool)

type Settings struct {
	DownloadDir       string
	OutputTemplate    string
	Retries           int
	FragmentRetries   int
	RetryBudget       int
	RetryBackoff      time.Duration
	AdvanceDelay      time.Duration
	RestrictFilenames bool
}

type Deps struct {
	Extractor  download.Extractor
	Titles     TitleFetcher
	History    HistoryWriter
	Notifier   Notifier
	Transcoder TranscoderLocator
	Logger     *slog.Logger
}

type Snapshot struct {
	State    State               `json:"state"`
	Active   *models.QueueEntry  `json:"active,omitempty"`
	Last     *models.QueueEntry  `json:"last,omitempty"`
	Queue    []models.QueueEntry `json:"queue"`
	Progress int                 `json:"progress"`
	Status   string              `json:"status"`
}

type titleResult struct {
	locator string
	title   string
}

// Controller owns the queue and drives one worker at a time. All state lives
// on the loop goroutine; public methods hand it closures.
type Controller struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	cmds    chan func()
	events  chan any
	titles  chan titleResult
	quit    chan struct{}
	stopped chan struct{}
	closing sync.Once

	// loop-owned
	queue      *storage.Queue
	state      State
	active     *models.QueueEntry
	last       *models.QueueEntry
	worker     *download.Worker
	progress   int
	status     string
	advance    <-chan time.Time
	ffmpegPath string
}

func New(deps Deps, settings Settings) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Transcoder == nil {
		deps.Transcoder = func() (string, bool) { return "", false }
	}
	if settings.AdvanceDelay <= 0 {
		settings.AdvanceDelay = DefaultAdvanceDelay
	}
	if settings.RetryBudget <= 0 {
		settings.RetryBudget = download.DefaultRetryBudget
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:     deps,
		settings: settings,
		logger:   deps.Logger,
		ctx:      ctx,
		cancel:   cancel,
		cmds:     make(chan func()),
		events:   make(chan any, 64),
		titles:   make(chan titleResult),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		queue:    storage.NewQueue(),
		state:    StateIdle,
		status:   "Ready",
	}
	go c.loop()
	return c
}

func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(done) }:
	case <-c.stopped:
		return ErrClosed
	}
	<-done
	return nil
}

// Enqueue validates locator and appends it as a waiting entry. The title is
// fetched in the background.
func (c *Controller) Enqueue(locator, format string) (models.QueueEntry, error) {
	locator = strings.TrimSpace(locator)
	if !utils.ValidateLocator(locator) {
		return models.QueueEntry{}, ErrInvalidLocator
	}

	var (
		entry models.QueueEntry
		err   error
	)
	if derr := c.do(func() { entry, err = c.enqueue(locator, format) }); derr != nil {
		return models.QueueEntry{}, derr
	}
	return entry, err
}

// Start begins draining the queue. It is a no-op while a download runs.
func (c *Controller) Start() error {
	var err error
	if derr := c.do(func() { err = c.start() }); derr != nil {
		return derr
	}
	return err
}

// Cancel asks the active worker to stop. It returns false when idle.
func (c *Controller) Cancel() bool {
	var ok bool
	c.do(func() {
		if c.worker == nil {
			return
		}
		if !c.worker.Cancelled() {
			c.worker.Cancel()
			c.setStatus("Cancel requested...")
		}
		ok = true
	})
	return ok
}

func (c *Controller) MoveUp(index int) bool {
	return c.mutate(func() bool { return c.queue.MoveUp(index) })
}

func (c *Controller) MoveDown(index int) bool {
	return c.mutate(func() bool { return c.queue.MoveDown(index) })
}

func (c *Controller) Remove(index int) bool {
	return c.mutate(func() bool {
		entry, ok := c.queue.RemoveAt(index)
		if ok {
			c.logger.Info("Removed from queue", "id", entry.Id, "url", entry.Locator)
		}
		return ok
	})
}

// Clear drops every waiting entry. The active download is left running.
func (c *Controller) Clear() int {
	var n int
	c.mutate(func() bool {
		n = c.queue.Clear()
		return n > 0
	})
	return n
}

// Snapshot reports the queue and the active download. After Close it
// reports an idle, empty controller.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{State: StateIdle, Queue: []models.QueueEntry{}}
	err := c.do(func() {
		snap = Snapshot{
			State:    c.state,
			Queue:    c.queue.PeekAll(),
			Progress: c.progress,
			Status:   c.status,
		}
		if c.active != nil {
			active := *c.active
			snap.Active = &active
		}
		if c.last != nil {
			last := *c.last
			snap.Last = &last
		}
	})
	if err != nil {
		snap.Status = err.Error()
	}
	return snap
}

// Close cancels any active download and waits for the loop to exit.
func (c *Controller) Close() {
	c.closing.Do(func() { close(c.quit) })
	<-c.stopped
}

func (c *Controller) mutate(fn func() bool) bool {
	var changed bool
	c.do(func() {
		changed = fn()
		if changed {
			c.deps.Notifier.QueueChanged(c.queue.Len())
		}
	})
	return changed
}

func (c *Controller) loop() {
	defer close(c.stopped)
	for {
		select {
		case cmd := <-c.cmds:
			cmd()
		case ev := <-c.events:
			c.handleEvent(ev)
		case res := <-c.titles:
			c.applyTitle(res)
		case <-c.advance:
			c.advance = nil
			c.startNext(false)
		case <-c.quit:
			c.shutdown()
			return
		}
	}
}

func (c *Controller) shutdown() {
	c.cancel()
	if c.worker == nil {
		return
	}
	c.worker.Cancel()
	for {
		ev := <-c.events
		if report, ok := ev.(download.Report); ok {
			c.finish(report)
			return
		}
	}
}

func (c *Controller) enqueue(locator, format string) (models.QueueEntry, error) {
	if c.queue.ContainsLocator(locator) || (c.active != nil && c.active.Locator == locator) {
		return models.QueueEntry{}, ErrDuplicateLocator
	}

	entry := models.QueueEntry{
		Id:              uuid.NewString(),
		Locator:         locator,
		FormatSelection: format,
		Status:          models.StatusWaiting,
		Title:           models.TitlePlaceholder,
		AddedAt:         time.Now(),
	}
	c.queue.Append(entry)
	c.logger.Info("Queued", "id", entry.Id, "url", locator, "format", format)
	c.deps.Notifier.QueueChanged(c.queue.Len())

	if c.deps.Titles != nil {
		go c.fetchTitle(locator)
	}
	return entry, nil
}

func (c *Controller) fetchTitle(locator string) {
	ctx, cancel := context.WithTimeout(c.ctx, titleTimeout)
	defer cancel()

	title, err := c.deps.Titles.Title(ctx, locator)
	if err != nil || title == "" {
		c.logger.Warn("Title fetch failed", "url", locator, "error", err)
		title = locator
	}
	select {
	case c.titles <- titleResult{locator: locator, title: title}:
	case <-c.stopped:
	}
}

func (c *Controller) applyTitle(res titleResult) {
	changed := c.queue.SetTitle(res.locator, res.title)
	if c.active != nil && c.active.Locator == res.locator {
		c.active.Title = res.title
		changed = true
	}
	if changed {
		c.deps.Notifier.QueueChanged(c.queue.Len())
	}
}

func (c *Controller) start() error {
	if c.state == StateDownloading {
		return nil
	}
	if c.queue.Len() == 0 {
		return ErrQueueEmpty
	}
	c.startNext(true)
	return nil
}

func (c *Controller) startNext(manual bool) {
	if c.state == StateDownloading {
		return
	}
	entry, ok := c.queue.PopFront()
	if !ok {
		if !manual {
			c.setStatus("All downloads complete.")
		}
		return
	}

	entry.Status = models.StatusDownloading
	c.active = &entry
	c.state = StateDownloading
	c.progress = 0

	name := entry.Title
	if name == "" || name == models.TitlePlaceholder {
		name = entry.Locator
	}
	c.setStatus("Downloading " + name)
	c.deps.Notifier.QueueChanged(c.queue.Len())

	req := c.request(entry)
	c.worker = download.NewWorker(c.deps.Extractor, sink{c}, c.logger)
	c.worker.Start(c.ctx, req)
	c.logger.Info("Downloading", "id", entry.Id, "url", entry.Locator, "format", req.Options.Format)
}

func (c *Controller) request(entry models.QueueEntry) download.Request {
	resolved := presets.Resolve(entry.FormatSelection)
	opts := download.Options{
		OutputTemplate:    filepath.Join(c.settings.DownloadDir, c.settings.OutputTemplate),
		Format:            resolved.Format,
		Retries:           c.settings.Retries,
		FragmentRetries:   c.settings.FragmentRetries,
		RestrictFilenames: c.settings.RestrictFilenames,
	}
	if resolved.ExtractAudio {
		opts.PostProcess = &download.PostProcess{Codec: resolved.AudioCodec, Quality: resolved.AudioQuality}
	}

	if c.ffmpegPath == "" {
		if path, ok := c.deps.Transcoder(); ok {
			c.ffmpegPath = path
		}
	}
	if c.ffmpegPath == "" {
		c.logger.Warn("FFmpeg not found; merging and audio extraction may fail", "url", entry.Locator)
		c.setStatus("FFmpeg not found. Downloading anyway.")
	} else {
		opts.FFmpegLocation = filepath.Dir(c.ffmpegPath)
	}

	return download.Request{
		ItemId:      entry.Id,
		Locator:     entry.Locator,
		Title:       entry.Title,
		Options:     opts,
		RetryBudget: c.settings.RetryBudget,
		Backoff:     c.settings.RetryBackoff,
	}
}

func (c *Controller) handleEvent(ev any) {
	switch e := ev.(type) {
	case download.Progress:
		if c.active == nil || e.ItemId != c.active.Id {
			return
		}
		c.progress = e.Percent
		c.status = e.Status
		c.deps.Notifier.Progress(e)
	case download.Report:
		c.finish(e)
		if c.ctx.Err() == nil {
			c.advance = time.After(c.settings.AdvanceDelay)
		}
	}
}

func (c *Controller) finish(report download.Report) {
	entry := c.active
	c.active = nil
	c.worker = nil
	c.state = StateIdle
	c.progress = 0

	if !report.Status.IsTerminal() {
		report.Status = models.StatusFailed
	}
	if entry != nil {
		entry.Status = report.Status
		if !report.Success {
			entry.ErrorMessage = report.Message
		}
		if report.Title != "" {
			entry.Title = report.Title
		}
		c.last = entry
	}

	title := report.Title
	if title == "" && entry != nil && entry.Title != models.TitlePlaceholder && entry.Title != entry.Locator {
		title = entry.Title
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if c.deps.History != nil {
		if err := c.deps.History.Append(ctx, report.Locator, title, report.OutputPath, report.Status.Label()); err != nil {
			c.logger.Error("Failed to record history", "url", report.Locator, "error", err)
		}
	}

	if strings.Contains(report.Message, "has already been downloaded") {
		c.setStatus("File already downloaded")
	} else {
		c.setStatus(report.Message)
	}
	c.deps.Notifier.Finished(report)
	c.deps.Notifier.QueueChanged(c.queue.Len())
}

func (c *Controller) setStatus(message string) {
	c.status = message
	c.deps.Notifier.Status(message)
}

// sink forwards worker events onto the loop in order.
type sink struct{ c *Controller }

func (s sink) Progress(p download.Progress) { s.send(p) }
func (s sink) Finished(r download.Report) { s.send(r) }

func (s sink) send(ev any) {
	select {
	case s.c.events <- ev:
	case <-s.c.stopped:
	}
}

type nopNotifier struct{}

func (nopNotifier) QueueChanged(int) {}
func (nopNotifier) Progress(download.Progress) {}
func (nopNotifier) Status(string) {}
func (nopNotifier) Finished(download.Report) {}

// Notifiers fans events out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) QueueChanged(length int) {
	for _, n := range ns {
		n.QueueChanged(length)
	}
}

func (ns Notifiers) Progress(p download.Progress) {
	for _, n := range ns {
		n.Progress(p)
	}
}

func (ns Notifiers) Status(message string) {
	for _, n := range ns {
		n.Status(message)
	}
}

func (ns Notifiers) Finished(r download.Report) {
	for _, n := range ns {
		n.Finished(r)
	}
}

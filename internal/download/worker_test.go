package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ytqdgo/internal/models"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []string
	progress []Progress
	reports  []Report
}

func (s *recordingSink) Progress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "progress")
	s.progress = append(s.progress, p)
}

func (s *recordingSink) Finished(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "finished")
	s.reports = append(s.reports, r)
}

type scriptedExtractor struct {
	mu       sync.Mutex
	calls    int
	failures int
	ticks    []Tick
	panicky  bool
	onTick   func(call int)
}

func (e *scriptedExtractor) Download(ctx context.Context, locator string, opts Options, tick TickFunc) (models.MediaInfo, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	for _, t := range e.ticks {
		if e.onTick != nil {
			e.onTick(call)
		}
		if err := tick(t); err != nil {
			return models.MediaInfo{}, err
		}
	}
	if call <= e.failures {
		if e.panicky {
			panic("boom")
		}
		return models.MediaInfo{}, errors.New("network unreachable")
	}
	return models.MediaInfo{Title: "Song", OutputPath: "/out/Song.mp3"}, nil
}

func request(budget int) Request {
	return Request{ItemId: "1", Locator: "https://youtu.be/abc123", RetryBudget: budget}
}

func TestWorkerSucceedsAfterFailures(t *testing.T) {
	ex := &scriptedExtractor{failures: 2}
	sink := &recordingSink{}

	report := NewWorker(ex, sink, nil).Run(context.Background(), request(3))

	if !report.Success || report.Status != models.StatusCompleted {
		t.Fatalf("expected success, got %#v", report)
	}
	if report.Message != "Download complete!" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if report.Attempts != 3 || ex.calls != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", report.Attempts, ex.calls)
	}
	if report.Title != "Song" || report.OutputPath != "/out/Song.mp3" {
		t.Errorf("unexpected media info in report: %#v", report)
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected exactly one terminal report, got %d", len(sink.reports))
	}
}

func TestWorkerExhaustsBudget(t *testing.T) {
	ex := &scriptedExtractor{failures: 3}
	sink := &recordingSink{}

	report := NewWorker(ex, sink, nil).Run(context.Background(), request(3))

	if report.Success || report.Status != models.StatusFailed {
		t.Fatalf("expected failure, got %#v", report)
	}
	expected := "Download failed after 3 attempts: network unreachable"
	if report.Message != expected {
		t.Errorf("expected message %q, got %q", expected, report.Message)
	}
	if ex.calls != 3 {
		t.Errorf("expected 3 extractor calls, got %d", ex.calls)
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected exactly one terminal report, got %d", len(sink.reports))
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	ex := &scriptedExtractor{failures: 1, panicky: true}
	sink := &recordingSink{}

	report := NewWorker(ex, sink, nil).Run(context.Background(), request(1))

	if report.Success {
		t.Fatal("expected failure after panic")
	}
	if !strings.Contains(report.Message, "Download failed after 1 attempts") || !strings.Contains(report.Message, "boom") {
		t.Errorf("unexpected message %q", report.Message)
	}
}

func TestWorkerTerminalReportIsLast(t *testing.T) {
	ex := &scriptedExtractor{
		failures: 1,
		ticks: []Tick{
			{Downloaded: 10, Total: 100},
			{Downloaded: 100, Total: 100},
		},
	}
	sink := &recordingSink{}

	NewWorker(ex, sink, nil).Run(context.Background(), request(2))

	if len(sink.events) != 5 {
		t.Fatalf("expected 4 progress events and 1 report, got %v", sink.events)
	}
	if sink.events[len(sink.events)-1] != "finished" {
		t.Fatalf("terminal report must come last, got %v", sink.events)
	}
	if sink.progress[1].Percent != 100 {
		t.Errorf("expected 100%%, got %d", sink.progress[1].Percent)
	}
}

func TestWorkerCancelDuringTransfer(t *testing.T) {
	var w *Worker
	ex := &scriptedExtractor{
		ticks: []Tick{{Downloaded: 1, Total: 10}, {Downloaded: 2, Total: 10}},
	}
	ex.onTick = func(int) { w.Cancel() }
	sink := &recordingSink{}
	w = NewWorker(ex, sink, nil)

	report := w.Run(context.Background(), request(3))

	if !report.Cancelled || report.Success || report.Status != models.StatusFailed {
		t.Fatalf("expected cancelled failure, got %#v", report)
	}
	if report.Message != "Download cancelled" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if ex.calls != 1 {
		t.Errorf("cancellation must not retry, got %d calls", ex.calls)
	}
	if len(sink.progress) != 0 {
		t.Errorf("expected no progress after cancel, got %d", len(sink.progress))
	}
}

func TestWorkerCancelDuringBackoff(t *testing.T) {
	ex := &scriptedExtractor{failures: 5}
	sink := &recordingSink{}
	w := NewWorker(ex, sink, nil)

	req := request(5)
	req.Backoff = time.Hour
	w.Start(context.Background(), req)

	deadline := time.After(5 * time.Second)
	for {
		ex.mu.Lock()
		calls := ex.calls
		ex.mu.Unlock()
		if calls > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never attempted a download")
		case <-time.After(time.Millisecond):
		}
	}
	w.Cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.reports) != 1 || !sink.reports[0].Cancelled {
		t.Fatalf("expected one cancelled report, got %#v", sink.reports)
	}
}

func TestWorkerCancelBeforeRun(t *testing.T) {
	ex := &scriptedExtractor{}
	sink := &recordingSink{}
	w := NewWorker(ex, sink, nil)
	w.Cancel()
	if !w.Cancelled() {
		t.Fatal("expected Cancelled to report the request")
	}

	report := w.Run(context.Background(), request(3))
	if !report.Cancelled || ex.calls != 0 {
		t.Fatalf("expected cancellation before any attempt, got %#v (calls %d)", report, ex.calls)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		downloaded int64
		total      int64
		expected   int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{999, 1000, 99},
		{100, 100, 100},
		{500, 100, 100},
		{-5, 100, 0},
		{0, 0, 0},
		{7, 0, 100},
		{7, -1, 100},
	}
	for _, test := range tests {
		if got := Percent(test.downloaded, test.total); got != test.expected {
			t.Errorf("Percent(%d, %d) = %d, expected %d", test.downloaded, test.total, got, test.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0.0B"},
		{512, "512.0B"},
		{1536, "1.5KB"},
		{5 * 1024 * 1024, "5.0MB"},
		{3 * 1024 * 1024 * 1024, "3.0GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0TB"},
	}
	for _, test := range tests {
		if got := FormatBytes(test.in); got != test.expected {
			t.Errorf("FormatBytes(%v) = %q, expected %q", test.in, got, test.expected)
		}
	}
}

func TestStatusLine(t *testing.T) {
	got := StatusLine(Tick{Downloaded: 1024, Total: 2048, Speed: 512, ETA: 75 * time.Second})
	expected := "50% | 1.0KB/2.0KB | Speed: 512.0B/s | ETA: 1m 15s"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}

	got = StatusLine(Tick{Downloaded: 10})
	expected = "100% | 10.0B/1.0B | Speed: 0.0B/s | ETA: --"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

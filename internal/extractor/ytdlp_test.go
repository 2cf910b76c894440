package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"ytqdgo/internal/download"
)

func TestToTick(t *testing.T) {
	tick := toTick(ytdlp.ProgressUpdate{
		DownloadedBytes: 512,
		TotalBytes:      1024,
		Started:         time.Now().Add(-2 * time.Second),
	})
	if tick.Downloaded != 512 || tick.Total != 1024 {
		t.Fatalf("unexpected tick: %#v", tick)
	}
	if tick.Speed <= 0 || tick.Speed > 512 {
		t.Errorf("expected speed near 256 B/s, got %v", tick.Speed)
	}
}

func TestToTickBeforeStart(t *testing.T) {
	tick := toTick(ytdlp.ProgressUpdate{DownloadedBytes: 10})
	if tick.Speed != 0 {
		t.Errorf("expected zero speed before start, got %v", tick.Speed)
	}
}

// flagValue returns the argument following flag, and whether flag is present.
func flagValue(args []string, flag string) (string, bool) {
	for i, arg := range args {
		if arg != flag {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			return args[i+1], true
		}
		return "", true
	}
	return "", false
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    download.Options
		present map[string]string
		absent  []string
	}{
		{
			name: "audio only mp3",
			opts: download.Options{
				OutputTemplate:    "/out/%(title).200B.%(ext)s",
				Format:            "bestaudio/best",
				Retries:           10,
				FragmentRetries:   10,
				RestrictFilenames: true,
				FFmpegLocation:    "/usr/bin",
				PostProcess:       &download.PostProcess{Codec: "mp3", Quality: "192"},
			},
			present: map[string]string{
				"--output":             "/out/%(title).200B.%(ext)s",
				"--format":             "bestaudio/best",
				"--retries":            "10",
				"--fragment-retries":   "10",
				"--restrict-filenames": "",
				"--continue":           "",
				"--print-json":         "",
				"--extract-audio":      "",
				"--audio-format":       "mp3",
				"--audio-quality":      "192",
				"--ffmpeg-location":    "/usr/bin",
			},
		},
		{
			name: "resolution capped video",
			opts: download.Options{
				OutputTemplate: "/out/%(title).200B.%(ext)s",
				Format:         "136+140/bestvideo[height<=720]+bestaudio/best[height<=720]",
			},
			present: map[string]string{
				"--output": "/out/%(title).200B.%(ext)s",
				"--format": "136+140/bestvideo[height<=720]+bestaudio/best[height<=720]",
			},
			absent: []string{"--extract-audio", "--audio-format", "--ffmpeg-location", "--retries", "--restrict-filenames"},
		},
		{
			name:    "extractor default format",
			opts:    download.Options{OutputTemplate: "/out/%(title)s.%(ext)s"},
			present: map[string]string{"--continue": "", "--print-json": ""},
			absent:  []string{"--format", "--fragment-retries", "--audio-quality"},
		},
		{
			name: "post-process without quality",
			opts: download.Options{
				OutputTemplate: "/out/%(title)s.%(ext)s",
				PostProcess:    &download.PostProcess{Codec: "mp3"},
			},
			present: map[string]string{"--extract-audio": "", "--audio-format": "mp3"},
			absent:  []string{"--audio-quality"},
		},
	}

	y := NewYTDLP(nil)
	for _, test := range tests {
		var args []string
		for _, f := range y.Command(test.opts).GetFlagConfig().ToFlags() {
			args = append(args, f.Raw()...)
		}
		for flag, expected := range test.present {
			got, ok := flagValue(args, flag)
			if !ok {
				t.Errorf("%s: expected %s in %v", test.name, flag, args)
				continue
			}
			if got != expected {
				t.Errorf("%s: %s = %q, expected %q", test.name, flag, got, expected)
			}
		}
		for _, flag := range test.absent {
			if _, ok := flagValue(args, flag); ok {
				t.Errorf("%s: unexpected %s in %v", test.name, flag, args)
			}
		}
	}
}

func TestDownloadStopsWhenTickFails(t *testing.T) {
	y := NewYTDLP(nil)
	y.run = func(ctx context.Context, dl *ytdlp.Command, locator string, progress func(ytdlp.ProgressUpdate)) (*ytdlp.Result, error) {
		progress(ytdlp.ProgressUpdate{DownloadedBytes: 10, TotalBytes: 100})
		progress(ytdlp.ProgressUpdate{DownloadedBytes: 20, TotalBytes: 100})
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Error("run context was not cancelled")
		}
		return nil, errors.New("signal: killed")
	}

	ticks := 0
	_, err := y.Download(context.Background(), "https://youtu.be/abc123", download.Options{}, func(download.Tick) error {
		ticks++
		return download.ErrCancelled
	})
	if !errors.Is(err, download.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if strings.Contains(err.Error(), "yt-dlp") {
		t.Errorf("tick error must not be wrapped as a yt-dlp failure: %v", err)
	}
	if ticks != 1 {
		t.Errorf("expected progress to stop after the failing tick, got %d ticks", ticks)
	}
}

func TestDownloadWrapsRunErrors(t *testing.T) {
	y := NewYTDLP(nil)
	y.run = func(ctx context.Context, dl *ytdlp.Command, locator string, progress func(ytdlp.ProgressUpdate)) (*ytdlp.Result, error) {
		return nil, errors.New("HTTP Error 403: Forbidden")
	}

	_, err := y.Download(context.Background(), "https://youtu.be/abc123", download.Options{}, func(download.Tick) error { return nil })
	if err == nil || err.Error() != "yt-dlp: HTTP Error 403: Forbidden" {
		t.Fatalf("expected wrapped yt-dlp error, got %v", err)
	}
}

func TestDownloadWithoutResult(t *testing.T) {
	y := NewYTDLP(nil)
	y.run = func(ctx context.Context, dl *ytdlp.Command, locator string, progress func(ytdlp.ProgressUpdate)) (*ytdlp.Result, error) {
		return nil, nil
	}

	if _, err := y.Download(context.Background(), "https://youtu.be/abc123", download.Options{}, func(download.Tick) error { return nil }); err == nil {
		t.Fatal("expected an error when yt-dlp returns no result")
	}
}

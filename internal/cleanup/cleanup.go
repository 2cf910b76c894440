package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// partialPatterns match the leftovers of interrupted yt-dlp runs.
var partialPatterns = []string{
	"*.part",
	"*.ytdl",
	"*.temp",
	"*.part-Frag*",
	"*.f*.mp4.part*",
	"*.f*.mp4.ytdl",
}

var completeExts = map[string]bool{".mp4": true, ".mp3": true, ".mkv": true, ".webm": true}

type Result struct {
	Removed   []string
	Failed    []string
	Remaining int
}

// RemovePartials deletes incomplete download files under dir and counts the
// finished media left behind.
func RemovePartials(dir string) (Result, error) {
	var res Result
	if _, err := os.Stat(dir); err != nil {
		return res, fmt.Errorf("downloads directory %q: %w", dir, err)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isPartial(d.Name()) {
			if rerr := os.Remove(path); rerr != nil {
				res.Failed = append(res.Failed, path)
			} else {
				res.Removed = append(res.Removed, path)
			}
			return nil
		}
		if completeExts[strings.ToLower(filepath.Ext(d.Name()))] {
			res.Remaining++
		}
		return nil
	})
	return res, err
}

func isPartial(name string) bool {
	for _, pattern := range partialPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Sweeper runs RemovePartials on a cron schedule, skipping runs while a
// download is in progress.
type Sweeper struct {
	dir    string
	busy   func() bool
	logger *slog.Logger
	cron   *cron.Cron
	mu     sync.Mutex
}

func NewSweeper(dir, schedule string, busy func() bool, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{dir: dir, busy: busy, logger: logger, cron: cron.New()}
	if schedule == "" {
		return nil, errors.New("cleanup schedule is empty")
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy != nil && s.busy() {
		s.logger.Debug("Skipping cleanup while downloading")
		return
	}
	res, err := RemovePartials(s.dir)
	if err != nil {
		s.logger.Warn("Cleanup failed", "dir", s.dir, "error", err)
		return
	}
	if len(res.Removed) > 0 || len(res.Failed) > 0 {
		s.logger.Info("Removed incomplete downloads", "removed", len(res.Removed), "failed", len(res.Failed), "remaining", res.Remaining)
	}
}

// Run starts the schedule and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

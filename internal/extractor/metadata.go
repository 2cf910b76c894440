package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gcottom/semaphore"
	"github.com/kkdai/youtube/v2"
	"github.com/patrickmn/go-cache"

	"ytqdgo/internal/models"
)

// VideoSource is the subset of the youtube client used for lookups.
type VideoSource interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
}

// Metadata looks up titles and stream lists without downloading anything.
// Results are cached per locator.
type Metadata struct {
	source  VideoSource
	http    *http.Client
	cache   *cache.Cache
	limiter *semaphore.Semaphore
	logger  *slog.Logger

	// pageTitle is swapped in tests.
	pageTitle func(ctx context.Context, client *http.Client, url string) (string, error)
}

func NewMetadata(ttl time.Duration, concurrency int, logger *slog.Logger) *Metadata {
	client := &http.Client{Timeout: 30 * time.Second}
	return NewMetadataWithSource(&youtube.Client{HTTPClient: client}, client, ttl, concurrency, logger)
}

func NewMetadataWithSource(source VideoSource, client *http.Client, ttl time.Duration, concurrency int, logger *slog.Logger) *Metadata {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Metadata{
		source:    source,
		http:      client,
		cache:     cache.New(ttl, 2*ttl),
		limiter:   semaphore.NewSemaphore(concurrency),
		logger:    logger,
		pageTitle: PageTitle,
	}
}

// Fetch returns the title and offered formats for locator. When the native
// lookup fails the watch page title is used and Formats is empty.
func (m *Metadata) Fetch(ctx context.Context, locator string) (models.MediaInfo, error) {
	if cached, ok := m.cache.Get(locator); ok {
		return cached.(models.MediaInfo), nil
	}

	m.limiter.Acquire()
	defer m.limiter.Release()

	info, err := m.lookup(ctx, locator)
	if err != nil {
		return models.MediaInfo{}, err
	}
	m.cache.Set(locator, info, cache.DefaultExpiration)
	return info, nil
}

// Title is Fetch reduced to the title.
func (m *Metadata) Title(ctx context.Context, locator string) (string, error) {
	info, err := m.Fetch(ctx, locator)
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (m *Metadata) lookup(ctx context.Context, locator string) (models.MediaInfo, error) {
	video, err := m.source.GetVideoContext(ctx, locator)
	if err == nil && video != nil && video.Title != "" {
		return models.MediaInfo{Title: video.Title, Formats: convertFormats(video)}, nil
	}
	m.logger.Warn("Video lookup failed, scraping page", "url", locator, "error", err)

	title, perr := m.pageTitle(ctx, m.http, locator)
	if perr != nil {
		return models.MediaInfo{}, fmt.Errorf("fetch metadata for %s: %w", locator, perr)
	}
	return models.MediaInfo{Title: title}, nil
}

func convertFormats(video *youtube.Video) []models.FormatInfo {
	formats := make([]models.FormatInfo, 0, len(video.Formats))
	for _, f := range video.Formats {
		info := models.FormatInfo{
			Id:     strconv.Itoa(f.ItagNo),
			Ext:    extFromMime(f.MimeType),
			Height: f.Height,
		}
		if strings.HasPrefix(f.MimeType, "audio/") {
			info.Height = 0
		}
		info.SizeBytes = f.ContentLength
		if info.SizeBytes == 0 {
			info.SizeBytes = estimateSize(f, video.Duration)
		}
		formats = append(formats, info)
	}
	return formats
}

// estimateSize guesses bytes from duration and bitrate when the host omits
// the content length.
func estimateSize(f youtube.Format, fallback time.Duration) int64 {
	bitrate := f.AverageBitrate
	if bitrate == 0 {
		bitrate = f.Bitrate
	}
	seconds := fallback.Seconds()
	if ms, err := strconv.ParseInt(f.ApproxDurationMs, 10, 64); err == nil && ms > 0 {
		seconds = float64(ms) / 1000
	}
	if bitrate <= 0 || seconds <= 0 {
		return 0
	}
	return int64(seconds * float64(bitrate) / 8)
}

// extFromMime maps "video/mp4; codecs=..." to "mp4". Audio mp4 is m4a.
func extFromMime(mime string) string {
	kind, rest, ok := strings.Cut(mime, "/")
	if !ok {
		return ""
	}
	sub, _, _ := strings.Cut(rest, ";")
	sub = strings.TrimSpace(sub)
	if kind == "audio" && sub == "mp4" {
		return "m4a"
	}
	return sub
}

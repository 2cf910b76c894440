package presets

import (
	"fmt"
	"regexp"
	"strings"

	"ytqdgo/internal/models"
)

const (
	SuperHigh = "Super High WebM"
	AudioMP3  = "Audio Only (MP3)"

	bestExpression = "bestvideo+bestaudio/best"
)

// Preset is one entry of the format menu. Video and Audio carry host format
// ids when the preset pins specific streams.
type Preset struct {
	Name       string
	Video      string
	Audio      string
	Expression string
	ExtractMP3 bool
}

var table = []Preset{
	{Name: "Mp4-High (720p)", Video: "136", Audio: "140"},
	{Name: "Mp4-HD (1080p)", Video: "137", Audio: "251"},
	{Name: "Mkv-High (720p)", Video: "247", Audio: "251"},
	{Name: "Mkv-HD (1080p)", Video: "248", Audio: "251"},
	{Name: "WebM-High (720p)", Video: "247", Audio: "251"},
	{Name: "WebM-HD (1080p)", Video: "248", Audio: "251"},
	{Name: SuperHigh, Expression: bestExpression},
	{Name: AudioMP3, Expression: "bestaudio/best", ExtractMP3: true},
}

var heightPattern = regexp.MustCompile(`(\d{3,4})p\b`)

// All returns the presets in menu order.
func All() []Preset {
	out := make([]Preset, len(table))
	copy(out, table)
	return out
}

func Lookup(name string) (Preset, bool) {
	for _, p := range table {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Resolution is what the downloader needs to know about a selection.
type Resolution struct {
	Name         string
	Format       string
	ExtractAudio bool
	AudioCodec   string
	AudioQuality string
}

// StripSize removes a trailing " ~12.3 MB" style annotation from a menu label.
func StripSize(selection string) string {
	if i := strings.Index(selection, " ~"); i >= 0 {
		selection = selection[:i]
	}
	return strings.TrimSpace(selection)
}

// Resolve turns a menu selection into a format expression. Pinned stream ids
// are tried first, then a height-capped selector, then the best available.
// An empty selection leaves the choice to the extractor.
func Resolve(selection string) Resolution {
	name := StripSize(selection)
	if name == "" {
		return Resolution{}
	}

	res := Resolution{Name: name}
	preset, ok := Lookup(name)
	if ok && preset.Expression != "" {
		res.Format = preset.Expression
		if preset.ExtractMP3 {
			res.ExtractAudio = true
			res.AudioCodec = "mp3"
			res.AudioQuality = "192"
		}
		return res
	}

	fallback := heightFallback(name)
	if ok && preset.Video != "" && preset.Audio != "" {
		res.Format = preset.Video + "+" + preset.Audio + "/" + fallback
		return res
	}
	res.Format = fallback
	return res
}

func heightFallback(name string) string {
	m := heightPattern.FindStringSubmatch(name)
	if m == nil {
		return bestExpression
	}
	h := m[1]
	return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", h, h)
}

// Estimate pairs a preset with its approximate download size. SizeBytes is
// zero when the host did not report enough to guess.
type Estimate struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	Label     string `json:"label"`
}

// Estimates sizes every preset against the formats the host offers.
func Estimates(formats []models.FormatInfo) []Estimate {
	out := make([]Estimate, 0, len(table))
	for _, p := range table {
		var size int64
		switch {
		case p.Video != "":
			for _, f := range formats {
				if f.Id == p.Video {
					size = f.SizeBytes
					break
				}
			}
		case p.Name == SuperHigh:
			size = largest(formats, false)
		case p.ExtractMP3:
			size = largest(formats, true)
		}
		out = append(out, Estimate{Name: p.Name, SizeBytes: size, Label: label(p.Name, size)})
	}
	return out
}

func largest(formats []models.FormatInfo, audio bool) int64 {
	var max int64
	for _, f := range formats {
		if f.IsAudio() != audio {
			continue
		}
		if f.SizeBytes > max {
			max = f.SizeBytes
		}
	}
	return max
}

func label(name string, size int64) string {
	if size <= 0 {
		return name + "     ~Unknown"
	}
	return fmt.Sprintf("%s ~%.1f MB", name, float64(size)/(1024*1024))
}

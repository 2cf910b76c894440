package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the downloader shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists yt-dlp and FFmpeg. FFmpeg is optional: without it
// merged formats and MP3 extraction fail but plain downloads still work.
func Requirements(ffmpegPath string) []Requirement {
	ffmpeg := strings.TrimSpace(ffmpegPath)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return []Requirement{
		{Name: "yt-dlp", Command: "yt-dlp", Description: "video extraction and download"},
		{Name: "FFmpeg", Command: ffmpeg, Description: "stream merging and audio transcoding", Optional: true},
	}
}

func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Command = path
		results = append(results, status)
	}
	return results
}

// FindFFmpeg resolves the FFmpeg binary, preferring an explicit path.
func FindFFmpeg(configured string) (string, bool) {
	status := CheckBinaries([]Requirement{{Name: "FFmpeg", Command: configuredOrDefault(configured)}})[0]
	return status.Command, status.Available
}

// Locator adapts FindFFmpeg to the controller's lazy lookup.
func Locator(configured string) func() (string, bool) {
	return func() (string, bool) { return FindFFmpeg(configured) }
}

func configuredOrDefault(configured string) string {
	if c := strings.TrimSpace(configured); c != "" {
		return c
	}
	return "ffmpeg"
}

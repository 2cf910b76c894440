package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// TitlePlaceholder is shown until the metadata lookup for an entry returns.
const TitlePlaceholder = "Fetching title..."

var titleCaser = cases.Title(language.English)

// Label is the capitalised form recorded in history rows ("Completed").
func (s Status) Label() string {
	return titleCaser.String(string(s))
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type QueueEntry struct {
	Id              string    `json:"id"`
	Locator         string    `json:"url"`
	FormatSelection string    `json:"format"`
	Status          Status    `json:"status"`
	Title           string    `json:"title"`
	ErrorMessage    string    `json:"error,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
}

// DisplayText renders the entry the way the queue list shows it.
func (e QueueEntry) DisplayText() string {
	name := e.Title
	if name == "" || name == TitlePlaceholder {
		name = e.Locator
	}
	parts := make([]string, 0, 3)
	if e.FormatSelection != "" {
		parts = append(parts, "Format: "+e.FormatSelection)
	}
	parts = append(parts, "Status: "+e.Status.Label())
	if e.ErrorMessage != "" {
		parts = append(parts, "Error: "+e.ErrorMessage)
	}
	return name + " | " + strings.Join(parts, " | ")
}

type HistoryRecord struct {
	Id        int64     `json:"id"`
	Locator   string    `json:"url"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type MediaInfo struct {
	Title      string       `json:"title"`
	OutputPath string       `json:"outputPath,omitempty"`
	Formats    []FormatInfo `json:"formats,omitempty"`
}

// FormatInfo describes one stream offered by the host. Height is zero for
// audio-only streams.
type FormatInfo struct {
	Id        string `json:"id"`
	Ext       string `json:"ext"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (f FormatInfo) IsAudio() bool {
	return f.Height == 0
}

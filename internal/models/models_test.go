package models

import "testing"

func TestDisplayText(t *testing.T) {
	tests := []struct {
		name     string
		entry    QueueEntry
		expected string
	}{
		{
			name:     "placeholder title shows url",
			entry:    QueueEntry{Locator: "https://youtu.be/abc123", Title: TitlePlaceholder, Status: StatusWaiting},
			expected: "https://youtu.be/abc123 | Status: Waiting",
		},
		{
			name:     "title and format",
			entry:    QueueEntry{Locator: "https://youtu.be/abc123", Title: "Song", FormatSelection: "Audio Only (MP3)", Status: StatusCompleted},
			expected: "Song | Format: Audio Only (MP3) | Status: Completed",
		},
		{
			name: "failed entry carries its error",
			entry: QueueEntry{
				Locator:      "https://youtu.be/abc123",
				Title:        "Song",
				Status:       StatusFailed,
				ErrorMessage: "Download failed after 3 attempts: HTTP Error 403",
			},
			expected: "Song | Status: Failed | Error: Download failed after 3 attempts: HTTP Error 403",
		},
	}

	for _, test := range tests {
		if got := test.entry.DisplayText(); got != test.expected {
			t.Errorf("%s: got %q, expected %q", test.name, got, test.expected)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := map[Status]bool{
		StatusWaiting:     false,
		StatusDownloading: false,
		StatusCompleted:   true,
		StatusFailed:      true,
	}
	for status, expected := range tests {
		if got := status.IsTerminal(); got != expected {
			t.Errorf("%s.IsTerminal() = %v, expected %v", status, got, expected)
		}
	}
}

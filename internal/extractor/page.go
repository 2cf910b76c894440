package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

var errNoTitle = errors.New("page has no title")

// PageTitle scrapes the title from the video's watch page.
func PageTitle(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return titleFromDocument(doc)
}

func titleFromDocument(doc *goquery.Document) (string, error) {
	title := ""
	doc.Find(`meta[property="og:title"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && title == "" {
			title = strings.TrimSpace(content)
		}
	})
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
		title = strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
	}
	if title == "" {
		return "", errNoTitle
	}
	return title, nil
}

package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SocialPoster/internal/ports"
)

// Fetcher downloads article pages and reduces them to readable text.
// Network errors and non-200 responses fold to empty text; the caller
// decides whether an empty page is fatal.
type Fetcher struct {
	client *http.Client
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets a bounded default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch returns the page's visible text, or "" when the page is unreachable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "SocialPoster/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", nil
	}

	return extractText(doc), nil
}

// extractText strips scripts and styles and collapses the remaining body
// text into whitespace-normalized paragraphs.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, noscript").Remove()

	root := doc.Find("article")
	if root.Length() == 0 {
		root = doc.Find("main")
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var parts []string
	root.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(parts, "\n")
}

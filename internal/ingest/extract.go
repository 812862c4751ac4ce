// Package ingest feeds source material into the retrieval index: PDF
// uploads and fetched web pages are reduced to plain text, inserted through
// the retrieval gateway, and recorded in an audit table.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// ErrNoText indicates a source yielded no extractable text. Indexing an
// empty document would silently poison retrieval, so extraction refuses it.
var ErrNoText = errors.New("no extractable text")

const maxRedirects = 5

// ExtractPDF extracts the plain text of every page of a PDF, pages joined by
// blank lines. Encrypted or malformed files fail; a file whose pages carry
// no text (scanned images) returns ErrNoText.
func ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("pdf: %w", ErrNoText)
	}
	return strings.Join(pages, "\n\n"), nil
}

// Fetcher retrieves web pages and extracts their main content, dropping
// navigation and boilerplate.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given total request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// ExtractURL fetches a page and returns its readable main text. Non-2xx
// responses fail; a page with no readable content returns ErrNoText.
func (f *Fetcher) ExtractURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %q: unexpected status %d", rawURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, 10<<20)
	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return "", fmt.Errorf("extracting content from %q: %w", rawURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("%q: %w", rawURL, ErrNoText)
	}
	return text, nil
}

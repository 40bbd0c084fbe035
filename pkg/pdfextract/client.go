package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// Page is the extracted plain text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// Client extracts per-page text from PDFs via an Apache Tika server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9998"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ExtractPages sends the PDF to Tika and splits the XHTML output on its
// per-page divs. Pages are numbered from 1 to match report citations.
func (c *Client) ExtractPages(ctx context.Context, pdf []byte) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.baseURL+"/tika", bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tika request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	return splitPages(string(bodyBytes)), nil
}

const pageMarker = `<div class="page">`

func splitPages(xhtml string) []Page {
	segments := strings.Split(xhtml, pageMarker)
	if len(segments) < 2 {
		// No page divs, treat the whole document as one page.
		text := strings.TrimSpace(stripTags(xhtml))
		if text == "" {
			return nil
		}
		return []Page{{Number: 1, Text: text}}
	}

	var pages []Page
	for i, segment := range segments[1:] {
		text := strings.TrimSpace(stripTags(segment))
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages
}

// stripTags drops markup, inserting newlines at block-level closings so
// paragraph structure survives for the splitter.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune('\n')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(html.UnescapeString(b.String()), "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

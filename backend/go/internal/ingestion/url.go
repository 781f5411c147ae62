package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// maxFetchBytes caps how much of a remote document we are willing to read.
const maxFetchBytes = 20 << 20

// ExtractURL fetches a remote document and extracts its text. HTML pages
// are converted to markdown, PDFs go through the pdf extractor, and plain
// text passes through untouched.
func (p *Pipeline) ExtractURL(ctx context.Context, rawURL string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	resp, err := p.fetcher.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}

	// Content sniffing over the response bytes; Content-Type headers lie
	// often enough that we do not trust them.
	mtype := mimetype.Detect(body)

	var text string
	switch {
	case mtype.Is("text/html"):
		text, err = htmltomarkdown.ConvertString(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to convert html to markdown: %w", err)
		}
	case mtype.Is("application/pdf"):
		text, err = pdfTextFromReader(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			return nil, err
		}
	case strings.HasPrefix(mtype.String(), "text/"):
		text = string(body)
	default:
		return nil, &UnsupportedTypeError{
			MimeType:  mtype.String(),
			Supported: []string{".html", ".pdf", ".txt", ".md"},
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content extracted from %s", rawURL)
	}

	return &Document{
		ID:   uuid.New().String(),
		Text: text,
		Metadata: map[string]interface{}{
			MetadataKeySourceURL: rawURL,
		},
	}, nil
}

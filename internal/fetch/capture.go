// Package fetch captures web pages referenced as evidence. A reported
// phishing page can vanish quickly, so the capture is a markdown snapshot
// taken at intake time and stored like any other upload.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/certassist/internal/types"
)

const maxCaptureChars = 50000

// Capturer fetches a URL and converts its HTML content to a markdown
// snapshot upload.
type Capturer struct {
	client *http.Client
}

// NewCapturer creates a Capturer with a bounded fetch timeout.
func NewCapturer() *Capturer {
	return &Capturer{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsCaptureURL reports whether text is a bare http(s) URL.
func IsCaptureURL(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return false
	}
	if strings.ContainsAny(text, " \t\n") {
		return false
	}
	u, err := url.Parse(text)
	return err == nil && u.Host != ""
}

// Capture fetches the page and returns it as a markdown snapshot upload.
func (c *Capturer) Capture(ctx context.Context, pageURL string) (types.Upload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.Upload{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "certassist/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Upload{}, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Upload{}, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Upload{}, fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return types.Upload{}, fmt.Errorf("convert to markdown: %w", err)
	}

	if len(md) > maxCaptureChars {
		md = md[:maxCaptureChars] + "\n\n[Content truncated]"
	}

	snapshot := fmt.Sprintf("# Page snapshot\n\nSource: %s\nCaptured: %s\n\n---\n\n%s",
		pageURL, time.Now().Format(time.RFC3339), md)

	return types.Upload{
		Name:     snapshotName(pageURL),
		MimeType: "text/markdown",
		Data:     []byte(snapshot),
	}, nil
}

// snapshotName derives a readable file name from the captured URL.
func snapshotName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "snapshot.md"
	}
	return u.Host + "-snapshot.md"
}

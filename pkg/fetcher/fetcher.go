// Package fetcher retrieves page bodies under a shared rate limit. Fetcher
// performs one classified attempt; Pool fans a URL list out over a fixed set
// of workers with bounded retries and cooperative cancellation.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html/charset"

	"github.com/dtnitsch/sitemap2skill/models"
)

const (
	// maxBodyBytes caps how much of a page is read; longer bodies are truncated.
	maxBodyBytes = 10 * 1024 * 1024
	maxRedirects = 5
	acceptHeader = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the hop limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// Response is a successful attempt with the body already decoded to UTF-8.
type Response struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
}

// AttemptError classifies a failed attempt and whether retrying may help.
type AttemptError struct {
	Kind       models.ErrorKind
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *AttemptError) Error() string {
	if e.Kind == models.KindHTTPStatus {
		return fmt.Sprintf("%s(%d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Fetcher issues single HTTP GET attempts.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewFetcher wraps client with the redirect hop limit. A nil client gets a
// fresh one; a supplied client is copied, not modified.
func NewFetcher(client *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	var c http.Client
	if client != nil {
		c = *client
	}
	c.CheckRedirect = redirectPolicy(maxRedirects)

	return &Fetcher{
		client:    &c,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("%w (max %d)", ErrTooManyRedirects, maxHops)
		}
		return nil
	}
}

// Fetch performs one GET of rawURL bounded by the fetcher's timeout. Failures
// are always *AttemptError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &AttemptError{Kind: models.KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &AttemptError{
			Kind:       models.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("read body: %w", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLLike(contentType, raw) {
		if contentType == "" {
			contentType = mimetype.Detect(raw).String()
		}
		return nil, &AttemptError{
			Kind: models.KindUnsupportedContentType,
			Err:  fmt.Errorf("content type %q is not HTML", contentType),
		}
	}

	body, err := decodeUTF8(raw, contentType)
	if err != nil {
		body = raw
	}

	return &Response{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// retryableStatus covers request timeouts, rate limiting and server errors.
// Other 4xx responses are final.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}

func classifyTransportError(err error) *AttemptError {
	if errors.Is(err, ErrTooManyRedirects) {
		return &AttemptError{Kind: models.KindNetwork, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &AttemptError{Kind: models.KindTimeout, Retryable: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AttemptError{Kind: models.KindCancelled, Err: err}
	}
	return &AttemptError{Kind: models.KindNetwork, Retryable: true, Err: err}
}

// isHTMLLike accepts text/html and application/xhtml+xml. Without a
// Content-Type header the body is sniffed.
func isHTMLLike(contentType string, body []byte) bool {
	if strings.TrimSpace(contentType) == "" {
		detected := mimetype.Detect(body)
		return detected.Is("text/html") || detected.Is("application/xhtml+xml")
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeUTF8 converts body to UTF-8 using the header charset, a <meta>
// declaration, or content sniffing, in that order.
func decodeUTF8(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset reader: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return decoded, nil
}

package models

import "fmt"

// ErrorKind classifies why a single URL did not make it into the bundle.
type ErrorKind string

const (
	KindTimeout                ErrorKind = "timeout"
	KindHTTPStatus             ErrorKind = "http_status"
	KindNetwork                ErrorKind = "network"
	KindUnsupportedContentType ErrorKind = "unsupported_content_type"
	KindCancelled              ErrorKind = "cancelled"
	KindRobotsDisallowed       ErrorKind = "robots_disallowed"
	KindConversion             ErrorKind = "conversion"
)

// FetchFailure is the terminal outcome of a URL whose retries were exhausted
// or which was never attempted.
type FetchFailure struct {
	Kind       ErrorKind
	StatusCode int // set when Kind == KindHTTPStatus
	Attempts   int
	Err        error
}

func (f *FetchFailure) Error() string {
	if f.Err == nil {
		return f.Reason()
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", f.Reason(), f.Attempts, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// Reason renders the kind in a compact, user-facing form, e.g. "http_status(500)".
func (f *FetchFailure) Reason() string {
	if f.Kind == KindHTTPStatus {
		return fmt.Sprintf("%s(%d)", f.Kind, f.StatusCode)
	}
	return string(f.Kind)
}

// FetchResult is the outcome of fetching one URL. Exactly one of the success
// fields (Body, StatusCode) or Failure is meaningful.
type FetchResult struct {
	URL         string
	Body        []byte // UTF-8 decoded
	StatusCode  int
	ContentType string
	FinalURL    string // after redirects
	Attempts    int
	Failure     *FetchFailure
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Failure == nil
}

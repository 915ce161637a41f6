package models

import (
	"errors"
	"fmt"
)

var (
	ErrSitemapFetch = errors.New("sitemap fetch error")
	ErrSitemapParse = errors.New("sitemap parse error")
	ErrConversion   = errors.New("conversion error")
	ErrPackaging    = errors.New("packaging error")
	ErrEmptyResult  = errors.New("empty result: no pages were converted")
)

// SitemapError is fatal for a run. Kind is ErrSitemapFetch or ErrSitemapParse.
type SitemapError struct {
	Kind error
	URL  string
	Err  error
}

func (e *SitemapError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *SitemapError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewSitemapFetchError wraps err as an unreachable-sitemap failure.
func NewSitemapFetchError(url string, err error) *SitemapError {
	return &SitemapError{Kind: ErrSitemapFetch, URL: url, Err: err}
}

// NewSitemapParseError wraps err as a malformed-sitemap failure.
func NewSitemapParseError(url string, err error) *SitemapError {
	return &SitemapError{Kind: ErrSitemapParse, URL: url, Err: err}
}

// ConversionError means the body could not be read as a document at all.
type ConversionError struct {
	URL string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConversion, e.URL, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Err}
}

// PackagingError is returned by the assembler; Reason is ErrEmptyResult when
// there was nothing to package.
type PackagingError struct {
	Reason error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPackaging, e.Reason)
}

func (e *PackagingError) Unwrap() []error {
	return []error{ErrPackaging, e.Reason}
}

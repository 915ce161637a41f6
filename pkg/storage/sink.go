package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink hands out the destination for a packaged artifact. Create is called at
// most once per run, and only when there is something to package.
type Sink interface {
	Create() (io.WriteCloser, error)
}

// FileSink writes the artifact to Path. Data goes to a temporary file that is
// renamed into place on a successful Close, so a failed run never leaves a
// truncated archive at Path.
type FileSink struct {
	Path string
}

func (s FileSink) Create() (io.WriteCloser, error) {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp artifact: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("create temp artifact: %w", err)
	}
	return &atomicFile{File: tmp, final: s.Path}, nil
}

type atomicFile struct {
	*os.File
	final string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(f.Name(), f.final); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}

// Abort discards the temporary file instead of moving it into place.
func (f *atomicFile) Abort() error {
	f.File.Close()
	return os.Remove(f.Name())
}

// Abort discards a writer returned by Sink.Create after a failed write. Writers
// that cannot discard are simply closed.
func Abort(w io.WriteCloser) {
	if a, ok := w.(interface{ Abort() error }); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// MemorySink keeps the artifact in memory.
type MemorySink struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	created bool
}

func (s *MemorySink) Create() (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.created = true
	return nopCloser{&s.buf}, nil
}

// Bytes returns the artifact, or nil if Create was never called.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return nil
	}
	return bytes.Clone(s.buf.Bytes())
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

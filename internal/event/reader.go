package event

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is the on-disk encoding of an event file.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// CompressionFor picks the compression from the file extension:
// .gz → gzip, .zst → zstd, anything else → plain JSON lines.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Reader streams events from a JSON lines file.
//
//	r, err := event.Open("ttbar.jsonl.gz")
//	for r.Next() {
//		process(r.Event())
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	dec     *json.Decoder
	closers []func() error

	current *Event
	count   int64
	err     error
}

// Open opens path for reading, decompressing according to its extension.
func Open(path string) (*Reader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}

	r, err := NewReader(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f.Close)
	return r, nil
}

// NewReader wraps an already opened stream. The caller keeps ownership of
// src; Close only releases the decompressor.
func NewReader(src io.Reader, c Compression) (*Reader, error) {
	r := &Reader{}

	var in io.Reader = bufio.NewReaderSize(src, 1<<16)
	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r.closers = append(r.closers, gz.Close)
		in = gz
	case CompressionZstd:
		zr, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		r.closers = append(r.closers, func() error { zr.Close(); return nil })
		in = zr
	}

	r.dec = json.NewDecoder(in)
	return r, nil
}

// Next decodes the next event. It returns false at end of input or on the
// first decoding error, which is then reported by Err.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	var ev Event
	if err := r.dec.Decode(&ev); err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("event %d: %w", r.count+1, err)
		}
		r.current = nil
		return false
	}

	r.count++
	r.current = &ev
	return true
}

// Event returns the event decoded by the last successful Next.
func (r *Reader) Event() *Event { return r.current }

// Count is the number of events decoded so far.
func (r *Reader) Count() int64 { return r.count }

// Err returns the first non-EOF error encountered.
func (r *Reader) Err() error { return r.err }

// Close releases the decompressor and, for readers made by Open, the file.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

package event

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Writer appends events to a JSON lines stream.
type Writer struct {
	buf     *bufio.Writer
	enc     *json.Encoder
	closers []func() error
}

// Create creates (or truncates) path and writes events to it, compressing
// according to the file extension.
func Create(path string) (*Writer, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create event file: %w", err)
	}

	w, err := NewWriter(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	// Close runs closers last to first; the file goes after the compressor.
	w.closers = append([]func() error{f.Close}, w.closers...)
	return w, nil
}

// NewWriter wraps dst. Close flushes and finalises the compressed stream
// but leaves dst open.
func NewWriter(dst io.Writer, c Compression) (*Writer, error) {
	w := &Writer{}

	out := dst
	switch c {
	case CompressionGzip:
		gz := gzip.NewWriter(dst)
		w.closers = append(w.closers, gz.Close)
		out = gz
	case CompressionZstd:
		zw, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd stream: %w", err)
		}
		w.closers = append(w.closers, zw.Close)
		out = zw
	}

	w.buf = bufio.NewWriter(out)
	w.enc = json.NewEncoder(w.buf)
	return w, nil
}

// Write encodes ev as one line.
func (w *Writer) Write(ev *Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to encode event %d: %w", ev.ID, err)
	}
	return nil
}

// Close flushes buffered output and closes the compressor and file.
func (w *Writer) Close() error {
	errs := []error{w.buf.Flush()}
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	w.closers = nil
	return errors.Join(errs...)
}

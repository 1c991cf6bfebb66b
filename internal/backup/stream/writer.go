// Package stream reads and writes JSON Lines entries inside zip archives.
package stream

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// ErrMultiline is returned for a document that would span several lines.
var ErrMultiline = errors.New("document contains a newline")

// Writer appends one JSON document per line to a zip entry.
type Writer struct {
	dst   io.Writer
	lines int
}

// NewWriter adds a deflated entry named path to zw.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &Writer{dst: dst}, nil
}

// Write encodes v and appends it as a line.
func (w *Writer) Write(v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteRaw(doc)
}

// WriteRaw appends an encoded document. It must already be compact.
func (w *Writer) WriteRaw(doc []byte) error {
	if bytes.IndexByte(doc, '\n') >= 0 {
		return ErrMultiline
	}
	if _, err := w.dst.Write(append(doc[:len(doc):len(doc)], '\n')); err != nil {
		return err
	}
	w.lines++
	return nil
}

// Count returns the number of lines written.
func (w *Writer) Count() int {
	return w.lines
}

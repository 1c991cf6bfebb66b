package stream

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"

	"github.com/goccy/go-json"
)

// maxLineSize bounds a single document.
const maxLineSize = 4 << 20

// ErrFileNotFound is returned by OpenFile for a missing entry.
var ErrFileNotFound = errors.New("file not found in backup")

// OpenFile opens the entry named path.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	f, err := zr.Open(path)
	if err != nil {
		return nil, ErrFileNotFound
	}
	return f, nil
}

// Line is a decoded document and its 1-based line number.
type Line[T any] struct {
	Value T
	No    int
}

// Reader decodes JSON Lines into T.
type Reader[T any] struct {
	rc io.ReadCloser
}

// NewReader wraps rc. All closes it when iteration ends.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	return &Reader[T]{rc: rc}
}

// All yields every non-blank line. A line that fails to decode is yielded
// with its error and iteration continues; a read error ends it.
func (r *Reader[T]) All() iter.Seq2[Line[T], error] {
	return func(yield func(Line[T], error) bool) {
		defer r.rc.Close()

		sc := bufio.NewScanner(r.rc)
		sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

		no := 0
		for sc.Scan() {
			no++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}

			line := Line[T]{No: no}
			err := json.Unmarshal(raw, &line.Value)
			if !yield(line, err) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Line[T]{No: no + 1}, err)
		}
	}
}

// Package urlsource reads URL list files line by line.
package urlsource

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"sync"
)

// maxLineSize bounds a single URL line
const maxLineSize = 1024 * 1024

// Reader lazily yields the lines of one URL list file.
// The sequence is forward-only; reopen the file to start over.
type Reader struct {
	path string
	file *os.File

	closeOnce sync.Once
	closeErr  error
	err       error
	consumed  bool
}

// Open opens path for reading. Failure to open is reported here rather
// than when iteration starts.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	return &Reader{path: path, file: f}, nil
}

// Path returns the path of the underlying file
func (r *Reader) Path() string {
	return r.path
}

// URLs returns a sequence of the file's lines in file order, without line
// terminators. The file is closed when the sequence ends, including when
// the consumer stops early. The sequence can be ranged over once.
func (r *Reader) URLs() iter.Seq[string] {
	return func(yield func(string) bool) {
		defer r.Close()
		if r.consumed {
			return
		}
		r.consumed = true

		scanner := bufio.NewScanner(r.file)
		scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			r.err = fmt.Errorf("failed to read %s: %w", r.path, err)
		}
	}
}

// Err returns the read error that ended iteration, if any
func (r *Reader) Err() error {
	return r.err
}

// Close releases the file handle. Safe to call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.consumed = true
		r.closeErr = r.file.Close()
	})
	return r.closeErr
}

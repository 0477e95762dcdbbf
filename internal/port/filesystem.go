package port

import (
	"io"
	"time"
)

// FileSystem defines the interface for output directory operations
type FileSystem interface {
	// RootDir returns the output root directory
	RootDir() string

	// AlbumDir returns the output directory for a URL list file
	AlbumDir(listFile string) string

	// EnsureDir creates dir and its parents if missing.
	// Returns true only if this call created dir. Safe to call concurrently.
	EnsureDir(dir string) (bool, error)

	// WriteFile atomically writes content to name inside dir
	// Returns: final path, bytes written, error
	WriteFile(dir, name string, write func(w io.Writer) error) (string, int64, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}

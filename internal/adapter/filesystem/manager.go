package filesystem

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/port"
)

// tempSuffix marks files that are still being written
const tempSuffix = ".part"

// Manager handles output directory operations
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager.
// The root directory is not created until EnsureDir is called for it.
func NewManager(rootDir string) *Manager {
	return NewManagerWithBufferSize(rootDir, 256*1024) // 256KB default
}

// NewManagerWithBufferSize creates a new filesystem manager with custom write buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = 256 * 1024
	}
	return &Manager{
		rootDir:    filepath.Clean(rootDir),
		bufferSize: bufferSize,
	}
}

// RootDir returns the output root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// AlbumDir returns the output directory for a URL list file
func (m *Manager) AlbumDir(listFile string) string {
	return filepath.Join(m.rootDir, domain.Album(listFile))
}

// EnsureDir creates dir and its parents if missing.
// Concurrent callers racing on the same directory all succeed; exactly one
// of them observes created == true.
func (m *Manager) EnsureDir(dir string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return false, fmt.Errorf("failed to create parent dir: %w", err)
	}

	err := os.Mkdir(dir, 0755)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, iofs.ErrExist) {
		return false, fmt.Errorf("failed to create dir: %w", err)
	}

	info, statErr := os.Stat(dir)
	if statErr != nil {
		return false, fmt.Errorf("failed to stat dir: %w", statErr)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s: %w", dir, domain.ErrNotADirectory)
	}
	return false, nil
}

// WriteFile writes content produced by write to dir/name.
// Content goes to a uniquely named temp file first and is renamed into
// place, so readers never observe a partial file and concurrent writers of
// the same name do not interleave.
func (m *Manager) WriteFile(dir, name string, write func(w io.Writer) error) (string, int64, error) {
	finalPath := filepath.Join(dir, name)

	f, err := os.CreateTemp(dir, "."+name+".*"+tempSuffix)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	cw := &countingWriter{w: f}
	bw := bufio.NewWriterSize(cw, m.bufferSize)

	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to flush file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to chmod temp file: %w", err)
	}

	// Rename to final path
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return finalPath, cw.n, nil
}

// CleanOldTempFiles removes temp files older than the specified duration.
// A missing root directory is not an error.
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.WalkDir(m.rootDir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) && path == m.rootDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), tempSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

package domain

import (
	"path/filepath"
	"strings"
)

// Job is one URL read from one URL list file
type Job struct {
	// ListFile is the path of the URL list file the URL was read from
	ListFile string

	// URL is the raw line as read from the list file
	URL string

	// Line is the 1-based line number of URL within ListFile
	Line int
}

// Album returns the output subdirectory for a URL list file, relative to
// the output root: the list file's stem followed by the name of the
// directory that contains it.
func Album(listFile string) string {
	base := filepath.Base(listFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parent := filepath.Base(filepath.Dir(listFile))
	return filepath.Join(stem, parent)
}

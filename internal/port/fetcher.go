package port

import (
	"context"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// Fetcher retrieves a single URL.
// Transport failures are returned as errors; filtered responses are
// returned as empty results.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchResult, error)
}

// Saver decodes a payload and writes it below the output root
type Saver interface {
	Save(ctx context.Context, job domain.Job, payload []byte) (*domain.SavedImage, error)
}

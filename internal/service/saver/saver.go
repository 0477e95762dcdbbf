// Package saver decodes fetched payloads and writes them below the output root.
package saver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/domain/event"
	"github.com/vertextoedge/image-downloader/internal/port"
)

// Config contains saver configuration
type Config struct {
	// JPEGQuality is used when re-encoding JPEG images (1-100)
	JPEGQuality int
}

// DefaultConfig returns default saver configuration
func DefaultConfig() *Config {
	return &Config{JPEGQuality: 95}
}

// Saver writes one file per successfully decoded payload
type Saver struct {
	config *Config
	fs     port.FileSystem
	events event.EventDispatcher
	logger *zap.Logger
}

// Ensure Saver implements port.Saver
var _ port.Saver = (*Saver)(nil)

// New creates a new Saver
func New(cfg *Config, fs port.FileSystem, events event.EventDispatcher, logger *zap.Logger) *Saver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	if events == nil {
		events = event.NullDispatcher{}
	}
	return &Saver{
		config: cfg,
		fs:     fs,
		events: events,
		logger: logger,
	}
}

// Save decodes payload and writes it to the album directory of the job's
// list file as <sha256 of payload><extension>. The same payload always maps
// to the same path, so saving it twice overwrites with identical content.
func (s *Saver) Save(ctx context.Context, job domain.Job, payload []byte) (*domain.SavedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := decode(payload)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	name := digest + extensionFor(job.URL, img.format)

	dir := s.fs.AlbumDir(job.ListFile)
	created, err := s.fs.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create album dir: %w", err)
	}
	if created {
		if err := s.events.Dispatch(event.NewOutputDirCreated(dir)); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("event", event.NameOutputDirCreated),
				zap.Error(err))
		}
	}

	path, written, err := s.fs.WriteFile(dir, name, func(w io.Writer) error {
		return img.encode(w, s.config.JPEGQuality)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("image written",
		zap.String("url", job.URL),
		zap.String("format", img.format),
		zap.Int("payload_size", len(payload)),
		zap.Int64("written", written))

	return &domain.SavedImage{
		Path:         path,
		Digest:       digest,
		Format:       img.format,
		BytesWritten: written,
	}, nil
}

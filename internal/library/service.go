package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"mediaplus/internal/catalog"
	"mediaplus/internal/config"
	"mediaplus/internal/scanner"
	"mediaplus/internal/worker"
	"mediaplus/pkg/models"
)

// Source enumerates library media and reads single files for the watcher.
type Source interface {
	scanner.Source
	Read(ctx context.Context, path string, class models.MediaType) (*scanner.Record, error)
	Roots() []string
}

// ScanResult summarises one library scan
type ScanResult struct {
	Scanned  map[models.MediaType]int `json:"scanned"`
	Stored   int                      `json:"stored"`
	Duration time.Duration            `json:"duration"`
}

// Service ties device enumeration, single-file import and the catalog
// together. Background work runs on the worker queue.
type Service struct {
	source   Source
	importer *scanner.Importer
	catalog  *catalog.Repository
	queue    *worker.Queue
	logger   *logrus.Logger
	cfg      config.LibraryConfig

	watcher  *fsnotify.Watcher
	watchMux sync.Mutex
	settle   time.Duration
}

// NewService creates a library service
func NewService(source Source, importer *scanner.Importer, repo *catalog.Repository, queue *worker.Queue, logger *logrus.Logger, cfg config.LibraryConfig) *Service {
	return &Service{
		source:   source,
		importer: importer,
		catalog:  repo,
		queue:    queue,
		logger:   logger,
		cfg:      cfg,
		settle:   500 * time.Millisecond,
	}
}

// DefaultClasses are the media classes a scan enumerates when none are given.
var DefaultClasses = []models.MediaType{models.MediaTypeAudio, models.MediaTypeVideo}

// Scan enumerates each class and merges the results into the catalog. On
// error or cancellation the result covers the work already stored.
func (s *Service) Scan(ctx context.Context, classes ...models.MediaType) (ScanResult, error) {
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	start := time.Now()
	result := ScanResult{Scanned: make(map[models.MediaType]int, len(classes))}

	for _, class := range classes {
		records, err := s.source.Enumerate(ctx, class)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("failed to enumerate %s media: %w", class, err)
		}

		entries := make([]models.MediaEntry, 0, len(records))
		for _, r := range records {
			entries = append(entries, r.Entry(class))
		}
		result.Scanned[class] = len(entries)

		stored, err := s.catalog.MergeScan(ctx, entries)
		result.Stored += len(stored)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("failed to merge %s scan: %w", class, err)
		}
	}

	result.Duration = time.Since(start)
	s.logger.WithFields(logrus.Fields{
		"stored":   result.Stored,
		"duration": result.Duration,
	}).Info("Library scan complete")
	return result, nil
}

// ScanAsync queues a scan on the background worker.
func (s *Service) ScanAsync(ctx context.Context, classes ...models.MediaType) (*worker.Job, <-chan error) {
	return s.queue.Submit(ctx, "library-scan", func(ctx context.Context) error {
		_, err := s.Scan(ctx, classes...)
		return err
	})
}

// Import adds one file to the catalog. A file already catalogued under the
// same uri keeps its id and history.
func (s *Service) Import(ctx context.Context, locator string, mediaType models.MediaType) (models.MediaEntry, error) {
	return worker.Do(ctx, s.queue, "import", func(ctx context.Context) (models.MediaEntry, error) {
		entry, err := s.importer.Import(ctx, locator, mediaType)
		if err != nil {
			return models.MediaEntry{}, err
		}
		stored, err := s.catalog.MergeScan(ctx, []models.MediaEntry{entry})
		if err != nil {
			return models.MediaEntry{}, err
		}
		return stored[0], nil
	})
}

// PruneProviderBacked removes entries whose access grant may have lapsed.
func (s *Service) PruneProviderBacked(ctx context.Context) (int64, error) {
	return worker.Do(ctx, s.queue, "prune-provider-backed", s.catalog.DeleteStaleProviderBacked)
}

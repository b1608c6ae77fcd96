package scanner

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"mediaplus/internal/config"
	"mediaplus/internal/metadata"
	"mediaplus/pkg/models"
)

// Record is one raw result of enumerating device media.
type Record struct {
	SourceID   string
	Title      string
	Artist     string
	Album      string
	DurationMs int64
	Path       string
	MimeType   string
	DateAdded  int64
	SizeBytes  int64
	AlbumArt   string
}

// Entry converts r into a catalog entry of the given class. Audio entries
// use the album art as thumbnail; video thumbnails are deferred.
func (r Record) Entry(class models.MediaType) models.MediaEntry {
	e := models.MediaEntry{
		ID:         r.SourceID,
		Title:      r.Title,
		Artist:     r.Artist,
		Album:      r.Album,
		DurationMs: r.DurationMs,
		Path:       r.Path,
		URI:        FileURI(r.Path),
		MediaType:  class,
		MimeType:   r.MimeType,
		DateAdded:  r.DateAdded,
		SizeBytes:  r.SizeBytes,
	}
	if class == models.MediaTypeAudio {
		e.ThumbnailPath = r.AlbumArt
	}
	return e
}

// Source enumerates the media of one class available on the device.
type Source interface {
	Enumerate(ctx context.Context, class models.MediaType) ([]Record, error)
}

// FileURI returns the file:// URI for an absolute path.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// SourceID derives a stable id for the file at path.
func SourceID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(FileURI(path))).String()
}

// FilesystemSource enumerates media files under the library roots.
type FilesystemSource struct {
	fs        afero.Fs
	extractor *metadata.Extractor
	logger    *logrus.Logger
	roots     []string
	workers   int
}

// NewFilesystemSource creates a source walking cfg.Roots on fs.
func NewFilesystemSource(fs afero.Fs, extractor *metadata.Extractor, logger *logrus.Logger, cfg config.LibraryConfig) *FilesystemSource {
	roots := make([]string, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		roots = append(roots, root)
	}
	workers := cfg.ScanWorkers
	if workers < 1 {
		workers = 1
	}
	return &FilesystemSource{
		fs:        fs,
		extractor: extractor,
		logger:    logger,
		roots:     roots,
		workers:   workers,
	}
}

// Roots returns the absolute library roots.
func (s *FilesystemSource) Roots() []string {
	return s.roots
}

// Enumerate walks every root and reads metadata for files of class. Files
// that cannot be read are logged and skipped. Records are sorted by path.
func (s *FilesystemSource) Enumerate(ctx context.Context, class models.MediaType) ([]Record, error) {
	paths, err := s.collect(ctx, class)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[*Record]().WithContext(ctx).WithMaxGoroutines(s.workers)
	for _, path := range paths {
		p.Go(func(ctx context.Context) (*Record, error) {
			return s.read(ctx, path, class)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	s.logger.WithFields(logrus.Fields{
		"class":   class,
		"found":   len(paths),
		"records": len(records),
	}).Info("Enumerated media files")
	return records, nil
}

// Read builds the record for a single file, or nil if it is not media of
// class.
func (s *FilesystemSource) Read(ctx context.Context, path string, class models.MediaType) (*Record, error) {
	if t, ok := s.extractor.Classify(path); !ok || t != class {
		return nil, nil
	}
	return s.read(ctx, path, class)
}

func (s *FilesystemSource) read(ctx context.Context, path string, class models.MediaType) (*Record, error) {
	info, err := s.extractor.Extract(ctx, path, class)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithError(err).WithField("filePath", path).Warn("Skipping unreadable media file")
		return nil, nil
	}

	return &Record{
		SourceID:   SourceID(path),
		Title:      info.Title,
		Artist:     info.Artist,
		Album:      info.Album,
		DurationMs: info.DurationMs,
		Path:       path,
		MimeType:   info.MimeType,
		DateAdded:  info.ModTime.UnixMilli(),
		SizeBytes:  info.SizeBytes,
		AlbumArt:   info.ArtworkPath,
	}, nil
}

func (s *FilesystemSource) collect(ctx context.Context, class models.MediaType) ([]string, error) {
	var paths []string
	for _, root := range s.roots {
		if _, err := s.fs.Stat(root); os.IsNotExist(err) {
			s.logger.WithField("root", root).Warn("Library root does not exist")
			continue
		}

		err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				s.logger.WithError(err).WithField("path", path).Warn("Error walking library")
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if t, ok := s.extractor.Classify(path); ok && t == class {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

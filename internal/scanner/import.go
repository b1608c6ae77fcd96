package scanner

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"mediaplus/internal/metadata"
	"mediaplus/pkg/models"
)

// Importer builds a catalog entry for a single user-picked file without
// running a full scan.
type Importer struct {
	fs        afero.Fs
	extractor *metadata.Extractor
	logger    *logrus.Logger
	now       func() time.Time
}

// NewImporter creates an importer reading files from fs.
func NewImporter(fs afero.Fs, extractor *metadata.Extractor, logger *logrus.Logger) *Importer {
	return &Importer{fs: fs, extractor: extractor, logger: logger, now: time.Now}
}

// Import reads the file named by locator, a path or file:// URI. When
// mediaType is empty it is inferred from the extension. The entry gets a
// synthetic id and is stamped with the current time.
func (i *Importer) Import(ctx context.Context, locator string, mediaType models.MediaType) (models.MediaEntry, error) {
	path, err := resolveLocator(locator)
	if err != nil {
		return models.MediaEntry{}, err
	}

	stat, err := i.fs.Stat(path)
	if err != nil {
		return models.MediaEntry{}, fmt.Errorf("failed to stat import file: %w", err)
	}
	if stat.IsDir() {
		return models.MediaEntry{}, models.NewValidationError("locator", "is a directory")
	}

	if mediaType == "" {
		t, ok := i.extractor.Classify(path)
		if !ok {
			return models.MediaEntry{}, models.NewValidationError("mediaType", "cannot infer media type from "+filepath.Ext(path))
		}
		mediaType = t
	}

	info, err := i.extractor.Extract(ctx, path, mediaType)
	if err != nil {
		return models.MediaEntry{}, err
	}

	now := i.now().UnixMilli()
	uri := FileURI(path)
	entry := models.MediaEntry{
		ID:         syntheticID(now, uri),
		Title:      info.Title,
		Artist:     info.Artist,
		Album:      info.Album,
		DurationMs: info.DurationMs,
		Path:       path,
		URI:        uri,
		MediaType:  mediaType,
		MimeType:   info.MimeType,
		DateAdded:  now,
		SizeBytes:  info.SizeBytes,
	}
	if mediaType == models.MediaTypeAudio {
		entry.ThumbnailPath = info.ArtworkPath
	}

	i.logger.WithFields(logrus.Fields{
		"id":   entry.ID,
		"path": path,
		"type": mediaType,
	}).Info("Imported media file")
	return entry, nil
}

func resolveLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", models.NewValidationError("locator", "must not be empty")
	}

	if strings.Contains(locator, "://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", models.NewValidationError("locator", "is not a valid URI")
		}
		if u.Scheme != "file" {
			return "", models.NewValidationError("locator", "unsupported scheme "+u.Scheme)
		}
		locator = filepath.FromSlash(u.Path)
	}

	if abs, err := filepath.Abs(locator); err == nil {
		locator = abs
	}
	return locator, nil
}

// syntheticID joins the import time and a hash of the uri.
func syntheticID(millis int64, uri string) string {
	h := fnv.New32a()
	h.Write([]byte(uri))
	return fmt.Sprintf("%d%d", millis, h.Sum32())
}

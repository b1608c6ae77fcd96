package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"mediaplus/pkg/models"
)

// StartWatcher watches every library root recursively. Created media files
// are merged into the catalog and removed ones are deleted from it. The
// watcher stops when ctx is cancelled or StopWatcher is called.
func (s *Service) StartWatcher(ctx context.Context) error {
	s.watchMux.Lock()
	defer s.watchMux.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, root := range s.source.Roots() {
		if err := addDirectoryToWatcher(watcher, root); err != nil {
			if os.IsNotExist(err) {
				s.logger.WithField("root", root).Warn("Library root does not exist, not watching")
				continue
			}
			watcher.Close()
			return err
		}
	}
	s.watcher = watcher

	go s.watchFiles(ctx, watcher)

	s.logger.WithField("roots", s.source.Roots()).Info("File watcher started")
	return nil
}

// StopWatcher closes the watcher (idempotent).
func (s *Service) StopWatcher() {
	s.watchMux.Lock()
	defer s.watchMux.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func addDirectoryToWatcher(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (s *Service) watchFiles(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			s.StopWatcher()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates creation/removal actions.
func (s *Service) handleFileEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addDirectoryToWatcher(watcher, event.Name); err != nil {
				s.logger.WithError(err).WithField("directory", event.Name).Warn("Failed to watch new directory")
				return
			}
			s.logger.WithField("directory", event.Name).Info("Watching new directory")
			return
		}
		go func(name string) {
			// let the writer finish
			select {
			case <-time.After(s.settle):
			case <-ctx.Done():
				return
			}
			s.queue.Submit(ctx, "watch-add", func(ctx context.Context) error {
				return s.handleNewFile(ctx, name)
			})
		}(event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !s.cfg.WatchRemovals {
			// entries outlive their files so history and memberships survive
			s.logger.WithField("file_path", event.Name).Debug("Media file removed; keeping catalog entry")
			return
		}
		s.queue.Submit(ctx, "watch-remove", func(ctx context.Context) error {
			return s.handleRemovedFile(ctx, event.Name)
		})
	}
}

// handleNewFile reads a created file and merges it into the catalog.
func (s *Service) handleNewFile(ctx context.Context, path string) error {
	for _, class := range DefaultClasses {
		record, err := s.source.Read(ctx, path, class)
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}

		stored, err := s.catalog.MergeScan(ctx, []models.MediaEntry{record.Entry(class)})
		if err != nil {
			s.logger.WithError(err).WithField("file_path", path).Error("Error adding watched file")
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"file_path": path,
			"id":        stored[0].ID,
			"title":     stored[0].Title,
		}).Info("Added new media file")
		return nil
	}
	return nil
}

// handleRemovedFile removes entries referencing a deleted file.
func (s *Service) handleRemovedFile(ctx context.Context, path string) error {
	n, err := s.catalog.DeleteByPath(ctx, path)
	if err != nil {
		s.logger.WithError(err).WithField("file_path", path).Error("Error removing media file from catalog")
		return err
	}
	if n > 0 {
		s.logger.WithField("file_path", path).Info("Removed media file from catalog")
	}
	return nil
}

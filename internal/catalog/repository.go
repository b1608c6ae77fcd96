package catalog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"mediaplus/internal/config"
	"mediaplus/internal/database"
	"mediaplus/pkg/models"
)

// Entries is the live result type of catalog list queries.
type Entries = *database.Subscription[[]models.MediaEntry]

// Repository is the catalog's read/write surface over the store. Every call
// is a direct store round trip.
type Repository struct {
	db                *database.Database
	logger            *logrus.Logger
	policy            MergePolicy
	batchSize         int
	transientPrefixes []string
	now               func() time.Time
}

// NewRepository builds a catalog repository on db using the library section
// of the configuration for merge and cleanup behavior.
func NewRepository(db *database.Database, logger *logrus.Logger, cfg config.LibraryConfig) *Repository {
	batch := cfg.ScanBatchSize
	if batch < 1 {
		batch = 500
	}
	return &Repository{
		db:                db,
		logger:            logger,
		policy:            MergePolicy{PreserveFavorites: cfg.PreserveFavorites},
		batchSize:         batch,
		transientPrefixes: cfg.TransientURIPrefixes,
		now:               time.Now,
	}
}

// GetAll returns every catalog entry.
func (r *Repository) GetAll(ctx context.Context) ([]models.MediaEntry, error) {
	return r.db.Queries().GetAllMediaEntries(ctx)
}

// GetByType returns entries of one media type.
func (r *Repository) GetByType(ctx context.Context, mediaType models.MediaType) ([]models.MediaEntry, error) {
	return r.db.Queries().GetMediaEntriesByType(ctx, mediaType)
}

// GetFavorites returns favorite entries.
func (r *Repository) GetFavorites(ctx context.Context) ([]models.MediaEntry, error) {
	return r.db.Queries().GetFavoriteMediaEntries(ctx)
}

// GetRecentlyPlayed returns played entries, most recent first.
func (r *Repository) GetRecentlyPlayed(ctx context.Context) ([]models.MediaEntry, error) {
	return r.db.Queries().GetRecentlyPlayed(ctx)
}

// GetByID returns nil when no entry has id.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.MediaEntry, error) {
	return r.db.Queries().GetMediaEntryByID(ctx, id)
}

// Search matches title, artist or album case-insensitively.
func (r *Repository) Search(ctx context.Context, query string) ([]models.MediaEntry, error) {
	return r.db.Queries().SearchMediaEntries(ctx, query)
}

func (r *Repository) ObserveAll(ctx context.Context) Entries {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.MediaEntry, error) {
		return q.GetAllMediaEntries(ctx)
	}, database.TableMediaItems)
}

func (r *Repository) ObserveByType(ctx context.Context, mediaType models.MediaType) Entries {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.MediaEntry, error) {
		return q.GetMediaEntriesByType(ctx, mediaType)
	}, database.TableMediaItems)
}

func (r *Repository) ObserveFavorites(ctx context.Context) Entries {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.MediaEntry, error) {
		return q.GetFavoriteMediaEntries(ctx)
	}, database.TableMediaItems)
}

func (r *Repository) ObserveRecentlyPlayed(ctx context.Context) Entries {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.MediaEntry, error) {
		return q.GetRecentlyPlayed(ctx)
	}, database.TableMediaItems)
}

// Upsert stores entries in one transaction, replacing any with the same id.
func (r *Repository) Upsert(ctx context.Context, entries ...models.MediaEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.Update(ctx, func(q *database.Queries) error {
		return q.UpsertMediaEntries(ctx, entries)
	}, database.TableMediaItems)
}

// Update overwrites an existing entry. Updating an unknown id is a no-op.
func (r *Repository) Update(ctx context.Context, entry models.MediaEntry) error {
	return r.db.Update(ctx, func(q *database.Queries) error {
		_, err := q.UpdateMediaEntry(ctx, entry)
		return err
	}, database.TableMediaItems)
}

// MarkPlayed records that playback of id began now.
func (r *Repository) MarkPlayed(ctx context.Context, id string) error {
	ts := r.now().UnixMilli()
	return r.db.Update(ctx, func(q *database.Queries) error {
		found, err := q.SetLastPlayed(ctx, id, ts)
		if err == nil && !found {
			r.logger.WithField("media_id", id).Debug("Played entry is not in the catalog")
		}
		return err
	}, database.TableMediaItems)
}

// ToggleFavorite flips the favorite flag of id and returns the updated
// entry, or nil when there is no such entry. Play history is untouched.
func (r *Repository) ToggleFavorite(ctx context.Context, id string) (*models.MediaEntry, error) {
	var updated *models.MediaEntry
	err := r.db.Update(ctx, func(q *database.Queries) error {
		_, found, err := q.ToggleFavorite(ctx, id)
		if err != nil || !found {
			return err
		}
		updated, err = q.GetMediaEntryByID(ctx, id)
		return err
	}, database.TableMediaItems)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveFromRecents clears the play history of id without deleting it.
// Failures are logged and not returned.
func (r *Repository) RemoveFromRecents(ctx context.Context, id string) {
	err := r.db.Update(ctx, func(q *database.Queries) error {
		_, err := q.SetLastPlayed(ctx, id, 0)
		return err
	}, database.TableMediaItems)
	if err != nil {
		r.logger.WithError(err).WithField("media_id", id).Error("Failed to remove entry from recents")
	}
}

// Delete removes entry by its id.
func (r *Repository) Delete(ctx context.Context, entry models.MediaEntry) error {
	_, err := r.DeleteByID(ctx, entry.ID)
	return err
}

// DeleteByID removes one entry and reports whether it existed. Playlist
// memberships referencing it are removed with it.
func (r *Repository) DeleteByID(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		deleted, err = q.DeleteMediaEntryByID(ctx, id)
		return err
	}, database.TableMediaItems, database.TablePlaylistMedia)
	return deleted, err
}

// DeleteByPath removes every entry stored for a file path.
func (r *Repository) DeleteByPath(ctx context.Context, path string) (int64, error) {
	var n int64
	err := r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		n, err = q.DeleteMediaEntriesByPath(ctx, path)
		return err
	}, database.TableMediaItems, database.TablePlaylistMedia)
	return n, err
}

// DeleteStaleProviderBacked removes entries whose uri depends on a revocable
// document-provider grant.
func (r *Repository) DeleteStaleProviderBacked(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		n, err = q.DeleteMediaEntriesByURIPrefix(ctx, r.transientPrefixes)
		return err
	}, database.TableMediaItems, database.TablePlaylistMedia)
	if err == nil && n > 0 {
		r.logger.WithField("deleted", n).Info("Removed stale provider-backed entries")
	}
	return n, err
}

// MergeScan merges scanned into the catalog and returns what was stored.
// Writes happen in batches, each its own transaction that looks up the
// existing entries for its uris and upserts the merge, so user state
// committed between batches is kept. ctx is checked between batches. On
// cancellation the entries stored so far are returned along with the
// context error; the catalog stays consistent.
func (r *Repository) MergeScan(ctx context.Context, scanned []models.MediaEntry) ([]models.MediaEntry, error) {
	merged := make([]models.MediaEntry, 0, len(scanned))
	matched := 0
	for start := 0; start < len(scanned); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		batch := scanned[start:min(start+r.batchSize, len(scanned))]
		uris := make([]string, len(batch))
		for i, e := range batch {
			uris[i] = e.URI
		}

		var stored []models.MediaEntry
		var found int
		err := r.db.Update(ctx, func(q *database.Queries) error {
			existing, err := q.GetMediaEntriesByURIs(ctx, uris)
			if err != nil {
				return err
			}
			found = len(existing)
			stored = Merge(existing, batch, r.policy)
			return q.UpsertMediaEntries(ctx, stored)
		}, database.TableMediaItems)
		if err != nil {
			return merged, err
		}
		merged = append(merged, stored...)
		matched += found
	}
	r.logger.WithFields(logrus.Fields{"scanned": len(scanned), "existing": matched}).Debug("Merged scan into catalog")
	return merged, nil
}

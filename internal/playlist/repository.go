package playlist

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mediaplus/internal/database"
	"mediaplus/pkg/models"
)

const maxNameLength = 200

// Repository manages playlists and their ordered membership. Every
// read-then-write sequence runs inside one store transaction, so concurrent
// calls on the same playlist cannot interleave.
type Repository struct {
	db     *database.Database
	logger *logrus.Logger
	now    func() time.Time
}

// NewRepository creates a playlist repository on db.
func NewRepository(db *database.Database, logger *logrus.Logger) *Repository {
	return &Repository{db: db, logger: logger, now: time.Now}
}

var membershipTables = []database.Table{database.TablePlaylists, database.TablePlaylistMedia}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.NewValidationError("name", "must not be empty")
	}
	if len(name) > maxNameLength {
		return "", models.NewValidationError("name", "must be at most 200 characters")
	}
	return name, nil
}

// Create adds a playlist and returns its id.
func (r *Repository) Create(ctx context.Context, name, description string) (int64, error) {
	name, err := validateName(name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		id, err = q.InsertPlaylist(ctx, name, strings.TrimSpace(description), r.now().UnixMilli())
		return err
	}, database.TablePlaylists)
	if err != nil {
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{"playlist_id": id, "name": name}).Info("Created playlist")
	return id, nil
}

// GetByID returns nil when the playlist does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Playlist, error) {
	return r.db.Queries().GetPlaylistByID(ctx, id)
}

// GetAll returns every playlist with member counts, most recently changed
// first.
func (r *Repository) GetAll(ctx context.Context) ([]models.Playlist, error) {
	return r.db.Queries().GetAllPlaylists(ctx)
}

func (r *Repository) ObserveAll(ctx context.Context) *database.Subscription[[]models.Playlist] {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.Playlist, error) {
		return q.GetAllPlaylists(ctx)
	}, membershipTables...)
}

// Update rewrites name, description and thumbnail. It reports false when the
// playlist does not exist.
func (r *Repository) Update(ctx context.Context, id int64, name, description, thumbnailPath string) (bool, error) {
	name, err := validateName(name)
	if err != nil {
		return false, err
	}

	var found bool
	err = r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		found, err = q.UpdatePlaylist(ctx, id, name, strings.TrimSpace(description), thumbnailPath, r.now().UnixMilli())
		return err
	}, database.TablePlaylists)
	return found, err
}

// Delete removes a playlist and its memberships. Media entries are kept.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := r.db.Update(ctx, func(q *database.Queries) error {
		var err error
		found, err = q.DeletePlaylist(ctx, id)
		return err
	}, membershipTables...)
	return found, err
}

// AddMediaItem appends mediaItemID to the playlist. An entry that is already
// a member moves to the end. Unknown playlist or media ids fail with a
// storage error.
func (r *Repository) AddMediaItem(ctx context.Context, playlistID int64, mediaItemID string) error {
	return r.db.Update(ctx, func(q *database.Queries) error {
		if _, err := q.DeleteMembership(ctx, playlistID, mediaItemID); err != nil {
			return err
		}
		if err := renumber(ctx, q, playlistID, nil); err != nil {
			return err
		}
		count, err := q.CountMembers(ctx, playlistID)
		if err != nil {
			return err
		}
		if err := q.InsertMembership(ctx, playlistID, mediaItemID, count); err != nil {
			return err
		}
		return r.touch(ctx, q, playlistID)
	}, membershipTables...)
}

// RemoveMediaItem drops mediaItemID from the playlist and closes the gap it
// leaves.
func (r *Repository) RemoveMediaItem(ctx context.Context, playlistID int64, mediaItemID string) error {
	return r.db.Update(ctx, func(q *database.Queries) error {
		if _, err := q.DeleteMembership(ctx, playlistID, mediaItemID); err != nil {
			return err
		}
		if err := renumber(ctx, q, playlistID, nil); err != nil {
			return err
		}
		return r.touch(ctx, q, playlistID)
	}, membershipTables...)
}

// MoveMediaItem places mediaItemID at newPosition, shifting its peers.
// Positions past the end clamp to the last slot. Moving an entry that is not
// a member only touches the playlist.
func (r *Repository) MoveMediaItem(ctx context.Context, playlistID int64, mediaItemID string, newPosition int) error {
	if newPosition < 0 {
		return models.NewValidationError("position", "must not be negative")
	}

	return r.db.Update(ctx, func(q *database.Queries) error {
		err := renumber(ctx, q, playlistID, func(order []string) []string {
			idx := slices.Index(order, mediaItemID)
			if idx < 0 {
				return order
			}
			order = slices.Delete(order, idx, idx+1)
			return slices.Insert(order, min(newPosition, len(order)), mediaItemID)
		})
		if err != nil {
			return err
		}
		return r.touch(ctx, q, playlistID)
	}, membershipTables...)
}

// Clear removes every member of the playlist.
func (r *Repository) Clear(ctx context.Context, playlistID int64) error {
	return r.db.Update(ctx, func(q *database.Queries) error {
		if _, err := q.ClearMemberships(ctx, playlistID); err != nil {
			return err
		}
		return r.touch(ctx, q, playlistID)
	}, membershipTables...)
}

// MembersOrdered returns the playlist's entries by position.
func (r *Repository) MembersOrdered(ctx context.Context, playlistID int64) ([]models.MediaEntry, error) {
	return r.db.Queries().GetMembersOrdered(ctx, playlistID)
}

// Memberships returns the raw membership rows by position.
func (r *Repository) Memberships(ctx context.Context, playlistID int64) ([]models.PlaylistMembership, error) {
	return r.db.Queries().GetMemberships(ctx, playlistID)
}

func (r *Repository) ObserveMembers(ctx context.Context, playlistID int64) *database.Subscription[[]models.MediaEntry] {
	return database.Observe(ctx, r.db, func(ctx context.Context, q *database.Queries) ([]models.MediaEntry, error) {
		return q.GetMembersOrdered(ctx, playlistID)
	}, database.TablePlaylistMedia, database.TableMediaItems)
}

// touch bumps updated_at; a missing playlist is skipped.
func (r *Repository) touch(ctx context.Context, q *database.Queries, playlistID int64) error {
	found, err := q.TouchPlaylist(ctx, playlistID, r.now().UnixMilli())
	if err == nil && !found {
		r.logger.WithField("playlist_id", playlistID).Debug("Skipped touch of missing playlist")
	}
	return err
}

// renumber rewrites positions as 0..n-1 in current order, optionally
// reordered by reorder first. Rows already at the right position are left
// alone.
func renumber(ctx context.Context, q *database.Queries, playlistID int64, reorder func([]string) []string) error {
	members, err := q.GetMemberships(ctx, playlistID)
	if err != nil {
		return err
	}

	order := make([]string, len(members))
	current := make(map[string]int, len(members))
	for i, m := range members {
		order[i] = m.MediaItemID
		current[m.MediaItemID] = m.Position
	}
	if reorder != nil {
		order = reorder(order)
	}

	for pos, id := range order {
		if current[id] == pos {
			continue
		}
		if err := q.SetMemberPosition(ctx, playlistID, id, pos); err != nil {
			return err
		}
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"

	"mediaplus/pkg/models"
)

const playlistSelect = `
	SELECT p.id, p.name, p.description, p.created_at, p.updated_at, p.thumbnail_path,
		(SELECT COUNT(*) FROM playlist_media pm WHERE pm.playlist_id = p.id)
	FROM playlists p`

// InsertPlaylist creates a playlist stamped with now and returns its id.
func (q *Queries) InsertPlaylist(ctx context.Context, name, description string, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO playlists (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, nullString(description), now, now)
	if err != nil {
		return 0, storageErr("insert playlist", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("insert playlist", err)
	}
	return id, nil
}

// GetPlaylistByID returns the playlist with id, or nil if there is none.
func (q *Queries) GetPlaylistByID(ctx context.Context, id int64) (*models.Playlist, error) {
	row := q.db.QueryRowContext(ctx, playlistSelect+` WHERE p.id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get playlist by id", err)
	}
	return &p, nil
}

// GetAllPlaylists returns playlists most recently changed first.
func (q *Queries) GetAllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := q.db.QueryContext(ctx, playlistSelect+` ORDER BY p.updated_at DESC, p.id DESC`)
	if err != nil {
		return nil, storageErr("get all playlists", err)
	}
	defer rows.Close()

	playlists := make([]models.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, storageErr("get all playlists", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get all playlists", err)
	}
	return playlists, nil
}

// UpdatePlaylist rewrites the editable playlist fields and bumps updated_at.
func (q *Queries) UpdatePlaylist(ctx context.Context, id int64, name, description, thumbnailPath string, now int64) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, description = ?, thumbnail_path = ?, updated_at = ? WHERE id = ?`,
		name, nullString(description), nullString(thumbnailPath), now, id)
	if err != nil {
		return false, storageErr("update playlist", err)
	}
	return affected(res, "update playlist")
}

// TouchPlaylist sets updated_at. It reports false when the playlist does not
// exist.
func (q *Queries) TouchPlaylist(ctx context.Context, id int64, now int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return false, storageErr("touch playlist", err)
	}
	return affected(res, "touch playlist")
}

// DeletePlaylist removes a playlist; its memberships cascade.
func (q *Queries) DeletePlaylist(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return false, storageErr("delete playlist", err)
	}
	return affected(res, "delete playlist")
}

// CountMembers returns how many entries a playlist holds.
func (q *Queries) CountMembers(ctx context.Context, playlistID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_media WHERE playlist_id = ?`, playlistID).Scan(&n)
	if err != nil {
		return 0, storageErr("count playlist members", err)
	}
	return n, nil
}

// InsertMembership adds mediaItemID to a playlist at position. Unknown
// playlist or media ids fail the foreign key check.
func (q *Queries) InsertMembership(ctx context.Context, playlistID int64, mediaItemID string, position int) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO playlist_media (playlist_id, media_item_id, position) VALUES (?, ?, ?)`,
		playlistID, mediaItemID, position)
	return storageErr("insert playlist membership", err)
}

// DeleteMembership removes one entry from a playlist.
func (q *Queries) DeleteMembership(ctx context.Context, playlistID int64, mediaItemID string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM playlist_media WHERE playlist_id = ? AND media_item_id = ?`, playlistID, mediaItemID)
	if err != nil {
		return false, storageErr("delete playlist membership", err)
	}
	return affected(res, "delete playlist membership")
}

// ClearMemberships removes every entry from a playlist.
func (q *Queries) ClearMemberships(ctx context.Context, playlistID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM playlist_media WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return 0, storageErr("clear playlist", err)
	}
	n, err := res.RowsAffected()
	return n, storageErr("clear playlist", err)
}

// SetMemberPosition stores position for one membership row.
func (q *Queries) SetMemberPosition(ctx context.Context, playlistID int64, mediaItemID string, position int) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE playlist_media SET position = ? WHERE playlist_id = ? AND media_item_id = ?`,
		position, playlistID, mediaItemID)
	return storageErr("set playlist position", err)
}

// GetMemberships returns a playlist's membership rows ordered by position.
func (q *Queries) GetMemberships(ctx context.Context, playlistID int64) ([]models.PlaylistMembership, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT playlist_id, media_item_id, position FROM playlist_media
		WHERE playlist_id = ? ORDER BY position, rowid`, playlistID)
	if err != nil {
		return nil, storageErr("get playlist memberships", err)
	}
	defer rows.Close()

	members := make([]models.PlaylistMembership, 0)
	for rows.Next() {
		var m models.PlaylistMembership
		if err := rows.Scan(&m.PlaylistID, &m.MediaItemID, &m.Position); err != nil {
			return nil, storageErr("get playlist memberships", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get playlist memberships", err)
	}
	return members, nil
}

// GetMembersOrdered returns the media entries of a playlist in position
// order.
func (q *Queries) GetMembersOrdered(ctx context.Context, playlistID int64) ([]models.MediaEntry, error) {
	return q.selectMedia(ctx, "get playlist members", `
		SELECT m.id, m.title, m.artist, m.album, m.duration_ms, m.path, m.uri, m.mime_type,
			m.media_type, m.thumbnail_path, m.date_added, m.size_bytes, m.is_favorite, m.last_played_at
		FROM media_items m
		INNER JOIN playlist_media pm ON m.id = pm.media_item_id
		WHERE pm.playlist_id = ?
		ORDER BY pm.position, pm.rowid`, playlistID)
}

func scanPlaylist(row rowScanner) (models.Playlist, error) {
	var p models.Playlist
	var description, thumbnail sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt, &thumbnail, &p.MemberCount)
	if err != nil {
		return p, err
	}
	p.Description = description.String
	p.ThumbnailPath = thumbnail.String
	return p, nil
}

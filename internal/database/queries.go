package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"mediaplus/pkg/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every catalog statement. Inside Update it is bound to the
// transaction, otherwise to the pool.
type Queries struct {
	db querier
}

const mediaColumns = `id, title, artist, album, duration_ms, path, uri, mime_type, media_type,
	thumbnail_path, date_added, size_bytes, is_favorite, last_played_at`

const upsertMediaSQL = `
	INSERT INTO media_items (` + mediaColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		album = excluded.album,
		duration_ms = excluded.duration_ms,
		path = excluded.path,
		uri = excluded.uri,
		mime_type = excluded.mime_type,
		media_type = excluded.media_type,
		thumbnail_path = excluded.thumbnail_path,
		date_added = excluded.date_added,
		size_bytes = excluded.size_bytes,
		is_favorite = excluded.is_favorite,
		last_played_at = excluded.last_played_at`

// UpsertMediaEntries inserts entries, replacing the stored values of any
// entry whose id already exists. The row itself is kept so playlist
// memberships survive.
func (q *Queries) UpsertMediaEntries(ctx context.Context, entries []models.MediaEntry) error {
	for _, e := range entries {
		_, err := q.db.ExecContext(ctx, upsertMediaSQL,
			e.ID, e.Title, nullString(e.Artist), nullString(e.Album), e.DurationMs,
			e.Path, e.URI, nullString(e.MimeType), string(e.MediaType),
			nullString(e.ThumbnailPath), e.DateAdded, e.SizeBytes, e.IsFavorite, e.LastPlayedAt)
		if err != nil {
			return storageErr("upsert media entry "+e.ID, err)
		}
	}
	return nil
}

// UpdateMediaEntry overwrites an existing entry. It reports whether a row
// with that id existed.
func (q *Queries) UpdateMediaEntry(ctx context.Context, e models.MediaEntry) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE media_items SET title = ?, artist = ?, album = ?, duration_ms = ?, path = ?, uri = ?,
			mime_type = ?, media_type = ?, thumbnail_path = ?, date_added = ?, size_bytes = ?,
			is_favorite = ?, last_played_at = ?
		WHERE id = ?`,
		e.Title, nullString(e.Artist), nullString(e.Album), e.DurationMs, e.Path, e.URI,
		nullString(e.MimeType), string(e.MediaType), nullString(e.ThumbnailPath), e.DateAdded,
		e.SizeBytes, e.IsFavorite, e.LastPlayedAt, e.ID)
	if err != nil {
		return false, storageErr("update media entry", err)
	}
	return affected(res, "update media entry")
}

// GetAllMediaEntries returns every entry in storage order.
func (q *Queries) GetAllMediaEntries(ctx context.Context) ([]models.MediaEntry, error) {
	return q.selectMedia(ctx, "get all media entries",
		`SELECT `+mediaColumns+` FROM media_items ORDER BY rowid`)
}

// GetMediaEntriesByType returns entries of one media type in storage order.
func (q *Queries) GetMediaEntriesByType(ctx context.Context, mediaType models.MediaType) ([]models.MediaEntry, error) {
	return q.selectMedia(ctx, "get media entries by type",
		`SELECT `+mediaColumns+` FROM media_items WHERE media_type = ? ORDER BY rowid`, string(mediaType))
}

// GetFavoriteMediaEntries returns entries flagged as favorite.
func (q *Queries) GetFavoriteMediaEntries(ctx context.Context) ([]models.MediaEntry, error) {
	return q.selectMedia(ctx, "get favorite media entries",
		`SELECT `+mediaColumns+` FROM media_items WHERE is_favorite = 1 ORDER BY rowid`)
}

// GetRecentlyPlayed returns entries that have been played, most recent first.
func (q *Queries) GetRecentlyPlayed(ctx context.Context) ([]models.MediaEntry, error) {
	return q.selectMedia(ctx, "get recently played",
		`SELECT `+mediaColumns+` FROM media_items WHERE last_played_at > 0 ORDER BY last_played_at DESC, rowid`)
}

// GetMediaEntryByID returns the entry with id, or nil if there is none.
func (q *Queries) GetMediaEntryByID(ctx context.Context, id string) (*models.MediaEntry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id)
	entry, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get media entry by id", err)
	}
	return &entry, nil
}

// GetMediaEntriesByURIs returns the entries stored under any of uris.
func (q *Queries) GetMediaEntriesByURIs(ctx context.Context, uris []string) ([]models.MediaEntry, error) {
	var entries []models.MediaEntry
	for start := 0; start < len(uris); start += maxQueryParams {
		chunk := uris[start:min(start+maxQueryParams, len(uris))]
		args := make([]any, len(chunk))
		for i, uri := range chunk {
			args[i] = uri
		}
		rows, err := q.selectMedia(ctx, "get media entries by uri",
			`SELECT `+mediaColumns+` FROM media_items
			WHERE uri IN (?`+strings.Repeat(",?", len(chunk)-1)+`) ORDER BY rowid`, args...)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rows...)
	}
	return entries, nil
}

// SearchMediaEntries matches query as a case-insensitive substring of title,
// artist or album. Matching uses Unicode case folding on NFC text, which
// SQLite's LIKE only does for ASCII. Results are in storage order.
func (q *Queries) SearchMediaEntries(ctx context.Context, query string) ([]models.MediaEntry, error) {
	all, err := q.selectMedia(ctx, "search media entries",
		`SELECT `+mediaColumns+` FROM media_items ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	key := func(s string) string { return fold.String(norm.NFC.String(s)) }

	needle := key(query)
	var matches []models.MediaEntry
	for _, e := range all {
		if strings.Contains(key(e.Title), needle) ||
			strings.Contains(key(e.Artist), needle) ||
			strings.Contains(key(e.Album), needle) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// CountMediaEntries returns the number of catalog entries.
func (q *Queries) CountMediaEntries(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_items`).Scan(&n); err != nil {
		return 0, storageErr("count media entries", err)
	}
	return n, nil
}

// DeleteMediaEntryByID deletes one entry; memberships cascade.
func (q *Queries) DeleteMediaEntryByID(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return false, storageErr("delete media entry", err)
	}
	return affected(res, "delete media entry")
}

// DeleteMediaEntriesByPath deletes every entry stored for a file path.
func (q *Queries) DeleteMediaEntriesByPath(ctx context.Context, path string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM media_items WHERE path = ?`, path)
	if err != nil {
		return 0, storageErr("delete media entries by path", err)
	}
	n, err := res.RowsAffected()
	return n, storageErr("delete media entries by path", err)
}

// DeleteMediaEntriesByURIPrefix deletes entries whose uri starts with any of
// prefixes.
func (q *Queries) DeleteMediaEntriesByURIPrefix(ctx context.Context, prefixes []string) (int64, error) {
	if len(prefixes) == 0 {
		return 0, nil
	}
	clauses := make([]string, len(prefixes))
	args := make([]any, len(prefixes))
	for i, p := range prefixes {
		clauses[i] = `uri LIKE ? ESCAPE '\'`
		args[i] = escapeLike(p) + "%"
	}
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM media_items WHERE `+strings.Join(clauses, " OR "), args...)
	if err != nil {
		return 0, storageErr("delete media entries by uri prefix", err)
	}
	n, err := res.RowsAffected()
	return n, storageErr("delete media entries by uri prefix", err)
}

// SetLastPlayed stores ts as the entry's last played time; zero clears it.
func (q *Queries) SetLastPlayed(ctx context.Context, id string, ts int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE media_items SET last_played_at = ? WHERE id = ?`, ts, id)
	if err != nil {
		return false, storageErr("set last played", err)
	}
	return affected(res, "set last played")
}

// ToggleFavorite flips the favorite flag and returns the new value. found is
// false when no entry has id.
func (q *Queries) ToggleFavorite(ctx context.Context, id string) (favorite bool, found bool, err error) {
	err = q.db.QueryRowContext(ctx,
		`UPDATE media_items SET is_favorite = 1 - is_favorite WHERE id = ? RETURNING is_favorite`, id).
		Scan(&favorite)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, storageErr("toggle favorite", err)
	}
	return favorite, true, nil
}

func (q *Queries) selectMedia(ctx context.Context, op, query string, args ...any) ([]models.MediaEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	entries, err := scanMediaRows(rows)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (models.MediaEntry, error) {
	var e models.MediaEntry
	var artist, album, mimeType, thumbnail sql.NullString
	var mediaType string

	err := row.Scan(&e.ID, &e.Title, &artist, &album, &e.DurationMs, &e.Path, &e.URI,
		&mimeType, &mediaType, &thumbnail, &e.DateAdded, &e.SizeBytes, &e.IsFavorite, &e.LastPlayedAt)
	if err != nil {
		return e, err
	}

	e.Artist = artist.String
	e.Album = album.String
	e.MimeType = mimeType.String
	e.ThumbnailPath = thumbnail.String
	e.MediaType = models.MediaType(mediaType)
	return e, nil
}

func scanMediaRows(rows *sql.Rows) ([]models.MediaEntry, error) {
	entries := make([]models.MediaEntry, 0)
	for rows.Next() {
		e, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(op, err)
	}
	return n > 0, nil
}

// maxQueryParams stays under SQLite's bound variable limit.
const maxQueryParams = 500

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

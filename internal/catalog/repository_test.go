package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaplus/internal/config"
	"mediaplus/internal/database"
	"mediaplus/pkg/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Library.ScanBatchSize = 2

	logger, _ := logtest.NewNullLogger()
	db, err := database.NewDatabase(context.Background(), cfg.Database, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, logger, cfg.Library)
	repo.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return repo
}

func scannedEntry(n int) models.MediaEntry {
	return models.MediaEntry{
		ID:        fmt.Sprintf("scan-%d", n),
		Title:     fmt.Sprintf("Track %d", n),
		URI:       fmt.Sprintf("file:///music/%d.mp3", n),
		Path:      fmt.Sprintf("/music/%d.mp3", n),
		MediaType: models.MediaTypeAudio,
	}
}

func TestMergeScanPreservesHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := []models.MediaEntry{scannedEntry(1), scannedEntry(2), scannedEntry(3)}
	_, err := repo.MergeScan(ctx, first)
	require.NoError(t, err)

	require.NoError(t, repo.MarkPlayed(ctx, "scan-1"))
	_, err = repo.ToggleFavorite(ctx, "scan-2")
	require.NoError(t, err)

	rescan := scannedEntry(1)
	rescan.Title = "Renamed"
	favorite := scannedEntry(2)
	merged, err := repo.MergeScan(ctx, []models.MediaEntry{rescan, favorite})
	require.NoError(t, err)
	assert.Len(t, merged, 2)

	got, err := repo.GetByID(ctx, "scan-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Title)
	assert.EqualValues(t, 1_700_000_000_000, got.LastPlayedAt)

	got, err = repo.GetByID(ctx, "scan-2")
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMergeScanKeepsConcurrentUserState(t *testing.T) {
	repo := newTestRepo(t)
	repo.batchSize = 1
	ctx := context.Background()

	const n = 400
	scanned := make([]models.MediaEntry, n)
	for i := range scanned {
		scanned[i] = scannedEntry(i)
	}
	_, err := repo.MergeScan(ctx, scanned)
	require.NoError(t, err)
	repo.now = func() time.Time { return time.UnixMilli(1_800_000_000_000) }

	done := make(chan error, 1)
	go func() {
		_, err := repo.MergeScan(ctx, scanned)
		done <- err
	}()

	last := scanned[n-1].ID
	require.NoError(t, repo.MarkPlayed(ctx, last))
	_, err = repo.ToggleFavorite(ctx, last)
	require.NoError(t, err)
	require.NoError(t, <-done)

	entry, err := repo.GetByID(ctx, last)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1_800_000_000_000), entry.LastPlayedAt)
	assert.True(t, entry.IsFavorite)
}

func TestMergeScanNeverDeletes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.MergeScan(ctx, []models.MediaEntry{scannedEntry(1), scannedEntry(2)})
	require.NoError(t, err)

	merged, err := repo.MergeScan(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, merged)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMergeScanCancelled(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.MergeScan(ctx, []models.MediaEntry{scannedEntry(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecentsSemantics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, scannedEntry(1), scannedEntry(2)))

	recent, err := repo.GetRecentlyPlayed(ctx)
	require.NoError(t, err)
	assert.Empty(t, recent)

	require.NoError(t, repo.MarkPlayed(ctx, "scan-1"))
	recent, err = repo.GetRecentlyPlayed(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	repo.RemoveFromRecents(ctx, "scan-1")
	recent, err = repo.GetRecentlyPlayed(ctx)
	require.NoError(t, err)
	assert.Empty(t, recent)

	got, err := repo.GetByID(ctx, "scan-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.LastPlayedAt)
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, scannedEntry(1)))
	require.NoError(t, repo.MarkPlayed(ctx, "scan-1"))

	on, err := repo.ToggleFavorite(ctx, "scan-1")
	require.NoError(t, err)
	assert.True(t, on.IsFavorite)

	off, err := repo.ToggleFavorite(ctx, "scan-1")
	require.NoError(t, err)
	assert.False(t, off.IsFavorite)
	assert.Equal(t, on.LastPlayedAt, off.LastPlayedAt)

	missing, err := repo.ToggleFavorite(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteStaleProviderBacked(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stale := scannedEntry(9)
	stale.URI = "content://com.android.externalstorage.documents/document/primary%3AMusic%2Fx.mp3"
	require.NoError(t, repo.Upsert(ctx, scannedEntry(1), stale))

	n, err := repo.DeleteStaleProviderBacked(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.GetByID(ctx, "scan-9")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := scannedEntry(1)
	e.Title = "Moonlight Sonata"
	e.Artist = "Beethoven"
	require.NoError(t, repo.Upsert(ctx, e, scannedEntry(2)))

	for _, q := range []string{"moon", "beeth", "SONATA"} {
		found, err := repo.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"scan-1"}, ids(found), q)
	}

	require.NoError(t, repo.Delete(ctx, e))
	n, err := repo.DeleteByPath(ctx, "/music/2.mp3")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestObserveRecentlyPlayed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, scannedEntry(1)))

	sub := repo.ObserveRecentlyPlayed(ctx)
	defer sub.Close()

	next := func() []models.MediaEntry {
		select {
		case snap := <-sub.Updates():
			require.NoError(t, snap.Err)
			return snap.Value
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	assert.Empty(t, next())
	require.NoError(t, repo.MarkPlayed(ctx, "scan-1"))
	assert.Equal(t, []string{"scan-1"}, ids(next()))
	repo.RemoveFromRecents(ctx, "scan-1")
	assert.Empty(t, next())
}

func TestRemoveFromRecentsSuppressesFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	logger, hook := logtest.NewNullLogger()
	repo := NewRepository(database.FromConn(conn, logger), logger, config.DefaultConfig().Library)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE media_items SET last_played_at").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	repo.RemoveFromRecents(context.Background(), "scan-1")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "scan-1", hook.LastEntry().Data["media_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorageErrorsPropagate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	logger, _ := logtest.NewNullLogger()
	repo := NewRepository(database.FromConn(conn, logger), logger, config.DefaultConfig().Library)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM media_items WHERE uri IN").WillReturnError(errors.New("database disk image is malformed"))
	mock.ExpectRollback()
	_, err = repo.MergeScan(context.Background(), []models.MediaEntry{scannedEntry(1)})
	assert.ErrorIs(t, err, database.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

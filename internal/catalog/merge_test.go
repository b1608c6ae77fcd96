package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mediaplus/pkg/models"
)

func TestMerge(t *testing.T) {
	existing := []models.MediaEntry{
		{ID: "old-1", Title: "Old title", URI: "file:///a.mp3", LastPlayedAt: 500, IsFavorite: true},
		{ID: "old-2", Title: "Untouched", URI: "file:///b.mp3", LastPlayedAt: 700},
	}
	scanned := []models.MediaEntry{
		{ID: "new-1", Title: "New title", URI: "file:///a.mp3", SizeBytes: 10},
		{ID: "new-3", Title: "Brand new", URI: "file:///c.mp3"},
	}

	t.Run("carries history and favorites", func(t *testing.T) {
		merged := Merge(existing, scanned, MergePolicy{PreserveFavorites: true})
		assert.Len(t, merged, 2)

		assert.Equal(t, "old-1", merged[0].ID)
		assert.Equal(t, "New title", merged[0].Title)
		assert.EqualValues(t, 10, merged[0].SizeBytes)
		assert.EqualValues(t, 500, merged[0].LastPlayedAt)
		assert.True(t, merged[0].IsFavorite)

		assert.Equal(t, "new-3", merged[1].ID)
		assert.Zero(t, merged[1].LastPlayedAt)
	})

	t.Run("favorites reset when not preserved", func(t *testing.T) {
		merged := Merge(existing, scanned, MergePolicy{})
		assert.EqualValues(t, 500, merged[0].LastPlayedAt)
		assert.False(t, merged[0].IsFavorite)
	})

	t.Run("moved file has no history", func(t *testing.T) {
		moved := []models.MediaEntry{{ID: "new-1", URI: "file:///elsewhere/a.mp3"}}
		merged := Merge(existing, moved, MergePolicy{PreserveFavorites: true})
		assert.Equal(t, "new-1", merged[0].ID)
		assert.Zero(t, merged[0].LastPlayedAt)
		assert.False(t, merged[0].IsFavorite)
	})

	t.Run("empty scan", func(t *testing.T) {
		assert.Empty(t, Merge(existing, nil, MergePolicy{}))
	})

	t.Run("duplicate uris keep the latest history", func(t *testing.T) {
		dupes := []models.MediaEntry{
			{ID: "x", URI: "file:///d.mp3", LastPlayedAt: 10},
			{ID: "y", URI: "file:///d.mp3", LastPlayedAt: 90},
		}
		merged := Merge(dupes, []models.MediaEntry{{ID: "z", URI: "file:///d.mp3"}}, MergePolicy{})
		assert.Equal(t, "y", merged[0].ID)
		assert.EqualValues(t, 90, merged[0].LastPlayedAt)
	})
}

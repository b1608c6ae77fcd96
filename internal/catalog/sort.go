package catalog

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"mediaplus/pkg/models"
)

// SortOption selects a list ordering for browsing.
type SortOption string

const (
	SortDateAdded  SortOption = "date_added"
	SortTitle      SortOption = "title"
	SortSize       SortOption = "size"
	SortLastPlayed SortOption = "last_played"
)

var sortLabels = map[string]SortOption{
	"date created":        SortDateAdded,
	"a-z":                 SortTitle,
	"size (big to small)": SortSize,
	"most played":         SortLastPlayed,
}

// ParseSortOption accepts option keys as well as the display labels
// "Date Created", "A-Z", "Size (Big to Small)" and "Most Played".
func ParseSortOption(s string) (SortOption, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch opt := SortOption(key); opt {
	case SortDateAdded, SortTitle, SortSize, SortLastPlayed:
		return opt, true
	}
	opt, ok := sortLabels[key]
	return opt, ok
}

// SortEntries returns a sorted copy of entries. Ties keep their input order
// and an unknown option returns the copy unchanged.
func SortEntries(entries []models.MediaEntry, option SortOption) []models.MediaEntry {
	sorted := slices.Clone(entries)

	switch option {
	case SortDateAdded:
		slices.SortStableFunc(sorted, func(a, b models.MediaEntry) int {
			return cmp.Compare(b.DateAdded, a.DateAdded)
		})
	case SortTitle:
		fold := cases.Fold()
		keys := make(map[string]string, len(sorted))
		for _, e := range sorted {
			keys[e.ID] = fold.String(e.Title)
		}
		slices.SortStableFunc(sorted, func(a, b models.MediaEntry) int {
			return strings.Compare(keys[a.ID], keys[b.ID])
		})
	case SortSize:
		slices.SortStableFunc(sorted, func(a, b models.MediaEntry) int {
			return cmp.Compare(b.SizeBytes, a.SizeBytes)
		})
	case SortLastPlayed:
		slices.SortStableFunc(sorted, func(a, b models.MediaEntry) int {
			return cmp.Compare(b.LastPlayedAt, a.LastPlayedAt)
		})
	}
	return sorted
}

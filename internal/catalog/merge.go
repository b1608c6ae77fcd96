package catalog

import "mediaplus/pkg/models"

// MergePolicy controls which user state survives a rescan.
type MergePolicy struct {
	// PreserveFavorites carries the favorite flag of an existing entry into
	// its rescanned replacement. Play history is always carried.
	PreserveFavorites bool
}

// Merge reconciles freshly scanned entries with the existing catalog. Entries
// are joined on uri: a scanned entry whose uri is already catalogued takes the
// existing id and last played time (and favorite flag when the policy says
// so); every other field comes from the scan. Existing entries absent from
// scanned are not part of the result and are therefore never deleted.
func Merge(existing, scanned []models.MediaEntry, policy MergePolicy) []models.MediaEntry {
	byURI := make(map[string]models.MediaEntry, len(existing))
	for _, e := range existing {
		if prev, ok := byURI[e.URI]; ok && prev.LastPlayedAt >= e.LastPlayedAt {
			continue
		}
		byURI[e.URI] = e
	}

	merged := make([]models.MediaEntry, 0, len(scanned))
	for _, s := range scanned {
		if old, ok := byURI[s.URI]; ok {
			s.ID = old.ID
			s.LastPlayedAt = old.LastPlayedAt
			if policy.PreserveFavorites {
				s.IsFavorite = old.IsFavorite
			}
		}
		merged = append(merged, s)
	}
	return merged
}

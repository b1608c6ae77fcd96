package models

import (
	"fmt"
	"strings"
)

// MediaType classifies a catalog entry.
type MediaType string

const (
	MediaTypeAudio MediaType = "AUDIO"
	MediaTypeVideo MediaType = "VIDEO"
	MediaTypeImage MediaType = "IMAGE"
)

// ParseMediaType accepts the canonical upper-case names as well as their
// lower-case forms ("audio", "video", "image").
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToUpper(strings.TrimSpace(s))) {
	case MediaTypeAudio:
		return MediaTypeAudio, nil
	case MediaTypeVideo:
		return MediaTypeVideo, nil
	case MediaTypeImage:
		return MediaTypeImage, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// MediaEntry represents one physical media file known to the catalog.
// Optional text fields use the empty string for "absent".
type MediaEntry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist,omitempty"`
	Album         string    `json:"album,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	Path          string    `json:"path,omitempty"`
	URI           string    `json:"uri"`
	MediaType     MediaType `json:"mediaType"`
	MimeType      string    `json:"mimeType,omitempty"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	DateAdded     int64     `json:"dateAdded"` // epoch millis
	SizeBytes     int64     `json:"sizeBytes"`
	IsFavorite    bool      `json:"isFavorite"`
	LastPlayedAt  int64     `json:"lastPlayedAt"` // epoch millis, 0 = never
}

// Playlist represents a user-created ordered collection.
type Playlist struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	MemberCount   int    `json:"memberCount"`
}

// PlaylistMembership ties a media entry to a playlist at a position.
type PlaylistMembership struct {
	PlaylistID  int64  `json:"playlistId"`
	MediaItemID string `json:"mediaItemId"`
	Position    int    `json:"position"`
}

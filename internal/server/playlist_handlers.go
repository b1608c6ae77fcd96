package server

import (
	"net/http"

	"mediaplus/pkg/models"
)

type playlistRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ThumbnailPath string `json:"thumbnailPath"`
}

// handleGetPlaylists returns all playlists (with member counts) as JSON.
func (ms *MediaServer) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := ms.Playlists.GetAll(r.Context())
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlists", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, nonNil(playlists))
}

// handleCreatePlaylist creates a new playlist (POST json name/description).
func (ms *MediaServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	if verr := validatePlaylistDescription(req.Description); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	id, err := ms.Playlists.Create(r.Context(), req.Name, sanitizeInput(req.Description))
	if err != nil {
		ms.respondWithFailure(w, r, "Error creating playlist", err)
		return
	}

	playlist, err := ms.Playlists.GetByID(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlist", err)
		return
	}
	ms.respondJSON(w, http.StatusCreated, playlist)
}

func (ms *MediaServer) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	playlist, err := ms.Playlists.GetByID(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlist", err)
		return
	}
	if playlist == nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	ms.respondJSON(w, http.StatusOK, playlist)
}

// handleUpdatePlaylist replaces name, description and thumbnail.
func (ms *MediaServer) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	var req playlistRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	if verr := validatePlaylistDescription(req.Description); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	updated, err := ms.Playlists.Update(r.Context(), id, req.Name, sanitizeInput(req.Description), req.ThumbnailPath)
	if err != nil {
		ms.respondWithFailure(w, r, "Error updating playlist", err)
		return
	}
	if !updated {
		ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}

	playlist, err := ms.Playlists.GetByID(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlist", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, playlist)
}

func (ms *MediaServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	deleted, err := ms.Playlists.Delete(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error deleting playlist", err)
		return
	}
	if !deleted {
		ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetPlaylistItems returns the member entries in position order.
func (ms *MediaServer) handleGetPlaylistItems(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	entries, err := ms.Playlists.MembersOrdered(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlist items", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, nonNil(entries))
}

// handleAddPlaylistItem appends an entry (POST json mediaId).
func (ms *MediaServer) handleAddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	var req struct {
		MediaID string `json:"mediaId"`
	}
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	mediaID := sanitizeInput(req.MediaID)
	if mediaID == "" {
		ms.respondWithValidationError(w, r, models.ValidationError{Field: "mediaId", Message: "is required"})
		return
	}

	if err := ms.Playlists.AddMediaItem(r.Context(), id, mediaID); err != nil {
		ms.respondWithFailure(w, r, "Error adding item to playlist", err)
		return
	}
	ms.respondWithMemberships(w, r, id, http.StatusCreated)
}

func (ms *MediaServer) handleRemovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	mediaID, verr := validateMediaID(r, "mediaId")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	if err := ms.Playlists.RemoveMediaItem(r.Context(), id, mediaID); err != nil {
		ms.respondWithFailure(w, r, "Error removing item from playlist", err)
		return
	}
	ms.respondWithMemberships(w, r, id, http.StatusOK)
}

// handleMovePlaylistItem moves an entry to a new position (PUT json position).
func (ms *MediaServer) handleMovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	mediaID, verr := validateMediaID(r, "mediaId")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	var req struct {
		Position *int `json:"position"`
	}
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}
	if req.Position == nil {
		ms.respondWithValidationError(w, r, models.ValidationError{Field: "position", Message: "is required"})
		return
	}

	if err := ms.Playlists.MoveMediaItem(r.Context(), id, mediaID, *req.Position); err != nil {
		ms.respondWithFailure(w, r, "Error moving playlist item", err)
		return
	}
	ms.respondWithMemberships(w, r, id, http.StatusOK)
}

func (ms *MediaServer) handleClearPlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validatePlaylistID(r)
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	if err := ms.Playlists.Clear(r.Context(), id); err != nil {
		ms.respondWithFailure(w, r, "Error clearing playlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondWithMemberships answers with the playlist's current ordering.
func (ms *MediaServer) respondWithMemberships(w http.ResponseWriter, r *http.Request, playlistID int64, statusCode int) {
	memberships, err := ms.Playlists.Memberships(r.Context(), playlistID)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving playlist items", err)
		return
	}
	ms.respondJSON(w, statusCode, nonNil(memberships))
}

package server

import (
	"net/http"

	"mediaplus/internal/catalog"
	"mediaplus/pkg/models"
)

// handleGetMedia returns entries optionally filtered by type and sorted.
func (ms *MediaServer) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		entries []models.MediaEntry
		err     error
	)
	if typeParam := query.Get("type"); typeParam != "" {
		mediaType, parseErr := models.ParseMediaType(typeParam)
		if parseErr != nil {
			ms.respondWithValidationError(w, r, models.ValidationError{Field: "type", Message: parseErr.Error()})
			return
		}
		entries, err = ms.Catalog.GetByType(r.Context(), mediaType)
	} else {
		entries, err = ms.Catalog.GetAll(r.Context())
	}
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving media", err)
		return
	}

	if sortParam := query.Get("sort"); sortParam != "" {
		option, ok := catalog.ParseSortOption(sortParam)
		if !ok {
			ms.respondWithValidationError(w, r, models.ValidationError{Field: "sort", Message: "unknown sort option " + sortParam})
			return
		}
		entries = catalog.SortEntries(entries, option)
	}

	ms.respondJSON(w, http.StatusOK, nonNil(entries))
}

// handleGetFavorites returns favourite entries.
func (ms *MediaServer) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	entries, err := ms.Catalog.GetFavorites(r.Context())
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving favorites", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, nonNil(entries))
}

// handleGetRecent returns recently played entries, newest first.
func (ms *MediaServer) handleGetRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := ms.Catalog.GetRecentlyPlayed(r.Context())
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving recently played", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, nonNil(entries))
}

// handleSearchMedia matches q against titles and artists.
func (ms *MediaServer) handleSearchMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if verr := validateSearchQuery(q); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	entries, err := ms.Catalog.Search(r.Context(), q)
	if err != nil {
		ms.respondWithFailure(w, r, "Error searching media", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, nonNil(entries))
}

func (ms *MediaServer) handleGetMediaEntry(w http.ResponseWriter, r *http.Request) {
	id, verr := validateMediaID(r, "id")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	entry, err := ms.Catalog.GetByID(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error retrieving media entry", err)
		return
	}
	if entry == nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Media entry not found", nil)
		return
	}
	ms.respondJSON(w, http.StatusOK, entry)
}

func (ms *MediaServer) handleDeleteMediaEntry(w http.ResponseWriter, r *http.Request) {
	id, verr := validateMediaID(r, "id")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	deleted, err := ms.Catalog.DeleteByID(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error deleting media entry", err)
		return
	}
	if !deleted {
		ms.respondWithError(w, r, http.StatusNotFound, "Media entry not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleFavorite flips the favourite flag and returns the entry.
func (ms *MediaServer) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, verr := validateMediaID(r, "id")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	entry, err := ms.Catalog.ToggleFavorite(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error updating favorite", err)
		return
	}
	if entry == nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Media entry not found", nil)
		return
	}
	ms.respondJSON(w, http.StatusOK, entry)
}

// handleRemoveFromRecents is best effort and always succeeds.
func (ms *MediaServer) handleRemoveFromRecents(w http.ResponseWriter, r *http.Request) {
	id, verr := validateMediaID(r, "id")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	ms.Catalog.RemoveFromRecents(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// handleImportMedia adds one file by path or file:// URI.
func (ms *MediaServer) handleImportMedia(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locator string `json:"locator"`
		Type    string `json:"type"`
	}
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	var mediaType models.MediaType
	if req.Type != "" {
		t, err := models.ParseMediaType(req.Type)
		if err != nil {
			ms.respondWithValidationError(w, r, models.ValidationError{Field: "type", Message: err.Error()})
			return
		}
		mediaType = t
	}

	entry, err := ms.Library.Import(r.Context(), sanitizeInput(req.Locator), mediaType)
	if err != nil {
		ms.respondWithFailure(w, r, "Error importing media", err)
		return
	}
	ms.respondJSON(w, http.StatusCreated, entry)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

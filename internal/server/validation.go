package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"mediaplus/internal/database"
	"mediaplus/internal/player"
	"mediaplus/pkg/models"
)

const (
	maxSearchQueryLength = 1000
	maxDescriptionLength = 1000
	maxRequestBodyBytes  = 1 << 20
)

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []models.ValidationError `json:"errors,omitempty"`
}

// respondJSON writes v as a JSON body with the given status.
func (ms *MediaServer) respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Warn("Failed to encode response")
	}
}

// respondWithValidationError sends a structured validation error response
func (ms *MediaServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errs ...models.ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errs,
	}).Warn("Validation failed")

	ms.respondJSON(w, http.StatusBadRequest, ValidationResult{
		Valid:  false,
		Errors: errs,
	})
}

// respondWithError sends a structured error response
func (ms *MediaServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	ms.respondJSON(w, statusCode, map[string]any{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// respondWithFailure maps an error from the catalog layers to a response.
func (ms *MediaServer) respondWithFailure(w http.ResponseWriter, r *http.Request, message string, err error) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ms.respondWithValidationError(w, r, *validationErr)
	case errors.Is(err, player.ErrUnknownMedia):
		ms.respondWithError(w, r, http.StatusNotFound, "Media entry not found", err)
	case database.IsConstraint(err):
		ms.respondWithError(w, r, http.StatusNotFound, "Referenced playlist or media entry not found", err)
	case errors.Is(err, context.Canceled):
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Request cancelled", err)
	default:
		ms.respondWithError(w, r, http.StatusInternalServerError, message, err)
	}
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *models.ValidationError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// validatePlaylistID parses the {id} route variable.
func validatePlaylistID(r *http.Request) (int64, *models.ValidationError) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		return 0, &models.ValidationError{Field: "playlist_id", Message: "is required"}
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: "playlist_id", Message: "must be a valid integer"}
	}
	if id <= 0 {
		return 0, &models.ValidationError{Field: "playlist_id", Message: "must be positive"}
	}

	return id, nil
}

// validateMediaID reads a media id route variable.
func validateMediaID(r *http.Request, key string) (string, *models.ValidationError) {
	id := sanitizeInput(mux.Vars(r)[key])
	if id == "" {
		return "", &models.ValidationError{Field: "media_id", Message: "is required"}
	}
	return id, nil
}

// validateSearchQuery validates search query parameters
func validateSearchQuery(query string) *models.ValidationError {
	if len(query) > maxSearchQueryLength {
		return &models.ValidationError{Field: "q", Message: "too long (max 1000 characters)"}
	}
	if strings.Contains(query, "\x00") {
		return &models.ValidationError{Field: "q", Message: "contains invalid characters"}
	}
	return nil
}

// validatePlaylistDescription validates playlist description
func validatePlaylistDescription(description string) *models.ValidationError {
	if len(description) > maxDescriptionLength {
		return &models.ValidationError{Field: "description", Message: "too long (max 1000 characters)"}
	}
	return nil
}

// sanitizeInput removes null bytes and surrounding whitespace.
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

package server

import (
	"net/http"
)

// handleGetPlayerState returns the current player state
func (ms *MediaServer) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, http.StatusOK, ms.Player.GetState())
}

// handlePlay starts playback of an entry and records it as played.
func (ms *MediaServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, verr := validateMediaID(r, "id")
	if verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	state, err := ms.Player.Begin(r.Context(), id)
	if err != nil {
		ms.respondWithFailure(w, r, "Error starting playback", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, state)
}

// handleUpdatePlayerState updates the player state from client
func (ms *MediaServer) handleUpdatePlayerState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stop       bool     `json:"stop,omitempty"`
		IsPlaying  *bool    `json:"isPlaying,omitempty"`
		PositionMs *int64   `json:"positionMs,omitempty"`
		DurationMs *int64   `json:"durationMs,omitempty"`
		Volume     *float64 `json:"volume,omitempty"`
		IsMuted    *bool    `json:"isMuted,omitempty"`
		IsShuffled *bool    `json:"isShuffled,omitempty"`
		RepeatMode *int     `json:"repeatMode,omitempty"`
	}
	if verr := decodeJSON(w, r, &req); verr != nil {
		ms.respondWithValidationError(w, r, *verr)
		return
	}

	if req.Stop {
		ms.Player.Stop()
		ms.respondJSON(w, http.StatusOK, ms.Player.GetState())
		return
	}

	if req.IsPlaying != nil {
		ms.Player.UpdatePlaybackState(*req.IsPlaying)
	}

	if req.PositionMs != nil || req.DurationMs != nil {
		current := ms.Player.GetState()
		position, duration := current.PositionMs, current.DurationMs
		if req.PositionMs != nil {
			position = *req.PositionMs
		}
		if req.DurationMs != nil {
			duration = *req.DurationMs
		}
		ms.Player.UpdatePosition(position, duration)
	}

	if req.Volume != nil || req.IsMuted != nil {
		current := ms.Player.GetState()
		volume, isMuted := current.Volume, current.IsMuted
		if req.Volume != nil {
			volume = *req.Volume
		}
		if req.IsMuted != nil {
			isMuted = *req.IsMuted
		}
		ms.Player.UpdateVolume(volume, isMuted)
	}

	if req.IsShuffled != nil || req.RepeatMode != nil {
		current := ms.Player.GetState()
		isShuffled, repeatMode := current.IsShuffled, current.RepeatMode
		if req.IsShuffled != nil {
			isShuffled = *req.IsShuffled
		}
		if req.RepeatMode != nil {
			repeatMode = *req.RepeatMode
		}
		ms.Player.UpdateSettings(isShuffled, repeatMode)
	}

	ms.respondJSON(w, http.StatusOK, ms.Player.GetState())
}

package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mediaplus/pkg/models"
)

// ErrUnknownMedia is returned when playback is requested for an id the
// catalog does not know.
var ErrUnknownMedia = errors.New("media entry not found")

// Catalog is the part of the media catalog playback needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*models.MediaEntry, error)
	MarkPlayed(ctx context.Context, id string) error
}

// State represents the current player state
type State struct {
	Track      *models.MediaEntry `json:"track,omitempty"`
	IsPlaying  bool               `json:"isPlaying"`
	PositionMs int64              `json:"positionMs"`
	DurationMs int64              `json:"durationMs"`
	Volume     float64            `json:"volume"` // 0.0 to 1.0
	IsMuted    bool               `json:"isMuted"`
	IsShuffled bool               `json:"isShuffled"`
	RepeatMode int                `json:"repeatMode"` // 0 = off, 1 = playlist, 2 = track
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// StateManager manages the player state and notifies listeners
type StateManager struct {
	catalog   Catalog
	logger    *logrus.Logger
	state     *State
	mutex     sync.RWMutex
	listeners []chan *State
}

// NewStateManager creates a new player state manager
func NewStateManager(catalog Catalog, logger *logrus.Logger) *StateManager {
	return &StateManager{
		catalog: catalog,
		logger:  logger,
		state: &State{
			Volume:    1.0,
			UpdatedAt: time.Now(),
		},
		listeners: make([]chan *State, 0),
	}
}

// GetState returns the current player state (thread-safe)
func (sm *StateManager) GetState() *State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	stateCopy := *sm.state
	return &stateCopy
}

// Begin starts playback of the catalog entry id and records it as played.
func (sm *StateManager) Begin(ctx context.Context, id string) (*State, error) {
	if err := sm.catalog.MarkPlayed(ctx, id); err != nil {
		return nil, err
	}
	entry, err := sm.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrUnknownMedia
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Track = entry
	sm.state.IsPlaying = true
	sm.state.PositionMs = 0
	sm.state.DurationMs = entry.DurationMs
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()

	sm.logger.WithFields(logrus.Fields{
		"media_id": id,
		"title":    entry.Title,
	}).Info("Playback started")

	stateCopy := *sm.state
	return &stateCopy, nil
}

// UpdatePlaybackState updates playback state (playing/paused)
func (sm *StateManager) UpdatePlaybackState(isPlaying bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.IsPlaying = isPlaying
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdatePosition records the reported playback position and duration.
func (sm *StateManager) UpdatePosition(positionMs, durationMs int64) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.PositionMs = positionMs
	if durationMs > 0 {
		sm.state.DurationMs = durationMs
	}
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdateVolume updates volume and mute state
func (sm *StateManager) UpdateVolume(volume float64, isMuted bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Volume = min(max(volume, 0), 1)
	sm.state.IsMuted = isMuted
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdateSettings updates player settings (shuffle, repeat)
func (sm *StateManager) UpdateSettings(isShuffled bool, repeatMode int) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.IsShuffled = isShuffled
	sm.state.RepeatMode = repeatMode
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// Stop clears the current track
func (sm *StateManager) Stop() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Track = nil
	sm.state.IsPlaying = false
	sm.state.PositionMs = 0
	sm.state.DurationMs = 0
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// Subscribe adds a listener for state changes
func (sm *StateManager) Subscribe() <-chan *State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan *State, 10)
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener (call this when done to prevent memory leaks)
func (sm *StateManager) Unsubscribe(ch <-chan *State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners sends state updates to all subscribers and drops any that
// have fallen too far behind (must be called with lock held)
func (sm *StateManager) notifyListeners() {
	stateCopy := *sm.state
	kept := sm.listeners[:0]
	for _, listener := range sm.listeners {
		select {
		case listener <- &stateCopy:
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	sm.listeners = kept
}

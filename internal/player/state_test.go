package player

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaplus/pkg/models"
)

type fakeCatalog struct {
	entries map[string]models.MediaEntry
	played  []string
	err     error
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*models.MediaEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeCatalog) MarkPlayed(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, id)
	return nil
}

func newManager() (*StateManager, *fakeCatalog) {
	catalog := &fakeCatalog{entries: map[string]models.MediaEntry{
		"song": {ID: "song", Title: "Song", DurationMs: 180000},
	}}
	logger, _ := logtest.NewNullLogger()
	return NewStateManager(catalog, logger), catalog
}

func TestBegin(t *testing.T) {
	sm, catalog := newManager()
	ch := sm.Subscribe()
	defer sm.Unsubscribe(ch)

	state, err := sm.Begin(context.Background(), "song")
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.EqualValues(t, 180000, state.DurationMs)
	assert.Equal(t, []string{"song"}, catalog.played)

	update := <-ch
	require.NotNil(t, update.Track)
	assert.Equal(t, "Song", update.Track.Title)
}

func TestBeginFailures(t *testing.T) {
	sm, catalog := newManager()

	_, err := sm.Begin(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownMedia)

	catalog.err = errors.New("disk I/O error")
	_, err = sm.Begin(context.Background(), "song")
	assert.Error(t, err)
	assert.Nil(t, sm.GetState().Track)
}

func TestStateUpdates(t *testing.T) {
	sm, _ := newManager()
	_, err := sm.Begin(context.Background(), "song")
	require.NoError(t, err)

	sm.UpdatePosition(5000, 0)
	sm.UpdatePlaybackState(false)
	sm.UpdateVolume(1.5, true)
	sm.UpdateSettings(true, 2)

	state := sm.GetState()
	assert.EqualValues(t, 5000, state.PositionMs)
	assert.EqualValues(t, 180000, state.DurationMs)
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 1.0, state.Volume)
	assert.True(t, state.IsMuted)
	assert.Equal(t, 2, state.RepeatMode)

	sm.Stop()
	state = sm.GetState()
	assert.Nil(t, state.Track)
	assert.Zero(t, state.PositionMs)
}

func TestSlowListenersAreDropped(t *testing.T) {
	sm, _ := newManager()
	slow := sm.Subscribe()
	fast := sm.Subscribe()

	for i := 0; i < 10; i++ {
		sm.UpdatePosition(int64(i), 0)
		<-fast
	}
	// The eleventh update overflows the slow listener's buffer.
	sm.UpdatePosition(99, 0)
	<-fast

	count := 0
	for range slow {
		count++
	}
	assert.Equal(t, 10, count)

	sm.UpdatePosition(100, 0)
	assert.EqualValues(t, 100, (<-fast).PositionMs)
	sm.Unsubscribe(fast)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) (configPath, root string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(root, 0755))

	t.Setenv("MEDIAPLUS_DB_PATH", filepath.Join(dir, "catalog.db"))
	t.Setenv("MEDIAPLUS_LIBRARY_ROOTS", root)
	t.Setenv("MEDIAPLUS_LOG_LEVEL", "error")
	return filepath.Join(dir, "config.toml"), root
}

func writeWAV(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           make([]int, 800),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func firstColumn(output string) []string {
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		ids = append(ids, strings.Split(line, "\t")[0])
	}
	return ids
}

func TestScanSearchAndPlaylistCommands(t *testing.T) {
	configPath, root := setupEnv(t)
	writeWAV(t, filepath.Join(root, "morning.wav"))
	writeWAV(t, filepath.Join(root, "evening.wav"))

	out, err := run(t, configPath, "scan", "--type", "audio")
	require.NoError(t, err)
	assert.Contains(t, out, "AUDIO: 2 scanned")
	assert.Contains(t, out, "2 entries stored")

	out, err = run(t, configPath, "search", "morning")
	require.NoError(t, err)
	ids := firstColumn(out)
	require.Len(t, ids, 1)
	morning := ids[0]

	out, err = run(t, configPath, "favorite", morning)
	require.NoError(t, err)
	assert.Equal(t, morning+" favorite=true\n", out)

	out, err = run(t, configPath, "playlist", "create", "Daily", "-d", "both ends")
	require.NoError(t, err)
	playlistID := strings.TrimSpace(out)

	_, err = run(t, configPath, "playlist", "add", playlistID, morning)
	require.NoError(t, err)

	out, err = run(t, configPath, "playlist", "show", playlistID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Daily (1 items)\n"))
	assert.Contains(t, out, morning)

	out, err = run(t, configPath, "playlist", "list")
	require.NoError(t, err)
	assert.Equal(t, playlistID+"\tDaily\t1 items\n", out)

	_, err = run(t, configPath, "playlist", "move", playlistID, morning, "-1")
	assert.Error(t, err)

	_, err = run(t, configPath, "playlist", "clear", playlistID)
	require.NoError(t, err)
	_, err = run(t, configPath, "playlist", "delete", playlistID)
	require.NoError(t, err)
	_, err = run(t, configPath, "playlist", "delete", playlistID)
	assert.ErrorContains(t, err, "not found")
}

func TestImportAndPruneCommands(t *testing.T) {
	configPath, root := setupEnv(t)
	path := filepath.Join(root, "single.wav")
	writeWAV(t, path)

	out, err := run(t, configPath, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "single"`)
	assert.Contains(t, out, `"mediaType": "AUDIO"`)

	_, err = run(t, configPath, "import", "https://example.com/a.mp3")
	assert.ErrorContains(t, err, "unsupported scheme")

	out, err = run(t, configPath, "prune")
	require.NoError(t, err)
	assert.Equal(t, "removed 0 entries\n", out)

	out, err = run(t, configPath, "recent")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvalidArguments(t *testing.T) {
	configPath, _ := setupEnv(t)

	_, err := run(t, configPath, "scan", "--type", "podcast")
	assert.Error(t, err)

	_, err = run(t, configPath, "playlist", "show", "abc")
	assert.ErrorContains(t, err, "invalid playlist id")

	_, err = run(t, configPath, "favorite", "missing")
	assert.ErrorContains(t, err, "not found")
}

package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaplus/internal/config"
	"mediaplus/pkg/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newTestExtractor(t *testing.T) (*Extractor, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, _ := logtest.NewNullLogger()
	cfg := config.DefaultConfig().Library
	cfg.ArtworkDir = "/artwork"
	return NewExtractor(fs, logger, cfg), fs
}

func writeWAV(t *testing.T, fs afero.Fs, path string, sampleRate, seconds int) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, sampleRate*seconds),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func id3Frame(id string, body []byte) []byte {
	frame := make([]byte, 10, 10+len(body))
	copy(frame, id)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(body)))
	return append(frame, body...)
}

// id3Tag builds a minimal ID3v2.3 tag with title, artist and a PNG picture.
func id3Tag(title, artist string, picture []byte) []byte {
	var frames []byte
	frames = append(frames, id3Frame("TIT2", append([]byte{0}, title...))...)
	frames = append(frames, id3Frame("TPE1", append([]byte{0}, artist...))...)

	apic := []byte{0}
	apic = append(apic, "image/png"...)
	apic = append(apic, 0, 3, 0)
	apic = append(apic, picture...)
	frames = append(frames, id3Frame("APIC", apic)...)

	n := len(frames)
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}
	return append(header, frames...)
}

func mp4File(timescale, duration uint32) []byte {
	var b bytes.Buffer
	ftyp := []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0}
	b.Write(ftyp)

	mvhd := make([]byte, 28)
	binary.BigEndian.PutUint32(mvhd[0:4], 28)
	copy(mvhd[4:8], "mvhd")
	// version 0, flags, creation, modification
	binary.BigEndian.PutUint32(mvhd[20:24], timescale)
	binary.BigEndian.PutUint32(mvhd[24:28], duration)

	moov := make([]byte, 8)
	binary.BigEndian.PutUint32(moov[0:4], uint32(8+len(mvhd)))
	copy(moov[4:8], "moov")
	b.Write(moov)
	b.Write(mvhd)
	return b.Bytes()
}

func TestClassify(t *testing.T) {
	e, _ := newTestExtractor(t)

	tests := map[string]models.MediaType{
		"/m/song.MP3":  models.MediaTypeAudio,
		"/m/clip.mkv":  models.MediaTypeVideo,
		"/m/photo.jpg": models.MediaTypeImage,
	}
	for path, want := range tests {
		got, ok := e.Classify(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := e.Classify("/m/notes.txt")
	assert.False(t, ok)
}

func TestExtractWAV(t *testing.T) {
	e, fs := newTestExtractor(t)
	writeWAV(t, fs, "/music/tone.wav", 8000, 2)

	info, err := e.Extract(context.Background(), "/music/tone.wav", models.MediaTypeAudio)
	require.NoError(t, err)

	assert.Equal(t, "tone", info.Title)
	assert.InDelta(t, 2000, info.DurationMs, 50)
	assert.EqualValues(t, 44+8000*2*2, info.SizeBytes)
	assert.Contains(t, info.MimeType, "wav")
}

func TestExtractTagsAndArtwork(t *testing.T) {
	e, fs := newTestExtractor(t)

	picture := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 32)...)
	data := append(id3Tag("Moonlight Sonata", "Beethoven", picture), make([]byte, 24000)...)
	require.NoError(t, afero.WriteFile(fs, "/music/sonata.mp3", data, 0644))

	info, err := e.Extract(context.Background(), "/music/sonata.mp3", models.MediaTypeAudio)
	require.NoError(t, err)

	assert.Equal(t, "Moonlight Sonata", info.Title)
	assert.Equal(t, "Beethoven", info.Artist)
	assert.Empty(t, info.Album)
	assert.Equal(t, "audio/mpeg", info.MimeType)
	assert.Positive(t, info.DurationMs)

	require.NotEmpty(t, info.ArtworkPath)
	assert.Equal(t, "/artwork", filepath.Dir(info.ArtworkPath))
	assert.Equal(t, ".png", filepath.Ext(info.ArtworkPath))
	stored, err := afero.ReadFile(fs, info.ArtworkPath)
	require.NoError(t, err)
	assert.Equal(t, picture, stored)

	// Same artwork is stored once.
	again, err := e.Extract(context.Background(), "/music/sonata.mp3", models.MediaTypeAudio)
	require.NoError(t, err)
	assert.Equal(t, info.ArtworkPath, again.ArtworkPath)
}

func TestExtractVideoAndImage(t *testing.T) {
	e, fs := newTestExtractor(t)
	require.NoError(t, afero.WriteFile(fs, "/video/clip.mp4", mp4File(600, 1800), 0644))
	require.NoError(t, afero.WriteFile(fs, "/pics/a.png", pngHeader, 0644))

	video, err := e.Extract(context.Background(), "/video/clip.mp4", models.MediaTypeVideo)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, video.DurationMs)
	assert.Empty(t, video.ArtworkPath)

	image, err := e.Extract(context.Background(), "/pics/a.png", models.MediaTypeImage)
	require.NoError(t, err)
	assert.Zero(t, image.DurationMs)
	assert.Equal(t, "image/png", image.MimeType)
}

func TestExtractErrors(t *testing.T) {
	e, _ := newTestExtractor(t)

	_, err := e.Extract(context.Background(), "/missing.mp3", models.MediaTypeAudio)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Extract(ctx, "/missing.mp3", models.MediaTypeAudio)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDuration(t *testing.T) {
	t.Run("mp3 estimate without frames", func(t *testing.T) {
		data := make([]byte, 24000)
		ms, err := Duration(bytes.NewReader(data), ".mp3", int64(len(data)))
		require.NoError(t, err)
		assert.EqualValues(t, 1000, ms)
	})

	t.Run("mp4 mvhd", func(t *testing.T) {
		ms, err := Duration(bytes.NewReader(mp4File(1000, 2500)), ".m4a", 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2500, ms)
	})

	t.Run("mp4 without moov", func(t *testing.T) {
		_, err := Duration(bytes.NewReader([]byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}), ".mov", 0)
		assert.Error(t, err)
	})

	t.Run("unsupported", func(t *testing.T) {
		ms, err := Duration(bytes.NewReader(nil), ".mkv", 100)
		assert.Error(t, err)
		assert.Zero(t, ms)
	})
}

func TestMimeTypeByExtension(t *testing.T) {
	assert.Equal(t, "video/x-matroska", MimeTypeByExtension("a.MKV"))
	assert.Equal(t, "application/octet-stream", MimeTypeByExtension("a.xyz"))
}

func TestArtworkFS(t *testing.T) {
	e, fs := newTestExtractor(t)
	require.NoError(t, afero.WriteFile(fs, "/artwork/abc.png", pngHeader, 0644))

	f, err := e.ArtworkFS().Open("/abc.png")
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, len(pngHeader), st.Size())
}

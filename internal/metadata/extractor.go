package metadata

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tcolgate/mp3"

	"mediaplus/internal/config"
	"mediaplus/pkg/models"
)

// fallbackBitrate is assumed when an MP3 has no decodable frames.
const fallbackBitrate = 192000

// Info is what the extractor learns about one media file.
type Info struct {
	Title       string
	Artist      string
	Album       string
	DurationMs  int64
	SizeBytes   int64
	MimeType    string
	ModTime     time.Time
	ArtworkPath string
}

// Extractor reads tags, durations and artwork from media files on an
// afero filesystem.
type Extractor struct {
	fs         afero.Fs
	logger     *logrus.Logger
	formats    map[string]models.MediaType
	artworkDir string
}

// NewExtractor creates an extractor recognising the formats listed in the
// library configuration.
func NewExtractor(fs afero.Fs, logger *logrus.Logger, cfg config.LibraryConfig) *Extractor {
	formats := make(map[string]models.MediaType)
	for _, f := range cfg.ImageFormats {
		formats[strings.ToLower(f)] = models.MediaTypeImage
	}
	for _, f := range cfg.VideoFormats {
		formats[strings.ToLower(f)] = models.MediaTypeVideo
	}
	for _, f := range cfg.AudioFormats {
		formats[strings.ToLower(f)] = models.MediaTypeAudio
	}

	return &Extractor{
		fs:         fs,
		logger:     logger,
		formats:    formats,
		artworkDir: cfg.ArtworkDir,
	}
}

// Classify returns the media type of path judged by its extension.
func (e *Extractor) Classify(path string) (models.MediaType, bool) {
	t, ok := e.formats[strings.ToLower(filepath.Ext(path))]
	return t, ok
}

// Extract reads metadata for the file at path. Tag and duration failures are
// logged and leave the corresponding fields empty; only failing to open or
// stat the file is an error.
func (e *Extractor) Extract(ctx context.Context, path string, mediaType models.MediaType) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	file, err := e.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat media file: %w", err)
	}

	info := &Info{
		Title:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SizeBytes: stat.Size(),
		ModTime:   stat.ModTime(),
		MimeType:  DetectMimeType(file, path),
	}

	log := e.logger.WithField("filePath", path)

	if mediaType == models.MediaTypeAudio || mediaType == models.MediaTypeVideo {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			ms, err := Duration(file, filepath.Ext(path), stat.Size())
			if err != nil {
				log.WithError(err).Debug("Failed to calculate duration, setting to 0")
			}
			info.DurationMs = ms
		}
	}

	if mediaType == models.MediaTypeAudio {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if md, err := tag.ReadFrom(file); err != nil {
				log.WithError(err).Debug("No readable tags, using filename")
			} else {
				if t := strings.TrimSpace(md.Title()); t != "" {
					info.Title = t
				}
				info.Artist = strings.TrimSpace(md.Artist())
				info.Album = strings.TrimSpace(md.Album())
				info.ArtworkPath = e.saveArtwork(md.Picture(), log)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"title":          info.Title,
		"durationMs":     info.DurationMs,
		"mimeType":       info.MimeType,
		"processingTime": time.Since(startTime),
	}).Debug("Extracted metadata")

	return info, nil
}

// saveArtwork stores embedded artwork under the artwork directory, named by
// content hash, and returns its path.
func (e *Extractor) saveArtwork(picture *tag.Picture, log *logrus.Entry) string {
	if picture == nil || len(picture.Data) == 0 || e.artworkDir == "" {
		return ""
	}

	hash := md5.Sum(picture.Data)
	name := fmt.Sprintf("%x%s", hash, mimetype.Detect(picture.Data).Extension())
	path := filepath.Join(e.artworkDir, name)

	if exists, _ := afero.Exists(e.fs, path); exists {
		return path
	}
	if err := e.fs.MkdirAll(e.artworkDir, 0755); err != nil {
		log.WithError(err).Warn("Failed to create artwork directory")
		return ""
	}
	if err := afero.WriteFile(e.fs, path, picture.Data, 0644); err != nil {
		log.WithError(err).Warn("Failed to write artwork")
		return ""
	}
	return path
}

// ArtworkFS serves the artwork directory over HTTP.
func (e *Extractor) ArtworkFS() http.FileSystem {
	return afero.NewHttpFs(e.fs).Dir(e.artworkDir)
}

// Duration returns the playback length in milliseconds for the formats it
// understands.
func Duration(r io.ReadSeeker, ext string, size int64) (int64, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return durationMP3(r, size)
	case ".flac":
		return durationFLAC(r)
	case ".wav":
		return durationWAV(r, size)
	case ".m4a", ".mp4", ".m4v", ".mov":
		return durationMP4(r)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; falls back to an estimate from size when
// no frame decodes.
func durationMP3(r io.Reader, size int64) (int64, error) {
	dec := mp3.NewDecoder(r)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			break
		}
		total += fr.Duration()
		frames++
	}
	if frames == 0 {
		return estimateFromSize(size, fallbackBitrate)
	}
	return total.Milliseconds(), nil
}

// FLAC duration via the STREAMINFO block
func durationFLAC(r io.Reader) (int64, error) {
	stream, err := flac.New(r)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return int64(si.NSamples) * 1000 / int64(si.SampleRate), nil
	}
	return 0, errors.New("flac stream missing sample info")
}

// WAV duration from the header and the PCM byte count.
func durationWAV(r io.ReadSeeker, size int64) (int64, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, errors.New("invalid wav header")
	}

	const headerSize = 44
	pcmBytes := max(size-headerSize, 0)
	frameSize := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if frameSize <= 0 {
		return 0, errors.New("invalid sample frame size")
	}
	return pcmBytes / frameSize * 1000 / int64(dec.SampleRate), nil
}

func estimateFromSize(size int64, bitrate int64) (int64, error) {
	if bitrate <= 0 {
		return 0, errors.New("invalid bitrate")
	}
	return size * 8 * 1000 / bitrate, nil
}

// DetectMimeType sniffs the content of r, falling back to the extension of
// path when the content is not recognised or only looks like plain text. r is left at an unspecified
// offset.
func DetectMimeType(r io.Reader, path string) string {
	if m, err := mimetype.DetectReader(r); err == nil {
		mime, _, _ := strings.Cut(m.String(), ";")
		if mime != "application/octet-stream" && mime != "text/plain" {
			return mime
		}
	}
	return MimeTypeByExtension(path)
}

var extensionMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MimeTypeByExtension maps a file extension to a MIME type.
func MimeTypeByExtension(path string) string {
	if m, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}

// Package transcode shrinks media files with ffmpeg so they fit a delivery size ceiling.
package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/metrics"
	"github.com/NikitaDmitryuk/libria-media-server/internal/process"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Video extensions ffmpeg is asked to transcode. Anything else is delivered as is.
var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".m4v": {}, ".ts": {},
}

// IsVideoFilePath returns true if the file path has a known video extension.
func IsVideoFilePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := videoExtensions[ext]
	return ok
}

// Profile is the fixed encoder setting applied to every file.
type Profile struct {
	VideoBitrate string
	AudioBitrate string
	Preset       string
}

var DefaultProfile = Profile{
	VideoBitrate: "1000k",
	AudioBitrate: "128k",
	Preset:       "veryfast",
}

type Transcoder struct {
	runner  process.Runner
	ffmpeg  string
	workDir string
	profile Profile
}

var _ domain.Transcoder = (*Transcoder)(nil)

func New(runner process.Runner, ffmpegPath, workDir string, profile Profile) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if profile.VideoBitrate == "" {
		profile.VideoBitrate = DefaultProfile.VideoBitrate
	}
	if profile.AudioBitrate == "" {
		profile.AudioBitrate = DefaultProfile.AudioBitrate
	}
	if profile.Preset == "" {
		profile.Preset = DefaultProfile.Preset
	}
	return &Transcoder{runner: runner, ffmpeg: ffmpegPath, workDir: workDir, profile: profile}
}

// OutputPath is where Compress writes the artifact for inputPath.
func (t *Transcoder) OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(t.workDir, strings.TrimSuffix(base, filepath.Ext(base))+"-compressed.mp4")
}

// Args builds the ffmpeg command line.
func (t *Transcoder) Args(inputPath, outputPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-b:v", t.profile.VideoBitrate,
		"-preset", t.profile.Preset,
		"-c:a", "aac",
		"-b:a", t.profile.AudioBitrate,
		"-movflags", "+faststart",
		outputPath,
	}
}

// Compress transcodes inputPath and returns the artifact path when it fits
// ceilingBytes. Oversized or partial artifacts are removed before returning.
func (t *Transcoder) Compress(ctx context.Context, inputPath string, ceilingBytes int64) (string, error) {
	if ceilingBytes <= 0 {
		return "", errors.New(errors.ErrInvalidInput, "size ceiling must be positive")
	}
	if !IsVideoFilePath(inputPath) {
		return "", errors.New(errors.ErrTranscodeFailed, "not a video file").
			WithDetails(map[string]any{"path": inputPath})
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", errors.Wrap(err, errors.ErrTranscodeFailed, "input not readable")
	}
	if err := os.MkdirAll(t.workDir, 0o750); err != nil {
		return "", errors.Wrap(err, errors.ErrTranscodeFailed, "cannot create work directory")
	}

	outputPath := t.OutputPath(inputPath)
	log := logutils.Log.WithFields(logrus.Fields{
		"input":  inputPath,
		"output": outputPath,
	})
	log.Debug("Starting transcode")

	start := time.Now()
	_, err := t.runner.Run(ctx, t.ffmpeg, t.Args(inputPath, outputPath)...)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordTranscode(elapsed, false)
		_ = os.Remove(outputPath)
		return "", errors.Wrap(err, errors.ErrTranscodeFailed, "")
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		metrics.RecordTranscode(elapsed, false)
		return "", errors.Wrap(err, errors.ErrTranscodeFailed, "ffmpeg produced no output")
	}
	if info.Size() > ceilingBytes {
		metrics.RecordTranscode(elapsed, false)
		_ = os.Remove(outputPath)
		log.WithFields(logrus.Fields{
			"size":    humanize.IBytes(uint64(info.Size())),
			"ceiling": humanize.IBytes(uint64(ceilingBytes)),
		}).Info("Transcoded file exceeds size ceiling")
		return "", errors.New(errors.ErrTranscodeFailed, "output exceeds size ceiling").
			WithDetails(map[string]any{"size": info.Size(), "ceiling": ceilingBytes})
	}

	metrics.RecordTranscode(elapsed, true)
	log.WithFields(logrus.Fields{
		"size":     humanize.IBytes(uint64(info.Size())),
		"duration": elapsed.Round(time.Millisecond),
	}).Info("Transcode finished")
	return outputPath, nil
}

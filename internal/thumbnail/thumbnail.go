// SPDX-License-Identifier: MIT

// Package thumbnail produces a representative still image from the
// deliverable video. A missing thumbnail is a soft failure: every error
// path resolves to "no thumbnail" instead of failing the publish.
package thumbnail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

// DefaultTimeout bounds the whole probe+seek+rasterize sequence.
const DefaultTimeout = 10 * time.Second

// jpegQuality is ffmpeg's -q:v scale (2 best .. 31 worst).
const jpegQuality = "4"

// Prober reads media metadata; satisfied by transcode.FFmpeg.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Dimensions(ctx context.Context, path string) (model.Dimensions, error)
}

// Extractor rasterizes one frame of a video into a compressed JPEG.
type Extractor struct {
	Bin     string
	Prober  Prober
	Timeout time.Duration

	logger zerolog.Logger
}

// New builds an Extractor around the given ffmpeg binary and prober.
func New(bin string, prober Prober, timeout time.Duration) *Extractor {
	if bin == "" {
		bin = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{
		Bin:     bin,
		Prober:  prober,
		Timeout: timeout,
		logger:  log.WithComponent("thumbnail"),
	}
}

// Extract returns the encoded JPEG bytes, or (nil, nil) when extraction
// soft-failed. fallback sizes the frame when the video's own dimensions
// cannot be probed.
func (e *Extractor) Extract(ctx context.Context, videoPath string, fallback model.Dimensions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	data, err := e.extract(ctx, videoPath, fallback)
	if err != nil {
		e.logger.Warn().Err(err).Str(log.FieldPath, videoPath).Msg("thumbnail extraction soft-failed")
		metrics.ThumbnailSoftFailTotal.Inc()
		return nil, nil
	}
	return data, nil
}

func (e *Extractor) extract(ctx context.Context, videoPath string, fallback model.Dimensions) ([]byte, error) {
	duration, err := e.Prober.Duration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "reelcast-thumb-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	outPath := filepath.Join(tmpDir, "thumb.jpg")

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", fmt.Sprintf("%.3f", seekPoint(duration).Seconds()),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", jpegQuality,
	}
	// Native dimensions when probe succeeds; recorded dimensions otherwise.
	if _, err := e.Prober.Dimensions(ctx, videoPath); err != nil && !fallback.Zero() {
		args = append(args, "-s", fmt.Sprintf("%dx%d", fallback.Width, fallback.Height))
	}
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, e.Bin, args...) // #nosec G204
	// A killed ffmpeg can leave children holding the output pipes; without
	// WaitDelay, CombinedOutput would block until they exit on their own.
	cmd.WaitDelay = time.Second
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("rasterize frame: %w (%s)", err, lastLine(out))
	}

	data, err := os.ReadFile(outPath) // #nosec G304 -- temp dir we created
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("rasterized frame is empty")
	}
	return data, nil
}

// seekPoint picks min(1s, duration/4): the earliest meaningful frame, but
// never a point before the video has content.
func seekPoint(duration time.Duration) time.Duration {
	quarter := duration / 4
	if quarter < time.Second {
		return quarter
	}
	return time.Second
}

func lastLine(out []byte) string {
	lines := []byte(nil)
	start := 0
	for i, b := range out {
		if b == '\n' {
			if i > start {
				lines = out[start:i]
			}
			start = i + 1
		}
	}
	if start < len(out) {
		lines = out[start:]
	}
	return string(lines)
}

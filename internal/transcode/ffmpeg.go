// SPDX-License-Identifier: MIT

// Package transcode converts the intermediate recording blob into the
// deliverable MP4 by driving an external ffmpeg process.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/lineio"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/procgroup"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

// ErrEmptyOutput defends against a silently failing encoder run.
var ErrEmptyOutput = errors.New("transcode produced empty output")

// Result describes the deliverable file.
type Result struct {
	Path string
	Size int64
}

// Transcoder converts an intermediate recording file into the deliverable
// container, reporting fractional progress in percent.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, sessionID string, hasAudio bool, onProgress func(float64)) (Result, error)
}

// Prober reads media metadata from a file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Dimensions(ctx context.Context, path string) (model.Dimensions, error)
}

// FFmpeg is the exec-based Transcoder and Prober.
type FFmpeg struct {
	Bin       string
	ProbeBin  string
	WorkDir   string
	KillGrace time.Duration

	logger zerolog.Logger
}

// NewFFmpeg builds an FFmpeg stage; empty bin paths default to PATH lookup.
func NewFFmpeg(bin, probeBin, workDir string, killGrace time.Duration) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}
	if killGrace <= 0 {
		killGrace = 5 * time.Second
	}
	return &FFmpeg{
		Bin:       bin,
		ProbeBin:  probeBin,
		WorkDir:   workDir,
		KillGrace: killGrace,
		logger:    log.WithComponent("transcode"),
	}
}

// Transcode runs one ffmpeg conversion. The output lands in WorkDir named
// after the session id; zero-byte output is an error.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, sessionID string, hasAudio bool, onProgress func(float64)) (Result, error) {
	start := time.Now()
	outputPath := filepath.Join(f.WorkDir, outputName(sessionID))

	// Probe the intermediate for its duration so -progress can be scaled.
	// A container without a duration header (common for live-encoder webm)
	// degrades to coarse progress, not to failure.
	var totalUS int64
	if dur, err := f.Duration(ctx, inputPath); err == nil {
		totalUS = dur.Microseconds()
	} else {
		f.logger.Debug().Err(err).Msg("intermediate duration unknown, progress will be coarse")
	}

	ring := lineio.NewLineRing(128)
	cmd := exec.CommandContext(ctx, f.Bin, buildArgs(inputPath, outputPath, hasAudio)...) // #nosec G204
	procgroup.Set(cmd)
	cmd.Stderr = ring

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("transcode stdout pipe: %w", err)
	}

	f.logger.Info().Str(log.FieldPath, outputPath).Bool("audio", hasAudio).Msg("starting transcode")
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("transcode start: %w", err)
	}

	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		parseProgress(stdout, totalUS, onProgress)
	}()

	// Reap the process group if the context dies mid-run.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = procgroup.KillGroup(cmd.Process.Pid, f.KillGrace, f.KillGrace)
		case <-waitDone:
		}
	}()

	waitErr := cmd.Wait()
	close(waitDone)
	progressWG.Wait()

	if ctx.Err() != nil {
		_ = os.Remove(outputPath)
		return Result{}, ctx.Err()
	}
	if waitErr != nil {
		_ = os.Remove(outputPath)
		return Result{}, fmt.Errorf("transcode failed: %w (stderr: %s)", waitErr, strings.Join(ring.LastN(5), " | "))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("transcode output missing: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(outputPath)
		return Result{}, ErrEmptyOutput
	}

	metrics.TranscodeSeconds.Observe(time.Since(start).Seconds())
	f.logger.Info().Int64(log.FieldBytes, info.Size()).Dur("elapsed", time.Since(start)).Msg("transcode complete")
	return Result{Path: outputPath, Size: info.Size()}, nil
}

// Duration probes the container duration.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, f.ProbeBin, probeArgs(path)...).Output() // #nosec G204
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration parse %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Dimensions probes the first video stream's pixel dimensions.
func (f *FFmpeg) Dimensions(ctx context.Context, path string) (model.Dimensions, error) {
	out, err := exec.CommandContext(ctx, f.ProbeBin, probeDimsArgs(path)...).Output() // #nosec G204
	if err != nil {
		return model.Dimensions{}, fmt.Errorf("probe dimensions: %w", err)
	}
	wStr, hStr, found := strings.Cut(strings.TrimSpace(string(out)), "x")
	if !found {
		return model.Dimensions{}, fmt.Errorf("probe dimensions parse %q", strings.TrimSpace(string(out)))
	}
	w, errW := strconv.Atoi(wStr)
	h, errH := strconv.Atoi(hStr)
	if errW != nil || errH != nil {
		return model.Dimensions{}, fmt.Errorf("probe dimensions parse %q", strings.TrimSpace(string(out)))
	}
	return model.Dimensions{Width: w, Height: h}, nil
}

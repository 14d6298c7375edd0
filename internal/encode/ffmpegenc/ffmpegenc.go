// SPDX-License-Identifier: MIT

// Package ffmpegenc is the live encoder for desktop capture: one ffmpeg
// process per recording, consuming the stream's source tracks and emitting
// the intermediate webm as timed chunks on a channel.
package ffmpegenc

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/encode"
	"github.com/reelcast/reelcast/internal/lineio"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/procgroup"
)

// source is implemented by tracks that know their ffmpeg demuxer flags.
type source interface {
	FFmpegInput() []string
}

// endSignaler is implemented by tracks that want to hear about the capture
// process dying underneath them.
type endSignaler interface {
	SignalEnded()
}

// supportedTypes is what one libvpx/libopus ffmpeg build can produce live.
var supportedTypes = map[string]bool{
	"video/webm;codecs=vp9,opus": true,
	"video/webm;codecs=vp8,opus": true,
	"video/webm;codecs=vp9":      true,
	"video/webm;codecs=vp8":      true,
	"video/webm":                 true,
}

// Factory builds ffmpeg-backed encoders.
type Factory struct {
	Bin       string
	KillGrace time.Duration

	logger zerolog.Logger
}

// NewFactory builds a Factory; an empty bin defaults to PATH lookup.
func NewFactory(bin string, killGrace time.Duration) *Factory {
	if bin == "" {
		bin = "ffmpeg"
	}
	if killGrace <= 0 {
		killGrace = 5 * time.Second
	}
	return &Factory{
		Bin:       bin,
		KillGrace: killGrace,
		logger:    log.WithComponent("encode.ffmpeg"),
	}
}

// TypeSupported answers the mime type negotiation.
func (f *Factory) TypeSupported(mimeType string) bool {
	return supportedTypes[mimeType]
}

// New builds an encoder over the stream's tracks. Every track must be a
// desktop source descriptor.
func (f *Factory) New(stream *capture.Stream, mimeType string) (encode.Encoder, error) {
	if !f.TypeSupported(mimeType) {
		return nil, fmt.Errorf("%w: %s", encode.ErrNoSupportedType, mimeType)
	}

	var inputs []string
	var signalers []endSignaler
	audio := false
	for _, t := range stream.Tracks() {
		src, ok := t.(source)
		if !ok {
			return nil, fmt.Errorf("track %s is not an ffmpeg source", t.ID())
		}
		inputs = append(inputs, src.FFmpegInput()...)
		if t.Kind() == capture.KindAudio {
			audio = true
		}
		if s, ok := t.(endSignaler); ok {
			signalers = append(signalers, s)
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("stream has no encodable tracks")
	}

	return &Encoder{
		bin:       f.Bin,
		killGrace: f.KillGrace,
		mimeType:  mimeType,
		inputs:    inputs,
		audio:     audio,
		signalers: signalers,
		chunks:    make(chan encode.Chunk, 64),
		logger:    f.logger,
	}, nil
}

// Encoder drives one ffmpeg live-encode process.
type Encoder struct {
	bin       string
	killGrace time.Duration
	mimeType  string
	inputs    []string
	audio     bool
	signalers []endSignaler

	mu      sync.Mutex
	cmd     *exec.Cmd
	err     error
	started bool
	stopped bool
	done    chan struct{}

	chunks chan encode.Chunk
	logger zerolog.Logger
}

// Start launches ffmpeg and begins emitting chunks every interval.
func (e *Encoder) Start(interval time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("encoder already started")
	}
	if interval <= 0 {
		interval = encode.DefaultChunkInterval
	}

	args := append(append([]string(nil), e.inputs...), encodeArgs(e.mimeType, e.audio)...)
	cmd := exec.Command(e.bin, args...) // #nosec G204 -- binary from validated config
	procgroup.Set(cmd)
	ring := lineio.NewLineRing(64)
	cmd.Stderr = ring

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("encoder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("encoder start: %w", err)
	}

	e.cmd = cmd
	e.started = true
	e.done = make(chan struct{})
	e.logger.Info().Str(log.FieldMimeType, e.mimeType).Bool("audio", e.audio).Msg("live encoder started")

	go func() {
		defer close(e.done)
		defer close(e.chunks)

		buf := make([]byte, 32*1024)
		var pending []byte
		lastFlush := time.Now()
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				if time.Since(lastFlush) >= interval {
					e.chunks <- encode.Chunk{Data: pending, MimeType: e.mimeType}
					pending = nil
					lastFlush = time.Now()
				}
			}
			if readErr != nil {
				break
			}
		}
		if len(pending) > 0 {
			e.chunks <- encode.Chunk{Data: pending, MimeType: e.mimeType}
		}

		waitErr := cmd.Wait()

		e.mu.Lock()
		stopped := e.stopped
		if waitErr != nil && !stopped {
			e.err = fmt.Errorf("encoder exited: %w (stderr: %s)", waitErr, strings.Join(ring.LastN(5), " | "))
		}
		e.mu.Unlock()

		// An unrequested exit means the capture source is gone; surface it
		// like the platform revoking the tracks.
		if !stopped {
			e.logger.Warn().Err(waitErr).Msg("live encoder exited unexpectedly")
			for _, s := range e.signalers {
				s.SignalEnded()
			}
		}
	}()
	return nil
}

// Stop terminates ffmpeg gracefully and waits for the final chunk flush.
// Idempotent; safe to call before Start.
func (e *Encoder) Stop() error {
	e.mu.Lock()
	if !e.started {
		if !e.stopped {
			e.stopped = true
			close(e.chunks)
		}
		e.mu.Unlock()
		return nil
	}
	if e.stopped {
		done := e.done
		e.mu.Unlock()
		<-done
		return nil
	}
	e.stopped = true
	cmd := e.cmd
	done := e.done
	e.mu.Unlock()

	// SIGTERM lets ffmpeg finalize the webm cluster before the pipe closes.
	_ = procgroup.KillGroup(cmd.Process.Pid, e.killGrace, e.killGrace)
	<-done
	return nil
}

// Chunks is the live chunk channel; closed after Stop or process death.
func (e *Encoder) Chunks() <-chan encode.Chunk { return e.chunks }

// Err reports the terminal encoder error once Chunks is closed.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// encodeArgs maps the negotiated mime type onto realtime codec settings.
func encodeArgs(mimeType string, audio bool) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch {
	case strings.Contains(mimeType, "vp8"):
		args = append(args, "-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M")
	default:
		args = append(args, "-c:v", "libvpx-vp9", "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1", "-b:v", "2M")
	}
	if audio {
		args = append(args, "-c:a", "libopus", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}

	// Live muxing: no seeking back to patch the header.
	args = append(args, "-f", "webm", "-live", "1", "pipe:1")
	return args
}

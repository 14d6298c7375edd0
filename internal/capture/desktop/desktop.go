// SPDX-License-Identifier: MIT

// Package desktop is the Linux capture Provider: X11 screen grabs, V4L2
// cameras and PulseAudio microphones, all consumed through ffmpeg demuxer
// inputs by the live encoder.
package desktop

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/log"
)

// Config selects the desktop sources.
type Config struct {
	Display     string  // X11 display, e.g. ":0"
	PulseDevice string  // PulseAudio source name
	FrameRate   float64 // screen capture frame rate
}

// Provider implements capture.Provider for a Linux desktop.
type Provider struct {
	cfg    Config
	logger zerolog.Logger
}

// NewProvider builds a Provider; zero fields fall back to the usual
// desktop defaults.
func NewProvider(cfg Config) *Provider {
	if cfg.Display == "" {
		cfg.Display = os.Getenv("DISPLAY")
		if cfg.Display == "" {
			cfg.Display = ":0"
		}
	}
	if cfg.PulseDevice == "" {
		cfg.PulseDevice = "default"
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	return &Provider{cfg: cfg, logger: log.WithComponent("capture.desktop")}
}

// Display grants an X11 screen grab. X11 can only capture whole monitors,
// so a window or browser surface hint is rejected with ErrOverconstrained
// and the caller retries without the hint.
func (p *Provider) Display(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error) {
	if req.PreferredSurface != "" && req.PreferredSurface != "monitor" {
		return nil, fmt.Errorf("x11grab captures monitors only: %w", capture.ErrOverconstrained)
	}

	settings := capture.Settings{
		Width:          req.Quality.IdealWidth,
		Height:         req.Quality.IdealHeight,
		FrameRate:      p.cfg.FrameRate,
		DisplaySurface: "monitor",
	}
	track := newTrack(capture.KindVideo, "X11 display "+p.cfg.Display, settings, [][]string{
		{"-f", "x11grab"},
		{"-framerate", strconv.FormatFloat(p.cfg.FrameRate, 'f', -1, 64)},
		videoSizeArg(settings),
		{"-i", p.cfg.Display},
	})
	p.logger.Debug().Str("display", p.cfg.Display).Msg("display capture granted")
	return capture.NewStream(track), nil
}

// Camera grants a V4L2 device stream. The device id is the device node
// path, e.g. /dev/video0.
func (p *Provider) Camera(ctx context.Context, req capture.CameraRequest) (*capture.Stream, error) {
	if _, err := os.Stat(req.DeviceID); err != nil {
		return nil, fmt.Errorf("camera %s: %w", req.DeviceID, capture.ErrDeviceBusy)
	}

	settings := capture.Settings{
		Width:     req.Quality.IdealWidth,
		Height:    req.Quality.IdealHeight,
		FrameRate: p.cfg.FrameRate,
		DeviceID:  req.DeviceID,
	}
	track := newTrack(capture.KindVideo, "Camera "+req.DeviceID, settings, [][]string{
		{"-f", "v4l2"},
		videoSizeArg(settings),
		{"-i", req.DeviceID},
	})
	return capture.NewStream(track), nil
}

// Microphone grants a PulseAudio source stream. The voice processing flags
// are accepted but handled by the Pulse server, not here.
func (p *Provider) Microphone(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error) {
	device := req.DeviceID
	if device == "" {
		device = p.cfg.PulseDevice
	}
	track := newTrack(capture.KindAudio, "PulseAudio "+device, capture.Settings{DeviceID: device}, [][]string{
		{"-f", "pulse"},
		{"-i", device},
	})
	return capture.NewStream(track), nil
}

func videoSizeArg(s capture.Settings) []string {
	if s.Width <= 0 || s.Height <= 0 {
		return nil
	}
	return []string{"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height)}
}

// Track is a source descriptor: the encoder turns its input args into
// ffmpeg demuxer flags and reports liveness back through SignalEnded.
type Track struct {
	mu        sync.Mutex
	id        string
	kind      capture.TrackKind
	label     string
	settings  capture.Settings
	inputArgs []string
	stopped   bool
	ended     map[int]func()
	mute      map[int]func()
	unmute    map[int]func()
	nextID    int
}

func newTrack(kind capture.TrackKind, label string, settings capture.Settings, argGroups [][]string) *Track {
	var args []string
	for _, g := range argGroups {
		args = append(args, g...)
	}
	return &Track{
		id:        uuid.NewString(),
		kind:      kind,
		label:     label,
		settings:  settings,
		inputArgs: args,
		ended:     make(map[int]func()),
		mute:      make(map[int]func()),
		unmute:    make(map[int]func()),
	}
}

func (t *Track) ID() string              { return t.id }
func (t *Track) Kind() capture.TrackKind { return t.kind }
func (t *Track) Label() string           { return t.label }

func (t *Track) Settings() capture.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// FFmpegInput returns the demuxer args selecting this source.
func (t *Track) FFmpegInput() []string {
	return append([]string(nil), t.inputArgs...)
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Track) OnEnded(fn func()) func()  { return t.register(t.ended, fn) }
func (t *Track) OnMute(fn func()) func()   { return t.register(t.mute, fn) }
func (t *Track) OnUnmute(fn func()) func() { return t.register(t.unmute, fn) }

func (t *Track) register(set map[int]func(), fn func()) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	set[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(set, id)
	}
}

// SignalEnded marks the track stopped and fires the ended listeners. The
// encoder calls it when the capture process dies underneath a live session.
func (t *Track) SignalEnded() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	fns := make([]func(), 0, len(t.ended))
	for _, fn := range t.ended {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

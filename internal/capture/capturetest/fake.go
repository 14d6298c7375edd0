// SPDX-License-Identifier: MIT

// Package capturetest provides in-memory Provider and Track fakes for
// pipeline tests.
package capturetest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/reelcast/reelcast/internal/capture"
)

// Track is a controllable capture.Track.
type Track struct {
	mu        sync.Mutex
	id        string
	kind      capture.TrackKind
	label     string
	settings  capture.Settings
	stopped   bool
	stopCount int
	ended     map[int]func()
	mute      map[int]func()
	unmute    map[int]func()
	nextID    int
}

// NewTrack builds a fake track.
func NewTrack(kind capture.TrackKind, label string, settings capture.Settings) *Track {
	return &Track{
		id:       uuid.NewString(),
		kind:     kind,
		label:    label,
		settings: settings,
		ended:    make(map[int]func()),
		mute:     make(map[int]func()),
		unmute:   make(map[int]func()),
	}
}

func (t *Track) ID() string              { return t.id }
func (t *Track) Kind() capture.TrackKind { return t.kind }

func (t *Track) Label() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label
}

func (t *Track) Settings() capture.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// SetSettings replaces the settings snapshot (simulates late metadata).
func (t *Track) SetSettings(s capture.Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = s
}

// SetLabel replaces the human-readable label.
func (t *Track) SetLabel(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = label
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.stopCount++
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// StopCount reports how many effective stops ran (never more than one).
func (t *Track) StopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCount
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

// FireEnded invokes all ended listeners (platform revoked the capture).
func (t *Track) FireEnded() { t.fire(t.ended) }

// FireMute invokes all mute listeners.
func (t *Track) FireMute() { t.fire(t.mute) }

// FireUnmute invokes all unmute listeners.
func (t *Track) FireUnmute() { t.fire(t.unmute) }

func (t *Track) fire(set map[int]func()) {
	t.mu.Lock()
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ListenerCount reports registered mute+unmute+ended listeners.
func (t *Track) ListenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ended) + len(t.mute) + len(t.unmute)
}

// Provider is a scriptable capture.Provider.
type Provider struct {
	mu sync.Mutex

	DisplayFunc    func(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error)
	CameraFunc     func(ctx context.Context, req capture.CameraRequest) (*capture.Stream, error)
	MicrophoneFunc func(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error)

	DisplayCalls    []capture.DisplayRequest
	CameraCalls     []capture.CameraRequest
	MicrophoneCalls []capture.MicrophoneRequest
}

func (p *Provider) Display(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error) {
	p.mu.Lock()
	p.DisplayCalls = append(p.DisplayCalls, req)
	fn := p.DisplayFunc
	p.mu.Unlock()
	if fn == nil {
		return capture.NewStream(NewTrack(capture.KindVideo, "Display", capture.Settings{Width: 1920, Height: 1080})), nil
	}
	return fn(ctx, req)
}

func (p *Provider) Camera(ctx context.Context, req capture.CameraRequest) (*capture.Stream, error) {
	p.mu.Lock()
	p.CameraCalls = append(p.CameraCalls, req)
	fn := p.CameraFunc
	p.mu.Unlock()
	if fn == nil {
		return capture.NewStream(NewTrack(capture.KindVideo, "Camera", capture.Settings{Width: 1280, Height: 720, DeviceID: req.DeviceID})), nil
	}
	return fn(ctx, req)
}

func (p *Provider) Microphone(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error) {
	p.mu.Lock()
	p.MicrophoneCalls = append(p.MicrophoneCalls, req)
	fn := p.MicrophoneFunc
	p.mu.Unlock()
	if fn == nil {
		return capture.NewStream(NewTrack(capture.KindAudio, "Microphone", capture.Settings{DeviceID: req.DeviceID})), nil
	}
	return fn(ctx, req)
}

// SPDX-License-Identifier: MIT

package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/log"
)

// Target quality for all acquisitions.
const (
	targetWidth     = 1920
	targetHeight    = 1080
	targetFrameRate = 30
)

// Request describes one acquisition.
type Request struct {
	Mode               Mode
	CameraDeviceID     string // required iff Mode == ModeCamera
	Microphone         bool
	MicrophoneDeviceID string
}

// Acquisition is the result of a successful Acquire: one mixed deliverable
// stream plus exclusive ownership of every underlying resource.
type Acquisition struct {
	Mixed    *Stream
	Primary  Track // first video track; dimensions and surface detection source
	HasAudio bool
	Warnings []string

	resources []*Stream
	released  bool
}

// Release stops every track on every held resource. Idempotent; must be
// called on every exit path so the platform drops its capture indicator.
func (a *Acquisition) Release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	for _, s := range a.resources {
		s.StopAll()
	}
}

// Manager requests streams from the Provider and assembles the mixed stream.
type Manager struct {
	provider Provider
	logger   zerolog.Logger
}

// NewManager wraps the given provider.
func NewManager(provider Provider) *Manager {
	return &Manager{
		provider: provider,
		logger:   log.WithComponent("capture"),
	}
}

// Acquire produces the mixed stream for the request. On any unrecoverable
// error everything already acquired is released before returning.
func (m *Manager) Acquire(ctx context.Context, req Request) (acq *Acquisition, err error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unknown recording mode %q", req.Mode)
	}
	if req.Mode == ModeCamera && req.CameraDeviceID == "" {
		return nil, fmt.Errorf("camera mode requires a device id")
	}

	acq = &Acquisition{}
	defer func() {
		if err != nil {
			acq.Release()
		}
	}()

	var video *Stream
	if req.Mode.Display() {
		video, err = m.acquireDisplay(ctx, req.Mode)
	} else {
		video, err = m.provider.Camera(ctx, CameraRequest{
			Quality:  defaultQuality(),
			DeviceID: req.CameraDeviceID,
		})
	}
	if err != nil {
		return acq, fmt.Errorf("acquire %s stream: %w", req.Mode, err)
	}
	acq.resources = append(acq.resources, video)

	videoTracks := video.VideoTracks()
	if len(videoTracks) == 0 {
		return acq, ErrNoVideoTrack
	}
	acq.Primary = videoTracks[0]

	mixed := videoTracks
	if req.Microphone {
		mic, micErr := m.provider.Microphone(ctx, MicrophoneRequest{
			DeviceID:         req.MicrophoneDeviceID,
			EchoCancellation: true,
			AutoGainControl:  true,
			NoiseSuppression: true,
		})
		switch {
		case micErr == nil:
			acq.resources = append(acq.resources, mic)
			audio := mic.AudioTracks()
			mixed = append(mixed, audio...)
			acq.HasAudio = len(audio) > 0
		case errors.Is(micErr, ErrPermissionDenied):
			// Microphone denial degrades to video-only, never aborts.
			m.logger.Warn().Err(micErr).Str(log.FieldDevice, req.MicrophoneDeviceID).
				Msg("microphone denied, continuing video-only")
			acq.Warnings = append(acq.Warnings, "microphone access denied, recording without audio")
		default:
			return acq, fmt.Errorf("acquire microphone: %w", micErr)
		}
	}

	acq.Mixed = NewStream(mixed...)
	m.logger.Debug().
		Str("mode", string(req.Mode)).
		Bool("audio", acq.HasAudio).
		Int("tracks", len(mixed)).
		Msg("acquisition complete")
	return acq, nil
}

// acquireDisplay requests a display stream with the preferred-surface hint,
// falling back once to baseline quality hints when the provider rejects the
// richer set. Optional hints must never fail the whole acquisition.
func (m *Manager) acquireDisplay(ctx context.Context, mode Mode) (*Stream, error) {
	req := DisplayRequest{
		Quality:          defaultQuality(),
		PreferredSurface: preferredSurface(mode),
	}
	stream, err := m.provider.Display(ctx, req)
	if err == nil || req.PreferredSurface == "" {
		return stream, err
	}
	if !errors.Is(err, ErrOverconstrained) {
		return nil, err
	}

	m.logger.Debug().Str("preferred_surface", req.PreferredSurface).
		Msg("surface hint rejected, retrying with baseline constraints")
	req.PreferredSurface = ""
	return m.provider.Display(ctx, req)
}

func defaultQuality() QualityHints {
	return QualityHints{
		IdealWidth:     targetWidth,
		IdealHeight:    targetHeight,
		IdealFrameRate: targetFrameRate,
	}
}

// preferredSurface maps a recording mode to the platform surface hint.
func preferredSurface(mode Mode) string {
	switch mode {
	case ModeFullscreen:
		return "monitor"
	case ModeWindow:
		return "window"
	case ModeTab:
		return "browser"
	}
	return ""
}

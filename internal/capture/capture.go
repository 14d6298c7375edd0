// SPDX-License-Identifier: MIT

// Package capture models the platform capture APIs as interfaces and owns
// the acquisition of display/camera/microphone streams. The Provider is an
// external collaborator: the daemon is handed one, tests use capturetest.
package capture

import "context"

// Mode selects what the user asked to record.
type Mode string

const (
	ModeCamera     Mode = "camera"
	ModeFullscreen Mode = "fullscreen"
	ModeWindow     Mode = "window"
	ModeTab        Mode = "tab"
)

// Display reports whether the mode records a display surface.
func (m Mode) Display() bool {
	return m == ModeFullscreen || m == ModeWindow || m == ModeTab
}

// Valid reports whether the mode is one of the known recording modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeCamera, ModeFullscreen, ModeWindow, ModeTab:
		return true
	}
	return false
}

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// Settings is a snapshot of a track's live parameters. DisplaySurface is
// the platform's structured surface classification ("monitor", "window",
// "browser") and may be empty until the surface is ready.
type Settings struct {
	Width          int
	Height         int
	FrameRate      float64
	DeviceID       string
	DisplaySurface string
}

// Track is one acquired media track. Implementations must tolerate Stop
// being called more than once, and listener removal funcs being called
// after the track ended.
type Track interface {
	ID() string
	Kind() TrackKind
	Label() string
	Settings() Settings
	Stop()
	Stopped() bool

	// OnEnded registers a callback fired when the platform ends the track
	// (for example the user revoked capture through platform UI). The
	// returned func removes the listener.
	OnEnded(fn func()) (remove func())
	// OnMute/OnUnmute fire on the track's mute transitions, which some
	// platforms use to signal surface readiness.
	OnMute(fn func()) (remove func())
	OnUnmute(fn func()) (remove func())
}

// Stream groups independently acquired tracks.
type Stream struct {
	tracks []Track
}

// NewStream builds a stream over the given tracks.
func NewStream(tracks ...Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns all tracks.
func (s *Stream) Tracks() []Track {
	if s == nil {
		return nil
	}
	return s.tracks
}

// VideoTracks returns the video tracks in order.
func (s *Stream) VideoTracks() []Track {
	return s.byKind(KindVideo)
}

// AudioTracks returns the audio tracks in order.
func (s *Stream) AudioTracks() []Track {
	return s.byKind(KindAudio)
}

func (s *Stream) byKind(kind TrackKind) []Track {
	if s == nil {
		return nil
	}
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// StopAll stops every track. Safe to call repeatedly.
func (s *Stream) StopAll() {
	if s == nil {
		return
	}
	for _, t := range s.tracks {
		t.Stop()
	}
}

// QualityHints are non-binding constraints passed to the platform.
type QualityHints struct {
	IdealWidth     int
	IdealHeight    int
	IdealFrameRate float64
}

// DisplayRequest asks for a display-surface stream. PreferredSurface is the
// richer hint set; providers that cannot honor it reject with
// ErrOverconstrained and the manager retries without it.
type DisplayRequest struct {
	Quality          QualityHints
	PreferredSurface string // "monitor", "window", "browser" or ""
}

// CameraRequest asks for a camera stream by device id.
type CameraRequest struct {
	Quality  QualityHints
	DeviceID string
}

// MicrophoneRequest asks for a microphone stream by device id with the
// standard voice processing chain enabled.
type MicrophoneRequest struct {
	DeviceID         string
	EchoCancellation bool
	AutoGainControl  bool
	NoiseSuppression bool
}

// Provider is the platform capture API boundary.
type Provider interface {
	Display(ctx context.Context, req DisplayRequest) (*Stream, error)
	Camera(ctx context.Context, req CameraRequest) (*Stream, error)
	Microphone(ctx context.Context, req MicrophoneRequest) (*Stream, error)
}

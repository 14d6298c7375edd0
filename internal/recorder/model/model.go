// SPDX-License-Identifier: MIT

// Package model holds the recording pipeline's shared vocabulary: phases,
// surface kinds, reason codes and the session snapshot exposed to callers.
package model

// Phase is the externally visible lifecycle of one recording session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAcquiring  Phase = "acquiring"
	PhaseRecording  Phase = "recording"
	PhaseCreating   Phase = "creating"
	PhaseConverting Phase = "converting"
	PhaseUploading  Phase = "uploading"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Terminal reports whether the phase is final until an explicit reset.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseError:
		return true
	}
	return false
}

// SurfaceKind classifies what kind of capture surface the platform granted.
type SurfaceKind string

const (
	SurfaceFullscreen SurfaceKind = "fullscreen"
	SurfaceWindow     SurfaceKind = "window"
	SurfaceTab        SurfaceKind = "tab"
	SurfaceCamera     SurfaceKind = "camera"
	SurfaceUnknown    SurfaceKind = "unknown"
)

// ReasonCode is a compact, typed failure/decision signal.
// Keep these stable: metrics and the status endpoint depend on them.
type ReasonCode string

const (
	RAcquireFailed   ReasonCode = "R_ACQUIRE_FAILED"
	REncoderFailed   ReasonCode = "R_ENCODER_FAILED"
	RNoData          ReasonCode = "R_NO_DATA"
	RCreateFailed    ReasonCode = "R_CREATE_FAILED"
	RTranscodeFailed ReasonCode = "R_TRANSCODE_FAILED"
	RUploadFailed    ReasonCode = "R_UPLOAD_FAILED"
)

// Dimensions are the pixel dimensions of the first video frame's settings.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Zero reports whether no dimensions were captured.
func (d Dimensions) Zero() bool {
	return d.Width == 0 && d.Height == 0
}

// Snapshot is a point-in-time copy of the RecordingSession aggregate.
type Snapshot struct {
	ID              string      `json:"id"`
	Phase           Phase       `json:"phase"`
	DurationMs      int64       `json:"durationMs"`
	HasAudioTrack   bool        `json:"hasAudioTrack"`
	Dimensions      Dimensions  `json:"dimensions"`
	Surface         SurfaceKind `json:"detectedSurfaceKind"`
	RemoteSessionID string      `json:"remoteSessionId,omitempty"`
	Progress        float64     `json:"progress"`
	Reason          ReasonCode  `json:"reason,omitempty"`
	Error           string      `json:"error,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// SPDX-License-Identifier: MIT

// Package recorder owns the RecordingSession aggregate and sequences the
// capture-to-publish pipeline. It is the only component exposed to
// external callers and the single place deciding fatal vs. non-fatal.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/encode"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/publish"
	"github.com/reelcast/reelcast/internal/recorder/fsm"
	"github.com/reelcast/reelcast/internal/recorder/model"
	"github.com/reelcast/reelcast/internal/surface"
	"github.com/reelcast/reelcast/internal/transcode"
	"github.com/reelcast/reelcast/internal/upload"
)

// ErrBusy rejects a duplicate start instead of racing a second acquisition.
var ErrBusy = errors.New("a recording is already in progress")

// DefaultTickInterval advances durationMs while recording.
const DefaultTickInterval = 250 * time.Millisecond

// Thumbnailer produces a still image from the deliverable video, or
// (nil, nil) on soft failure.
type Thumbnailer interface {
	Extract(ctx context.Context, videoPath string, fallback model.Dimensions) ([]byte, error)
}

// Uploader transfers one artifact to its pre-signed destination.
type Uploader interface {
	Upload(ctx context.Context, sessionID string, artifact upload.Artifact, onProgress func(float64)) error
}

// Deps are the recorder's collaborators.
type Deps struct {
	Capture    *capture.Manager
	Encoders   encode.Factory
	Transcoder transcode.Transcoder
	Thumbnails Thumbnailer
	Publisher  publish.API
	Uploader   Uploader
}

// Config tunes one recorder instance.
type Config struct {
	WorkDir       string
	OrgID         string
	FolderID      string
	TickInterval  time.Duration
	ChunkInterval time.Duration
	Surface       surface.Config
}

// StartRequest describes what to record.
type StartRequest struct {
	Mode               capture.Mode `json:"mode"`
	CameraDeviceID     string       `json:"cameraDeviceId,omitempty"`
	Microphone         bool         `json:"microphone"`
	MicrophoneDeviceID string       `json:"microphoneDeviceId,omitempty"`
	Title              string       `json:"title,omitempty"`
}

// session is the single mutable aggregate, owned for the lifetime of one
// recording. All fields are guarded by Recorder.mu.
type session struct {
	id         string
	title      string
	mimeType   string
	startedAt  time.Time
	durationMs int64
	hasAudio   bool
	dims       model.Dimensions
	surface    model.SurfaceKind
	remoteID   string
	progress   float64
	reason     model.ReasonCode
	errMsg     string
	warnings   []string

	acq         *capture.Acquisition
	enc         encode.Encoder
	col         *encode.Collector
	removeEnded func()
	stopTick    chan struct{}
	stopping    bool
}

// Recorder sequences exactly one RecordingSession at a time.
type Recorder struct {
	mu       sync.Mutex
	machine  *fsm.Machine
	detector *surface.Detector
	deps     Deps
	cfg      Config
	sess     session
	gen      uint64 // bumped on reset; stale stop sequences abandon
	starting bool   // latched for the duration of Start; second caller gets ErrBusy
	logger   zerolog.Logger
}

// transitions is the legal phase table. error is reachable from every
// non-idle phase; idle is re-entered only through reset or a failed
// acquisition.
var transitions = map[model.Phase][]model.Phase{
	model.PhaseIdle:       {model.PhaseAcquiring},
	model.PhaseAcquiring:  {model.PhaseRecording, model.PhaseIdle, model.PhaseError},
	model.PhaseRecording:  {model.PhaseCreating, model.PhaseError},
	model.PhaseCreating:   {model.PhaseConverting, model.PhaseError},
	model.PhaseConverting: {model.PhaseUploading, model.PhaseError},
	model.PhaseUploading:  {model.PhaseCompleted, model.PhaseError},
}

// New builds a Recorder.
func New(deps Deps, cfg Config) *Recorder {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = encode.DefaultChunkInterval
	}
	r := &Recorder{
		machine:  fsm.New(model.PhaseIdle, transitions),
		detector: surface.New(cfg.Surface),
		deps:     deps,
		cfg:      cfg,
		logger:   log.WithComponent("recorder"),
	}
	r.machine.Observe(func(from, to model.Phase) {
		metrics.PhaseTransitions.WithLabelValues(string(from), string(to)).Inc()
		r.logger.Info().
			Str(log.FieldOldPhase, string(from)).
			Str(log.FieldNewPhase, string(to)).
			Msg("phase transition")
	})
	return r
}

// Observe registers a UI state observer notified on every phase transition.
func (r *Recorder) Observe(fn func(from, to model.Phase)) {
	r.machine.Observe(fsm.Observer(fn))
}

// Phase returns the current phase.
func (r *Recorder) Phase() model.Phase {
	return r.machine.Phase()
}

// Snapshot returns a point-in-time copy of the session.
func (r *Recorder) Snapshot() model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.Snapshot{
		ID:              r.sess.id,
		Phase:           r.machine.Phase(),
		DurationMs:      r.sess.durationMs,
		HasAudioTrack:   r.sess.hasAudio,
		Dimensions:      r.sess.dims,
		Surface:         r.sess.surface,
		RemoteSessionID: r.sess.remoteID,
		Progress:        r.sess.progress,
		Reason:          r.sess.reason,
		Error:           r.sess.errMsg,
		Warnings:        append([]string(nil), r.sess.warnings...),
	}
}

// Start acquires streams and begins recording. Rejected with ErrBusy while
// a session is active; a terminal session is implicitly reset first.
func (r *Recorder) Start(ctx context.Context, req StartRequest) error {
	r.mu.Lock()
	if r.starting {
		r.mu.Unlock()
		return ErrBusy
	}
	r.starting = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
	}()

	// A terminal session restarts implicitly; the machine must be walked
	// back to idle outside r.mu because observers take the lock themselves.
	if r.machine.Phase().Terminal() {
		r.mu.Lock()
		r.resetLocked()
		r.mu.Unlock()
		r.machine.ForceIdle()
	}

	r.mu.Lock()
	if r.machine.Phase() != model.PhaseIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.sess = session{
		id:      uuid.NewString(),
		title:   req.Title,
		surface: surface.InitialGuess(req.Mode),
	}
	gen := r.gen
	r.mu.Unlock()

	if err := r.machine.To(model.PhaseAcquiring); err != nil {
		return ErrBusy
	}

	ctx = log.ContextWithSessionID(ctx, r.sessionID())
	logger := log.WithContext(ctx, r.logger)

	acq, err := r.deps.Capture.Acquire(ctx, capture.Request{
		Mode:               req.Mode,
		CameraDeviceID:     req.CameraDeviceID,
		Microphone:         req.Microphone,
		MicrophoneDeviceID: req.MicrophoneDeviceID,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("acquisition failed")
		r.abortStart(gen, model.PhaseIdle, model.RAcquireFailed, err)
		return fmt.Errorf("could not start recording: %w", err)
	}

	mimeType, err := encode.SelectMimeType(r.deps.Encoders.TypeSupported)
	if err == nil {
		var enc encode.Encoder
		enc, err = r.deps.Encoders.New(acq.Mixed, mimeType)
		if err == nil {
			r.mu.Lock()
			if gen != r.gen {
				r.mu.Unlock()
				acq.Release()
				return errors.New("recording was reset during start")
			}
			r.sess.acq = acq
			r.sess.enc = enc
			r.sess.col = encode.NewCollector(enc)
			r.sess.mimeType = mimeType
			r.sess.hasAudio = acq.HasAudio
			r.sess.warnings = append(r.sess.warnings, acq.Warnings...)
			settings := acq.Primary.Settings()
			r.sess.dims = model.Dimensions{Width: settings.Width, Height: settings.Height}
			r.mu.Unlock()

			err = enc.Start(r.cfg.ChunkInterval)
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("encoder setup failed")
		acq.Release()
		r.abortStart(gen, model.PhaseError, model.REncoderFailed, err)
		return fmt.Errorf("could not start encoder: %w", err)
	}

	if err := r.machine.To(model.PhaseRecording); err != nil {
		// Reset raced the start; everything is torn down already.
		acq.Release()
		return errors.New("recording was reset during start")
	}

	r.mu.Lock()
	r.sess.startedAt = time.Now()
	r.startTickerLocked()

	// The user revoking capture through platform UI behaves exactly like
	// pressing stop.
	r.sess.removeEnded = acq.Primary.OnEnded(func() {
		go func() {
			if err := r.Stop(context.Background()); err != nil {
				r.logger.Warn().Err(err).Msg("stop after track ended failed")
			}
		}()
	})
	r.mu.Unlock()

	if req.Mode.Display() {
		r.detector.Begin(acq.Primary, surface.InitialGuess(req.Mode), func(kind model.SurfaceKind) {
			r.mu.Lock()
			r.sess.surface = kind
			r.mu.Unlock()
		})
	}

	logger.Info().
		Str("mode", string(req.Mode)).
		Str(log.FieldMimeType, mimeType).
		Bool("audio", acq.HasAudio).
		Msg("recording started")
	return nil
}

// abortStart cleans up a failed start and moves to target (idle for
// recoverable acquisition errors, error for fatal encoder errors).
func (r *Recorder) abortStart(gen uint64, target model.Phase, reason model.ReasonCode, cause error) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.teardownLocked()
	if target == model.PhaseError {
		r.sess.reason = reason
		r.sess.errMsg = cause.Error()
	} else {
		r.sess = session{}
	}
	r.mu.Unlock()
	_ = r.machine.To(target)
}

// Stop ends the recording and runs the publish sequence: remote session
// creation, transcode, thumbnail extraction, uploads. A stop while not
// recording is a no-op, which makes the explicit stop and the track-ended
// paths idempotent against each other.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.machine.Phase() != model.PhaseRecording || r.sess.stopping {
		r.mu.Unlock()
		return nil
	}
	r.sess.stopping = true
	gen := r.gen
	r.sess.durationMs = time.Since(r.sess.startedAt).Milliseconds()
	r.stopTickerLocked()
	if r.sess.removeEnded != nil {
		r.sess.removeEnded()
		r.sess.removeEnded = nil
	}
	enc := r.sess.enc
	col := r.sess.col
	r.mu.Unlock()

	r.detector.Cancel()
	ctx = log.ContextWithSessionID(ctx, r.sessionID())

	blob, err := r.finishEncoding(ctx, enc, col)
	if err != nil {
		reason := model.REncoderFailed
		if errors.Is(err, encode.ErrNoData) {
			reason = model.RNoData
		}
		r.fail(ctx, gen, reason, err)
		return err
	}

	if err := r.publishRecording(ctx, gen, blob); err != nil {
		return err
	}
	return nil
}

// finishEncoding stops the encoder, assembles the intermediate blob and
// releases all media resources regardless of the outcome.
func (r *Recorder) finishEncoding(ctx context.Context, enc encode.Encoder, col *encode.Collector) (encode.Blob, error) {
	stopErr := enc.Stop()
	blob, waitErr := col.Wait(ctx)

	r.mu.Lock()
	if r.sess.acq != nil {
		r.sess.acq.Release()
	}
	duration := r.sess.durationMs
	r.mu.Unlock()

	metrics.RecordingSeconds.Observe(float64(duration) / 1000)

	if waitErr != nil {
		return encode.Blob{}, waitErr
	}
	if stopErr != nil {
		return encode.Blob{}, fmt.Errorf("encoder stop: %w", stopErr)
	}
	return blob, nil
}

// Reset returns the recorder to idle from any state: releases all media
// resources, clears timers and restores the session to its initial shape.
// It never deletes the remote session; rollback happens only on failure.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
	r.machine.ForceIdle()
}

func (r *Recorder) resetLocked() {
	r.gen++
	r.teardownLocked()
	r.sess = session{}
}

// teardownLocked is the single cleanup routine invoked from every exit
// path: acquisition failure, stop, error and reset. Idempotent.
func (r *Recorder) teardownLocked() {
	r.stopTickerLocked()
	r.detector.Cancel()
	if r.sess.removeEnded != nil {
		r.sess.removeEnded()
		r.sess.removeEnded = nil
	}
	if r.sess.enc != nil {
		// Stop is idempotent; this also unblocks the collector drain.
		_ = r.sess.enc.Stop()
		r.sess.enc = nil
	}
	if r.sess.acq != nil {
		r.sess.acq.Release()
	}
}

// Close releases everything; the recorder is unusable afterwards only in
// the sense that a fresh Start begins a new session.
func (r *Recorder) Close() {
	r.Reset()
}

func (r *Recorder) sessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.id
}

func (r *Recorder) startTickerLocked() {
	stop := make(chan struct{})
	r.sess.stopTick = stop
	started := r.sess.startedAt
	interval := r.cfg.TickInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.mu.Lock()
				// Only the owning session advances; a leaked tick against a
				// newer session must not touch it.
				if r.sess.stopTick == stop {
					r.sess.durationMs = time.Since(started).Milliseconds()
				}
				r.mu.Unlock()
			}
		}
	}()
}

func (r *Recorder) stopTickerLocked() {
	if r.sess.stopTick != nil {
		close(r.sess.stopTick)
		r.sess.stopTick = nil
	}
}

func (r *Recorder) setProgress(pct float64) {
	r.mu.Lock()
	if pct > r.sess.progress {
		r.sess.progress = pct
	}
	r.mu.Unlock()
}

func (r *Recorder) warn(msg string) {
	r.mu.Lock()
	r.sess.warnings = append(r.sess.warnings, msg)
	r.mu.Unlock()
}

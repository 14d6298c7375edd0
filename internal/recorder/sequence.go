// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/besteffort"
	"github.com/reelcast/reelcast/internal/blobio"
	"github.com/reelcast/reelcast/internal/encode"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/publish"
	"github.com/reelcast/reelcast/internal/recorder/model"
	"github.com/reelcast/reelcast/internal/upload"
)

// publishRecording runs creating -> converting -> uploading -> completed.
// The remote session must exist before any upload; rollback is owed
// exactly when remoteID is assigned and a later step fails fatally.
func (r *Recorder) publishRecording(ctx context.Context, gen uint64, blob encode.Blob) error {
	logger := log.WithContext(ctx, r.logger)

	if !r.to(gen, model.PhaseCreating) {
		return errors.New("session was reset")
	}

	snap := r.Snapshot()
	r.mu.Lock()
	title := r.sess.title
	r.mu.Unlock()
	if title == "" {
		title = snap.ID
	}
	remote, err := r.deps.Publisher.Create(ctx, publish.CreateRequest{
		OrgID:      r.cfg.OrgID,
		FolderID:   r.cfg.FolderID,
		Title:      title,
		DurationMs: snap.DurationMs,
		Dimensions: snap.Dimensions,
		HasAudio:   snap.HasAudioTrack,
		Surface:    snap.Surface,
		MimeType:   blob.MimeType,
	})
	if err != nil {
		// Nothing remote exists yet: fatal, but no rollback owed.
		r.fail(ctx, gen, model.RCreateFailed, err)
		return fmt.Errorf("create remote session: %w", err)
	}
	r.mu.Lock()
	r.sess.remoteID = remote.ID
	r.mu.Unlock()

	if !r.to(gen, model.PhaseConverting) {
		return errors.New("session was reset")
	}

	intermediatePath := filepath.Join(r.cfg.WorkDir, snap.ID+intermediateExt(blob.MimeType))
	if err := blobio.WriteFile(intermediatePath, blob.Data); err != nil {
		r.fail(ctx, gen, model.RTranscodeFailed, err)
		return fmt.Errorf("stage intermediate: %w", err)
	}
	defer func() { _ = blobio.Remove(intermediatePath) }()

	result, err := r.deps.Transcoder.Transcode(ctx, intermediatePath, snap.ID, snap.HasAudioTrack, r.setProgress)
	if err != nil {
		r.fail(ctx, gen, model.RTranscodeFailed, err)
		return fmt.Errorf("transcode: %w", err)
	}
	defer func() { _ = blobio.Remove(result.Path) }()

	// Thumbnail extraction has no externally visible phase and is soft:
	// a missing thumbnail never fails the publish.
	thumb, err := r.deps.Thumbnails.Extract(ctx, result.Path, snap.Dimensions)
	if err != nil || len(thumb) == 0 {
		thumb = nil
		r.warn("thumbnail unavailable")
	}

	if !r.to(gen, model.PhaseUploading) {
		return errors.New("session was reset")
	}

	videoData, err := os.ReadFile(result.Path) // #nosec G304 -- path built from our work dir
	if err != nil {
		r.fail(ctx, gen, model.RUploadFailed, err)
		return fmt.Errorf("read deliverable: %w", err)
	}

	err = r.deps.Uploader.Upload(ctx, remote.ID, upload.Artifact{
		Kind:        upload.KindVideo,
		Destination: remote.Video,
		Data:        videoData,
		Filename:    filepath.Base(result.Path),
		ContentType: "video/mp4",
	}, r.setProgress)
	if err != nil {
		r.fail(ctx, gen, model.RUploadFailed, err)
		return fmt.Errorf("upload video: %w", err)
	}

	if thumb != nil {
		r.uploadThumbnail(ctx, remote.ID, thumb, logger)
	}

	if !r.to(gen, model.PhaseCompleted) {
		return errors.New("session was reset")
	}
	logger.Info().Str(log.FieldRemoteID, remote.ID).Msg("recording published")
	return nil
}

// uploadThumbnail is best-effort additive work: any failure warns and the
// operation still reports overall completion.
func (r *Recorder) uploadThumbnail(ctx context.Context, remoteID string, thumb []byte, logger zerolog.Logger) {
	dest, err := r.deps.Publisher.ThumbnailDestination(ctx, remoteID)
	if err == nil {
		err = r.deps.Uploader.Upload(ctx, remoteID, upload.Artifact{
			Kind:        upload.KindThumbnail,
			Destination: *dest,
			Data:        thumb,
			Filename:    "thumbnail.jpg",
			ContentType: "image/jpeg",
		}, nil)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("thumbnail upload failed, video remains published")
		r.warn("thumbnail upload failed")
	}
}

// fail moves the session to error. Rollback of the remote session runs iff
// an id had been assigned before the failing step, and is best-effort:
// its own failure is logged, never escalated.
func (r *Recorder) fail(ctx context.Context, gen uint64, reason model.ReasonCode, cause error) {
	logger := log.WithContext(ctx, r.logger)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.teardownLocked()
	r.sess.reason = reason
	r.sess.errMsg = cause.Error()
	remoteID := r.sess.remoteID
	r.sess.remoteID = ""
	r.mu.Unlock()

	if remoteID != "" {
		metrics.RollbacksTotal.Inc()
		besteffort.Run(logger, "rollback remote session", func(ctx context.Context) error {
			return r.deps.Publisher.Delete(ctx, remoteID)
		})
	}

	logger.Error().Err(cause).Str(log.FieldReason, string(reason)).Msg("recording failed")
	_ = r.machine.To(model.PhaseError)
}

// to performs a generation-checked transition; a stale sequence (the
// session was reset underneath it) abandons instead of mutating state.
// Progress is reported per stage, so every phase starts over at zero;
// monotonicity in setProgress holds only within a phase.
func (r *Recorder) to(gen uint64, phase model.Phase) bool {
	r.mu.Lock()
	stale := gen != r.gen
	r.mu.Unlock()
	if stale {
		return false
	}
	if r.machine.To(phase) != nil {
		return false
	}
	r.mu.Lock()
	if gen == r.gen {
		r.sess.progress = 0
	}
	r.mu.Unlock()
	return true
}

// intermediateExt derives the staging file extension from the blob type.
func intermediateExt(mimeType string) string {
	if strings.HasPrefix(mimeType, "video/mp4") {
		return ".mp4"
	}
	return ".webm"
}

// SPDX-License-Identifier: MIT

// Package upload transfers artifacts to their pre-signed destinations with
// streaming progress reporting.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/notify"
	"github.com/reelcast/reelcast/internal/publish"
)

// ErrEmptyPayload rejects a transfer of zero bytes outright.
var ErrEmptyPayload = errors.New("upload payload is empty")

// Kind tags an artifact.
type Kind string

const (
	KindVideo     Kind = "video"
	KindThumbnail Kind = "thumbnail"
)

// Artifact describes one transfer.
type Artifact struct {
	Kind        Kind
	Destination publish.Destination
	Data        []byte
	Filename    string
	ContentType string
}

// Coordinator performs progress-tracked multipart uploads. The video
// artifact additionally reports raw byte counts to the notification sink,
// independent of the UI progress percentage.
type Coordinator struct {
	http   *http.Client
	sink   *notify.Sink
	logger zerolog.Logger
}

// New builds a Coordinator; timeout bounds a whole transfer.
func New(sink *notify.Sink, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Coordinator{
		http:   &http.Client{Timeout: timeout},
		sink:   sink,
		logger: log.WithComponent("upload"),
	}
}

// Upload transfers one artifact. onProgress receives percent (0-100).
func (c *Coordinator) Upload(ctx context.Context, sessionID string, artifact Artifact, onProgress func(float64)) error {
	total := int64(len(artifact.Data))
	if total == 0 {
		return ErrEmptyPayload
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	progress := func(sent int64) {
		onProgress(float64(sent) / float64(total) * 100)
		if artifact.Kind == KindVideo {
			c.sink.Progress(ctx, sessionID, sent, total)
		}
	}

	body, contentType := c.multipartBody(artifact, progress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, artifact.Destination.URL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(artifact.Kind), "network_error").Inc()
		return fmt.Errorf("upload %s: %w", artifact.Kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.UploadsTotal.WithLabelValues(string(artifact.Kind), "rejected").Inc()
		return fmt.Errorf("upload %s: status %d: %s", artifact.Kind, resp.StatusCode, string(snippet))
	}

	// Completion tick with (total, total), regardless of tick rate limits.
	if artifact.Kind == KindVideo {
		c.sink.Progress(ctx, sessionID, total, total)
	}
	onProgress(100)

	metrics.UploadsTotal.WithLabelValues(string(artifact.Kind), "ok").Inc()
	metrics.UploadBytesTotal.WithLabelValues(string(artifact.Kind)).Add(float64(total))
	c.logger.Info().
		Str(log.FieldArtifact, string(artifact.Kind)).
		Int64(log.FieldBytes, total).
		Msg("upload complete")
	return nil
}

// multipartBody streams the destination's opaque fields followed by the
// file part, counting payload bytes through the progress callback.
func (c *Coordinator) multipartBody(artifact Artifact, progress func(sent int64)) (io.Reader, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			for key, value := range artifact.Destination.Fields {
				if err := writer.WriteField(key, value); err != nil {
					return err
				}
			}
			part, err := writer.CreateFormFile("file", artifact.Filename)
			if err != nil {
				return err
			}
			counted := &progressReader{data: artifact.Data, onAdvance: progress}
			if _, err := io.Copy(part, counted); err != nil {
				return err
			}
			return writer.Close()
		}()
		// Propagate assembly errors to the reading side.
		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType()
}

// progressReader reports cumulative bytes read of the file payload.
type progressReader struct {
	data      []byte
	off       int64
	onAdvance func(sent int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	if r.off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += int64(n)
	if r.onAdvance != nil {
		r.onAdvance(r.off)
	}
	return n, nil
}

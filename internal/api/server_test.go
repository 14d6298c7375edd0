// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/capture/capturetest"
	"github.com/reelcast/reelcast/internal/encode"
	"github.com/reelcast/reelcast/internal/encode/encodetest"
	"github.com/reelcast/reelcast/internal/publish"
	"github.com/reelcast/reelcast/internal/recorder"
	"github.com/reelcast/reelcast/internal/recorder/model"
	"github.com/reelcast/reelcast/internal/transcode"
	"github.com/reelcast/reelcast/internal/upload"
)

type stubTranscoder struct{ workDir string }

func (s stubTranscoder) Transcode(ctx context.Context, inputPath, sessionID string, hasAudio bool, onProgress func(float64)) (transcode.Result, error) {
	out := filepath.Join(s.workDir, sessionID+".mp4")
	if err := os.WriteFile(out, []byte("x"), 0o600); err != nil {
		return transcode.Result{}, err
	}
	return transcode.Result{Path: out, Size: 1}, nil
}

type stubThumbnailer struct{}

func (stubThumbnailer) Extract(ctx context.Context, videoPath string, fallback model.Dimensions) ([]byte, error) {
	return nil, nil
}

type stubPublisher struct{}

func (stubPublisher) Create(ctx context.Context, req publish.CreateRequest) (*publish.Session, error) {
	return &publish.Session{ID: "remote-1"}, nil
}

func (stubPublisher) ThumbnailDestination(ctx context.Context, sessionID string) (*publish.Destination, error) {
	return &publish.Destination{}, nil
}

func (stubPublisher) Delete(ctx context.Context, sessionID string) error { return nil }

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, sessionID string, artifact upload.Artifact, onProgress func(float64)) error {
	return nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	workDir := t.TempDir()
	rec := recorder.New(recorder.Deps{
		Capture: capture.NewManager(&capturetest.Provider{}),
		Encoders: &encodetest.Factory{
			Prepare: func(e *encodetest.Encoder) {
				e.Pending = []encode.Chunk{{Data: []byte("c"), MimeType: e.MimeType}}
			},
		},
		Transcoder: stubTranscoder{workDir: workDir},
		Thumbnails: stubThumbnailer{},
		Publisher:  stubPublisher{},
		Uploader:   stubUploader{},
	}, recorder.Config{WorkDir: workDir, TickInterval: 5 * time.Millisecond})
	t.Cleanup(rec.Close)
	return New(rec, opts)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStartStopStatusRoundTrip(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	rr := do(h, http.MethodPost, "/api/v1/recordings/start", `{"mode":"window","microphone":true}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"phase":"recording"`)

	rr = do(h, http.MethodPost, "/api/v1/recordings/stop", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		rr := do(h, http.MethodGet, "/api/v1/recordings/status", "")
		return strings.Contains(rr.Body.String(), `"phase":"completed"`)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartRejectsDuplicate(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	rr := do(h, http.MethodPost, "/api/v1/recordings/start", `{"mode":"tab"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(h, http.MethodPost, "/api/v1/recordings/start", `{"mode":"tab"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStartRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, Options{})
	rr := do(s.Handler(), http.MethodPost, "/api/v1/recordings/start", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStartRejectsInvalidMode(t *testing.T) {
	s := newTestServer(t, Options{})
	rr := do(s.Handler(), http.MethodPost, "/api/v1/recordings/start", `{"mode":"hologram"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestResetReturnsToIdle(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	rr := do(h, http.MethodPost, "/api/v1/recordings/start", `{"mode":"fullscreen"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(h, http.MethodPost, "/api/v1/recordings/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"phase":"idle"`)
}

func TestHealthReportsPhase(t *testing.T) {
	s := newTestServer(t, Options{})
	rr := do(s.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"phase":"idle"`)
}

func TestRequestIDIsEchoedAndPreserved(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	rr := do(h, http.MethodGet, "/api/v1/recordings/status", "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/status", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, "req-42", rec2.Header().Get("X-Request-Id"))
}

func TestRateLimitKicksIn(t *testing.T) {
	s := newTestServer(t, Options{RateLimit: 2, RateWindow: time.Minute})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rr := do(h, http.MethodGet, "/api/v1/recordings/status", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(h, http.MethodGet, "/api/v1/recordings/status", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	s := newTestServer(t, Options{})
	rr := do(s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

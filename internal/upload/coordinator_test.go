// SPDX-License-Identifier: MIT

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcast/reelcast/internal/notify"
	"github.com/reelcast/reelcast/internal/publish"
)

func TestUploadSendsFieldsAndPayload(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "signed-key", r.FormValue("key"))
		assert.Equal(t, "policy-blob", r.FormValue("policy"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "video.mp4", header.Filename)

		var buf bytes.Buffer
		_, err = buf.ReadFrom(file)
		require.NoError(t, err)
		assert.Equal(t, payload, buf.Bytes())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(notify.New("", 4), time.Minute)
	var last float64
	err := c.Upload(context.Background(), "sess-1", Artifact{
		Kind: KindVideo,
		Destination: publish.Destination{
			URL:    srv.URL,
			Fields: map[string]string{"key": "signed-key", "policy": "policy-blob"},
		},
		Data:     payload,
		Filename: "video.mp4",
	}, func(pct float64) {
		assert.GreaterOrEqual(t, pct, last, "progress must be monotonic")
		last = pct
	})
	require.NoError(t, err)
	assert.Equal(t, float64(100), last)
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	c := New(notify.New("", 4), time.Minute)
	err := c.Upload(context.Background(), "sess-1", Artifact{Kind: KindVideo}, nil)
	require.ErrorIs(t, err, ErrEmptyPayload)
}

func TestUploadRejectsOnStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(notify.New("", 4), time.Minute)
	err := c.Upload(context.Background(), "sess-1", Artifact{
		Kind:        KindThumbnail,
		Destination: publish.Destination{URL: srv.URL},
		Data:        []byte("jpg"),
		Filename:    "thumb.jpg",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "access denied")
}

func TestUploadRejectsOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(notify.New("", 4), time.Minute)
	err := c.Upload(context.Background(), "sess-1", Artifact{
		Kind:        KindVideo,
		Destination: publish.Destination{URL: srv.URL},
		Data:        []byte("data"),
		Filename:    "video.mp4",
	}, nil)
	require.Error(t, err)
}

func TestVideoUploadNotifiesSinkWithFinalTick(t *testing.T) {
	type tickMsg struct {
		SessionID  string `json:"sessionId"`
		BytesSent  int64  `json:"bytesSent"`
		BytesTotal int64  `json:"bytesTotal"`
	}
	var mu sync.Mutex
	var ticks []tickMsg
	sinkSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tk tickMsg
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tk))
		mu.Lock()
		ticks = append(ticks, tk)
		mu.Unlock()
	}))
	defer sinkSrv.Close()

	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = bytes.NewBuffer(nil).ReadFrom(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer uploadSrv.Close()

	payload := bytes.Repeat([]byte("v"), 1024)
	c := New(notify.New(sinkSrv.URL, 1000), time.Minute)
	err := c.Upload(context.Background(), "sess-9", Artifact{
		Kind:        KindVideo,
		Destination: publish.Destination{URL: uploadSrv.URL},
		Data:        payload,
		Filename:    "video.mp4",
	}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, ticks)
	final := ticks[len(ticks)-1]
	assert.Equal(t, "sess-9", final.SessionID)
	assert.Equal(t, int64(len(payload)), final.BytesSent)
	assert.Equal(t, int64(len(payload)), final.BytesTotal)
}

func TestThumbnailUploadDoesNotNotifySink(t *testing.T) {
	sinkCalls := 0
	sinkSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sinkCalls++
	}))
	defer sinkSrv.Close()

	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer uploadSrv.Close()

	c := New(notify.New(sinkSrv.URL, 1000), time.Minute)
	err := c.Upload(context.Background(), "sess-9", Artifact{
		Kind:        KindThumbnail,
		Destination: publish.Destination{URL: uploadSrv.URL},
		Data:        []byte("jpg"),
		Filename:    "thumb.jpg",
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, sinkCalls)
}

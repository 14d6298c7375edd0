// SPDX-License-Identifier: MIT

package surface

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/capture/capturetest"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

func TestClassifyPrefersStructuredField(t *testing.T) {
	kind, ok := Classify(capture.Settings{DisplaySurface: "monitor"}, "tab of something", DefaultLabelRules)
	require.True(t, ok)
	assert.Equal(t, model.SurfaceFullscreen, kind)
}

func TestClassifyFallsBackToLabel(t *testing.T) {
	cases := []struct {
		label string
		want  model.SurfaceKind
	}{
		{"Primary Screen", model.SurfaceFullscreen},
		{"My Display 2", model.SurfaceFullscreen},
		{"Application Window - Editor", model.SurfaceWindow},
		{"Browser Tab: docs", model.SurfaceTab},
	}
	for _, tc := range cases {
		kind, ok := Classify(capture.Settings{}, tc.label, DefaultLabelRules)
		require.True(t, ok, tc.label)
		assert.Equal(t, tc.want, kind, tc.label)
	}
}

func TestClassifyInconclusive(t *testing.T) {
	_, ok := Classify(capture.Settings{}, "media-source-42", DefaultLabelRules)
	assert.False(t, ok)
}

func TestDetectorNotifiesOnceOnChange(t *testing.T) {
	// Requested window mode, platform granted a monitor: the detector must
	// reclassify to fullscreen within the retry window and notify exactly once.
	track := capturetest.NewTrack(capture.KindVideo, "", capture.Settings{})
	d := New(Config{RetryOffsets: []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 40 * time.Millisecond}})

	var mu sync.Mutex
	var changes []model.SurfaceKind
	d.Begin(track, model.SurfaceWindow, func(k model.SurfaceKind) {
		mu.Lock()
		changes = append(changes, k)
		mu.Unlock()
	})
	t.Cleanup(d.Cancel)

	// Metadata arrives late, after the immediate check already ran.
	track.SetSettings(capture.Settings{DisplaySurface: "monitor"})

	require.Eventually(t, func() bool {
		return d.Current() == model.SurfaceFullscreen
	}, time.Second, 5*time.Millisecond)

	// Let the remaining timers fire; they must not re-notify.
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []model.SurfaceKind{model.SurfaceFullscreen}, changes)
}

func TestDetectorRechecksOnUnmute(t *testing.T) {
	track := capturetest.NewTrack(capture.KindVideo, "", capture.Settings{})
	d := New(Config{RetryOffsets: []time.Duration{}})

	notified := make(chan model.SurfaceKind, 1)
	d.Begin(track, model.SurfaceWindow, func(k model.SurfaceKind) { notified <- k })
	t.Cleanup(d.Cancel)

	track.SetLabel("Shared Browser Tab")
	track.FireUnmute()

	select {
	case k := <-notified:
		assert.Equal(t, model.SurfaceTab, k)
	case <-time.After(time.Second):
		t.Fatal("expected reclassification on unmute")
	}
}

func TestDetectorStaleVersionNoops(t *testing.T) {
	// Cycle N's timers must not mutate state after cycle N+1 started.
	track := capturetest.NewTrack(capture.KindVideo, "", capture.Settings{})
	d := New(Config{RetryOffsets: []time.Duration{30 * time.Millisecond}})

	var mu sync.Mutex
	var changes []model.SurfaceKind
	record := func(k model.SurfaceKind) {
		mu.Lock()
		changes = append(changes, k)
		mu.Unlock()
	}

	d.Begin(track, model.SurfaceWindow, record)
	// Supersede immediately; the first cycle's 30ms timer is now stale.
	track2 := capturetest.NewTrack(capture.KindVideo, "", capture.Settings{})
	d.Begin(track2, model.SurfaceWindow, record)
	t.Cleanup(d.Cancel)

	track.SetSettings(capture.Settings{DisplaySurface: "monitor"})
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, changes, "stale cycle must not notify")
	assert.Equal(t, model.SurfaceWindow, d.Current())
}

func TestCancelRemovesTimersAndListeners(t *testing.T) {
	track := capturetest.NewTrack(capture.KindVideo, "", capture.Settings{})
	d := New(Config{RetryOffsets: []time.Duration{10 * time.Millisecond}})

	d.Begin(track, model.SurfaceWindow, func(model.SurfaceKind) {
		t.Error("callback after cancel")
	})
	require.Equal(t, 2, track.ListenerCount())

	d.Cancel()
	assert.Equal(t, 0, track.ListenerCount(), "cancel must remove listeners together with timers")

	track.SetSettings(capture.Settings{DisplaySurface: "monitor"})
	track.FireUnmute()
	time.Sleep(30 * time.Millisecond)
}

// SPDX-License-Identifier: MIT

package capture_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/capture/capturetest"
)

func TestAcquireDisplayWithMicrophone(t *testing.T) {
	provider := &capturetest.Provider{}
	m := capture.NewManager(provider)

	acq, err := m.Acquire(context.Background(), capture.Request{
		Mode:               capture.ModeWindow,
		Microphone:         true,
		MicrophoneDeviceID: "mic-1",
	})
	require.NoError(t, err)
	t.Cleanup(acq.Release)

	require.True(t, acq.HasAudio)
	require.NotNil(t, acq.Primary)
	require.Len(t, acq.Mixed.VideoTracks(), 1)
	require.Len(t, acq.Mixed.AudioTracks(), 1)

	require.Len(t, provider.DisplayCalls, 1)
	require.Equal(t, "window", provider.DisplayCalls[0].PreferredSurface)
	require.Len(t, provider.MicrophoneCalls, 1)
	require.True(t, provider.MicrophoneCalls[0].EchoCancellation)
	require.True(t, provider.MicrophoneCalls[0].NoiseSuppression)
}

func TestAcquireRetriesWithoutSurfaceHint(t *testing.T) {
	provider := &capturetest.Provider{}
	provider.DisplayFunc = func(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error) {
		if req.PreferredSurface != "" {
			return nil, capture.ErrOverconstrained
		}
		return capture.NewStream(capturetest.NewTrack(capture.KindVideo, "Screen", capture.Settings{Width: 1920, Height: 1080})), nil
	}
	m := capture.NewManager(provider)

	acq, err := m.Acquire(context.Background(), capture.Request{Mode: capture.ModeFullscreen})
	require.NoError(t, err)
	t.Cleanup(acq.Release)

	require.Len(t, provider.DisplayCalls, 2)
	require.Equal(t, "monitor", provider.DisplayCalls[0].PreferredSurface)
	require.Empty(t, provider.DisplayCalls[1].PreferredSurface)
}

func TestAcquireMicrophoneDenialDegradesToVideoOnly(t *testing.T) {
	provider := &capturetest.Provider{}
	provider.MicrophoneFunc = func(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error) {
		return nil, capture.ErrPermissionDenied
	}
	m := capture.NewManager(provider)

	acq, err := m.Acquire(context.Background(), capture.Request{
		Mode:       capture.ModeTab,
		Microphone: true,
	})
	require.NoError(t, err)
	t.Cleanup(acq.Release)

	require.False(t, acq.HasAudio)
	require.Empty(t, acq.Mixed.AudioTracks())
	require.NotEmpty(t, acq.Warnings)
}

func TestAcquireReleasesOnMicrophoneHardFailure(t *testing.T) {
	videoTrack := capturetest.NewTrack(capture.KindVideo, "Screen", capture.Settings{})
	provider := &capturetest.Provider{}
	provider.DisplayFunc = func(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error) {
		return capture.NewStream(videoTrack), nil
	}
	provider.MicrophoneFunc = func(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error) {
		return nil, capture.ErrDeviceBusy
	}
	m := capture.NewManager(provider)

	_, err := m.Acquire(context.Background(), capture.Request{
		Mode:       capture.ModeWindow,
		Microphone: true,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, capture.ErrDeviceBusy)
	require.True(t, videoTrack.Stopped(), "partial resources must be released on failure")
}

func TestAcquireCameraRequiresDeviceID(t *testing.T) {
	m := capture.NewManager(&capturetest.Provider{})
	_, err := m.Acquire(context.Background(), capture.Request{Mode: capture.ModeCamera})
	require.Error(t, err)
}

func TestReleaseIsIdempotent(t *testing.T) {
	track := capturetest.NewTrack(capture.KindVideo, "Screen", capture.Settings{})
	provider := &capturetest.Provider{}
	provider.DisplayFunc = func(ctx context.Context, req capture.DisplayRequest) (*capture.Stream, error) {
		return capture.NewStream(track), nil
	}
	m := capture.NewManager(provider)

	acq, err := m.Acquire(context.Background(), capture.Request{Mode: capture.ModeWindow})
	require.NoError(t, err)

	acq.Release()
	acq.Release()
	acq.Release()
	require.Equal(t, 1, track.StopCount(), "tracks must never be double-stopped")
}

// SPDX-License-Identifier: MIT

package transcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsWithAudio(t *testing.T) {
	args := buildArgs("/tmp/in.webm", "/tmp/out.mp4", true)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /tmp/in.webm")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-movflags +faststart")
	assert.Contains(t, joined, "-progress pipe:1")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
	assert.NotContains(t, args, "-an")
}

func TestBuildArgsWithoutAudio(t *testing.T) {
	args := buildArgs("/tmp/in.webm", "/tmp/out.mp4", false)
	assert.Contains(t, args, "-an")
	assert.NotContains(t, strings.Join(args, " "), "-c:a")
}

func TestParseProgressScalesAgainstTotal(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"frame=10",
		"out_time_us=2500000",
		"progress=continue",
		"out_time_us=5000000",
		"progress=continue",
		"out_time_us=10000000",
		"progress=end",
	}, "\n"))

	var got []float64
	parseProgress(input, 10_000_000, func(p float64) { got = append(got, p) })
	require.Equal(t, []float64{25, 50, 100}, got)
}

func TestParseProgressMonotonicAndClamped(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"out_time_us=9000000",
		"out_time_us=4000000", // backwards tick must be ignored
		"out_time_us=20000000",
		"progress=end",
	}, "\n"))

	var got []float64
	parseProgress(input, 10_000_000, func(p float64) { got = append(got, p) })
	require.Equal(t, []float64{90, 100}, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestParseProgressUnknownTotalEmitsOnlyEnd(t *testing.T) {
	input := strings.NewReader("out_time_us=5000000\nprogress=end\n")
	var got []float64
	parseProgress(input, 0, func(p float64) { got = append(got, p) })
	require.Equal(t, []float64{100}, got)
}

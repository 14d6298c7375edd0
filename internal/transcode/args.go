// SPDX-License-Identifier: MIT

package transcode

import "fmt"

// buildArgs assembles the ffmpeg invocation converting the intermediate
// recording into the deliverable MP4. Progress goes to stdout via
// -progress pipe:1 so stderr stays reserved for diagnostics.
func buildArgs(inputPath, outputPath string, hasAudio bool) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		// Keyframe-safe even dimensions; intermediate captures may be odd-sized.
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
	}
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		outputPath,
	)
	return args
}

// probeArgs assembles the ffprobe invocation returning the container
// duration in seconds on stdout.
func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// probeDimsArgs assembles the ffprobe invocation returning "WxH" for the
// first video stream.
func probeDimsArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	}
}

// outputName derives the deliverable filename from a session id.
func outputName(sessionID string) string {
	return fmt.Sprintf("%s.mp4", sessionID)
}

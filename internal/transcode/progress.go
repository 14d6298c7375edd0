// SPDX-License-Identifier: MIT

package transcode

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// parseProgress consumes ffmpeg's key=value -progress stream and reports
// fractional progress in percent against totalUS microseconds. Emits 100
// exactly once when the stream reports end. Unknown totals report nothing;
// the caller's progress bar simply stays at its last value.
func parseProgress(r io.Reader, totalUS int64, onProgress func(float64)) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	scanner := bufio.NewScanner(r)
	last := -1.0
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if totalUS <= 0 {
				continue
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			pct := float64(us) / float64(totalUS) * 100
			if pct > 100 {
				pct = 100
			}
			// Only report forward movement to keep the bar monotonic.
			if pct > last {
				last = pct
				onProgress(pct)
			}
		case "progress":
			if value == "end" && last < 100 {
				last = 100
				onProgress(100)
			}
		}
	}
}

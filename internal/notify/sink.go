// SPDX-License-Identifier: MIT

// Package notify reports raw upload byte counts to the progress
// notification sink. Calls are fire-and-forget: the sink serves a separate
// UI surface and must never affect the pipeline's outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/reelcast/reelcast/internal/log"
)

// Sink posts progress ticks for a session id.
type Sink struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

type tick struct {
	SessionID  string `json:"sessionId"`
	BytesSent  int64  `json:"bytesSent"`
	BytesTotal int64  `json:"bytesTotal"`
}

// New builds a Sink limited to ticksPerSec intermediate updates. The final
// (total, total) tick always goes out regardless of the limiter.
func New(endpoint string, ticksPerSec float64) *Sink {
	if ticksPerSec <= 0 {
		ticksPerSec = 4
	}
	return &Sink{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(ticksPerSec), 1),
		logger:   log.WithComponent("notify"),
	}
}

// Progress reports bytes sent of total for sessionID. Intermediate ticks
// beyond the rate limit are dropped; errors are logged and swallowed.
func (s *Sink) Progress(ctx context.Context, sessionID string, sent, total int64) {
	if s == nil || s.endpoint == "" {
		return
	}
	final := total > 0 && sent >= total
	if !final && !s.limiter.Allow() {
		return
	}

	payload, err := json.Marshal(tick{SessionID: sessionID, BytesSent: sent, BytesTotal: total})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str(log.FieldSessionID, sessionID).Msg("progress notification dropped")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug().Str(log.FieldSessionID, sessionID).
			Str("status", fmt.Sprintf("%d", resp.StatusCode)).
			Msg("progress notification rejected")
	}
}

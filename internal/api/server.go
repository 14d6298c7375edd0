// SPDX-License-Identifier: MIT

// Package api exposes the recording pipeline over HTTP: start/stop/reset
// plus status, health and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/recorder"
)

// Options tunes the HTTP surface.
type Options struct {
	// RateLimit is the number of requests allowed per client IP per RateWindow.
	// Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Server serves the recording control API.
type Server struct {
	rec    *recorder.Recorder
	opts   Options
	logger zerolog.Logger
}

// New builds a Server around the recorder.
func New(rec *recorder.Recorder, opts Options) *Server {
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Server{
		rec:    rec,
		opts:   opts,
		logger: log.WithComponent("api"),
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recordings", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.Limit(
				s.opts.RateLimit,
				s.opts.RateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				}),
			))
		}
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/reset", s.handleReset)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// requestID stamps every request with an id carried through logs.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := log.WithContext(r.Context(), s.logger)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"phase":  string(s.rec.Phase()),
	})
}

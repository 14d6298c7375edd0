// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/recorder"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStart begins a new recording. 409 while one is active.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req recorder.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if err := s.rec.Start(r.Context(), req); err != nil {
		if errors.Is(err, recorder.ErrBusy) {
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, s.rec.Snapshot())
}

// handleStop ends the recording and kicks off the publish sequence. The
// sequence (transcode, uploads) can run for a while, so the handler
// detaches it and the client follows along via the status endpoint.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	// Keep log fields but outlive the request.
	ctx := context.WithoutCancel(r.Context())
	logger := log.WithContext(ctx, s.logger)
	go func() {
		if err := s.rec.Stop(ctx); err != nil {
			logger.Warn().Err(err).Msg("stop sequence failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, s.rec.Snapshot())
}

// handleReset discards the session from any state. It never touches the
// remote service.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.rec.Reset()
	writeJSON(w, http.StatusOK, s.rec.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.Snapshot())
}

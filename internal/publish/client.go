// SPDX-License-Identifier: MIT

// Package publish talks to the remote session service: it creates a session
// record with pre-signed upload destinations and deletes it again on
// rollback.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

// ErrNotConfigured is returned when no base URL was configured.
var ErrNotConfigured = errors.New("publish service not configured")

// Destination is a pre-signed upload target: an opaque URL plus form fields
// that authorize a direct upload without further authentication.
type Destination struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Session is the remote record created for one recording.
type Session struct {
	ID    string      `json:"id"`
	Video Destination `json:"video"`
}

// CreateRequest carries the technical metadata of a finished recording.
type CreateRequest struct {
	OrgID      string            `json:"orgId,omitempty"`
	FolderID   string            `json:"folderId,omitempty"`
	Title      string            `json:"title"`
	DurationMs int64             `json:"durationMs"`
	Dimensions model.Dimensions  `json:"dimensions"`
	HasAudio   bool              `json:"hasAudio"`
	Surface    model.SurfaceKind `json:"surfaceKind"`
	MimeType   string            `json:"mimeType"`
}

// API is the remote session service boundary consumed by the recorder.
type API interface {
	Create(ctx context.Context, req CreateRequest) (*Session, error)
	ThumbnailDestination(ctx context.Context, sessionID string) (*Destination, error)
	Delete(ctx context.Context, sessionID string) error
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient builds a Client; timeout bounds every request.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: timeout},
		logger:   log.WithComponent("publish"),
	}
}

// Create registers the session and returns its id and pre-signed video
// destination.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("create session: response carries no id")
	}
	c.logger.Info().Str(log.FieldRemoteID, session.ID).Msg("remote session created")
	return &session, nil
}

// ThumbnailDestination issues a pre-signed destination for the thumbnail
// artifact of an existing session.
func (c *Client) ThumbnailDestination(ctx context.Context, sessionID string) (*Destination, error) {
	var dest Destination
	path := fmt.Sprintf("/v1/sessions/%s/thumbnail-destination", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodPost, path, nil, &dest); err != nil {
		return nil, fmt.Errorf("thumbnail destination: %w", err)
	}
	return &dest, nil
}

// Delete removes the session record by id (rollback).
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/v1/sessions/%s", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.logger.Info().Str(log.FieldRemoteID, sessionID).Msg("remote session deleted")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

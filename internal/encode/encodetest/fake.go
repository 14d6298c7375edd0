// SPDX-License-Identifier: MIT

// Package encodetest provides a scriptable encoder fake.
package encodetest

import (
	"sync"
	"time"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/encode"
)

// Encoder is a controllable encode.Encoder.
type Encoder struct {
	mu       sync.Mutex
	chunks   chan encode.Chunk
	err      error
	started  bool
	stopped  bool
	MimeType string

	// StartErr, when set, fails Start.
	StartErr error
	// Pending chunks are emitted when Stop is called (simulating the final
	// flush); Emit pushes chunks live instead.
	Pending []encode.Chunk
}

// New builds a fake encoder for the given mime type.
func New(mimeType string) *Encoder {
	return &Encoder{
		chunks:   make(chan encode.Chunk, 64),
		MimeType: mimeType,
	}
}

func (e *Encoder) Start(interval time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	e.started = true
	return nil
}

// Emit pushes a chunk while recording.
func (e *Encoder) Emit(data []byte) {
	e.chunks <- encode.Chunk{Data: data, MimeType: e.MimeType}
}

// Fail marks the encoder as failed; the error surfaces via Err after Stop.
func (e *Encoder) Fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *Encoder) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	pending := e.Pending
	e.mu.Unlock()

	for _, chunk := range pending {
		e.chunks <- chunk
	}
	close(e.chunks)
	return nil
}

func (e *Encoder) Chunks() <-chan encode.Chunk { return e.chunks }

func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Started reports whether Start ran.
func (e *Encoder) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Factory builds fake encoders and records the negotiated type.
type Factory struct {
	mu        sync.Mutex
	Supported []string
	Encoders  []*Encoder
	// Prepare, when set, is applied to each new encoder before use.
	Prepare func(*Encoder)
	// NewErr, when set, fails New.
	NewErr error
}

func (f *Factory) TypeSupported(mimeType string) bool {
	if len(f.Supported) == 0 {
		return true
	}
	for _, t := range f.Supported {
		if t == mimeType {
			return true
		}
	}
	return false
}

func (f *Factory) New(stream *capture.Stream, mimeType string) (encode.Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	enc := New(mimeType)
	if f.Prepare != nil {
		f.Prepare(enc)
	}
	f.Encoders = append(f.Encoders, enc)
	return enc, nil
}

// Last returns the most recently created encoder.
func (f *Factory) Last() *Encoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Encoders) == 0 {
		return nil
	}
	return f.Encoders[len(f.Encoders)-1]
}

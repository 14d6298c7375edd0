// SPDX-License-Identifier: MIT

// Package encode drives the platform's live encoder and collects the
// chunks it emits into one intermediate blob.
package encode

import (
	"errors"
	"time"

	"github.com/reelcast/reelcast/internal/capture"
)

// ErrNoData is returned when a stop produced zero chunks.
var ErrNoData = errors.New("no recorded data")

// ErrNoSupportedType is returned when no candidate encoding is supported.
var ErrNoSupportedType = errors.New("no supported encoding type")

// DefaultChunkInterval bounds the gap between emitted chunks so partial
// data survives abnormal termination.
const DefaultChunkInterval = time.Second

// preferredTypes is the descending-preference list of codec/container
// candidates for the intermediate recording.
var preferredTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/webm",
	"video/mp4",
}

// SelectMimeType walks the preference list and returns the first type the
// encoder supports.
func SelectMimeType(supported func(mimeType string) bool) (string, error) {
	for _, t := range preferredTypes {
		if supported(t) {
			return t, nil
		}
	}
	return "", ErrNoSupportedType
}

// Chunk is one unit of encoded output.
type Chunk struct {
	Data     []byte
	MimeType string
}

// Blob is the assembled intermediate recording, typed by the first chunk.
type Blob struct {
	Data     []byte
	MimeType string
}

// Encoder is the platform live-encoder boundary. Start begins emission on
// the Chunks channel; Stop flushes and closes it and must be safe to call
// more than once. After Chunks is closed, Err reports the terminal encoder
// error, if any.
type Encoder interface {
	Start(interval time.Duration) error
	Stop() error
	Chunks() <-chan Chunk
	Err() error
}

// Factory builds an encoder for a mixed stream and negotiated mime type.
// TypeSupported answers SelectMimeType probes.
type Factory interface {
	TypeSupported(mimeType string) bool
	New(stream *capture.Stream, mimeType string) (Encoder, error)
}

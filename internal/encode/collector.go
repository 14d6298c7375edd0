// SPDX-License-Identifier: MIT

package encode

import (
	"context"
	"fmt"
	"sync"
)

// Collector drains an encoder's chunk channel into an ordered in-memory
// list and assembles the final blob on stop.
type Collector struct {
	mu     sync.Mutex
	chunks []Chunk
	err    error
	done   chan struct{}
}

// NewCollector starts draining enc immediately.
func NewCollector(enc Encoder) *Collector {
	c := &Collector{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for chunk := range enc.Chunks() {
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk)
			c.mu.Unlock()
		}
		c.mu.Lock()
		c.err = enc.Err()
		c.mu.Unlock()
	}()
	return c
}

// Wait blocks until the encoder's channel closed, then assembles all chunks
// into one blob typed by the first chunk. Zero chunks fail with ErrNoData.
func (c *Collector) Wait(ctx context.Context) (Blob, error) {
	select {
	case <-ctx.Done():
		return Blob{}, ctx.Err()
	case <-c.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return Blob{}, fmt.Errorf("encoder failed: %w", c.err)
	}
	if len(c.chunks) == 0 {
		return Blob{}, ErrNoData
	}

	total := 0
	for _, chunk := range c.chunks {
		total += len(chunk.Data)
	}
	data := make([]byte, 0, total)
	for _, chunk := range c.chunks {
		data = append(data, chunk.Data...)
	}
	return Blob{Data: data, MimeType: c.chunks[0].MimeType}, nil
}

// Len reports the number of chunks collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

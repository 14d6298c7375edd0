// SPDX-License-Identifier: MIT

// Package blobio writes pipeline artifacts to the work directory with
// atomic, durable semantics: a crash mid-write never leaves a truncated
// intermediate or deliverable file behind for a later step to pick up.
package blobio

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFile atomically writes data to path (fsync before rename).
func WriteFile(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// Remove deletes an artifact, tolerating a file that is already gone.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

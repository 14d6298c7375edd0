// SPDX-License-Identifier: MIT

// Package besteffort runs side-effecting cleanup operations whose failure
// must never propagate. The canonical user is remote-session rollback: a
// failed delete must not mask the error that triggered it.
package besteffort

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a best-effort operation that received an already
// cancelled or unbounded context.
const DefaultTimeout = 10 * time.Second

// Run executes fn and swallows its error, logging it at warn level.
// The operation gets a detached, bounded context so that it still runs
// when the caller's context is already cancelled.
func Run(logger zerolog.Logger, op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Warn().Err(err).Str("op", op).Msg("best-effort operation failed")
		return
	}
	logger.Debug().Str("op", op).Msg("best-effort operation done")
}

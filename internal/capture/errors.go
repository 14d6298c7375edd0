// SPDX-License-Identifier: MIT

package capture

import "errors"

var (
	// ErrPermissionDenied means the user or platform refused the capture grant.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrOverconstrained means the provider rejected optional hints; a retry
	// with baseline hints may succeed.
	ErrOverconstrained = errors.New("capture constraints not satisfiable")
	// ErrDeviceBusy means the requested device is held by another consumer.
	ErrDeviceBusy = errors.New("capture device busy")
	// ErrNoVideoTrack means acquisition produced a stream without video.
	ErrNoVideoTrack = errors.New("acquired stream has no video track")
)

// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldRemoteID  = "remote_session_id"

	// Process / pipeline fields
	FieldComponent = "component"
	FieldOldPhase  = "old_phase"
	FieldNewPhase  = "new_phase"
	FieldReason    = "reason"

	// Media fields
	FieldMimeType = "mime_type"
	FieldSurface  = "surface"
	FieldDevice   = "device"

	// Transfer fields
	FieldArtifact = "artifact"
	FieldBytes    = "bytes"
	FieldPath     = "path"
)

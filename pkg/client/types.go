package client

import "github.com/CodeYard/DevSession/backend/internal/shared/types"

// Wire types the facade surfaces, aliased so consumers outside the
// module can name them.
type (
	Event       = types.Event
	EventType   = types.EventType
	Stream      = types.Stream
	EntryInfo   = types.EntryInfo
	StatInfo    = types.StatInfo
	SessionInfo = types.SessionInfo
)

// Event types observable through On.
const (
	EventServerReady      = types.EventServerReady
	EventFileChange       = types.EventFileChange
	EventProcessOutput    = types.EventProcessOutput
	EventProcessCompleted = types.EventProcessCompleted
	EventTerminalOutput   = types.EventTerminalOutput
	EventTerminalClosed   = types.EventTerminalClosed
	EventPreviewReady     = types.EventPreviewReady
	EventRefreshPreview   = types.EventRefreshPreview
)

// Stream tags on process output chunks.
const (
	StreamStdout = types.StreamStdout
	StreamStderr = types.StreamStderr
)

// IsNotFound reports whether err carries the backend's not_found code.
func IsNotFound(err error) bool { return types.IsNotFound(err) }

// IsInvalidArgument reports whether err carries the backend's
// invalid_argument code.
func IsInvalidArgument(err error) bool { return types.IsInvalidArgument(err) }

// IsTransport reports whether err is a transport failure: an
// unreachable backend, a dropped connection, or an open circuit.
func IsTransport(err error) bool { return types.CodeOf(err) == types.ErrTransport }

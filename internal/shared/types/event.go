package types

import "time"

// EventType discriminates push messages on the event channel
type EventType string

const (
	EventServerReady      EventType = "server-ready"
	EventFileChange       EventType = "file-change"
	EventProcessOutput    EventType = "process-output"
	EventProcessCompleted EventType = "process-completed"
	EventTerminalOutput   EventType = "terminal-output"
	EventTerminalClosed   EventType = "terminal-closed"
	EventPreviewReady     EventType = "preview-ready"
	EventRefreshPreview   EventType = "refresh-preview"
)

// Stream tags process output with its originating descriptor
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Event is a transient push message scoped to one session. Events are
// relayed to every client connected to the owning session and never
// persisted. The payload is flat so each type-specific field rides
// alongside the discriminator.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId"`
	Path       string    `json:"path,omitempty"`
	ProcessID  string    `json:"processId,omitempty"`
	Output     string    `json:"output,omitempty"`
	Stream     Stream    `json:"stream,omitempty"`
	ExitCode   *int      `json:"exitCode,omitempty"`
	TerminalID string    `json:"termId,omitempty"`
	Data       string    `json:"data,omitempty"`
	URL        string    `json:"url,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"`
}

// NewServerReadyEvent signals the event channel is established
func NewServerReadyEvent(sessionID string) Event {
	return Event{Type: EventServerReady, SessionID: sessionID}
}

// NewFileChangeEvent signals a write under the session root
func NewFileChangeEvent(sessionID, path string) Event {
	return Event{Type: EventFileChange, SessionID: sessionID, Path: path}
}

// NewProcessOutputEvent carries one stdout/stderr chunk
func NewProcessOutputEvent(sessionID, processID, output string, stream Stream) Event {
	return Event{
		Type:      EventProcessOutput,
		SessionID: sessionID,
		ProcessID: processID,
		Output:    output,
		Stream:    stream,
	}
}

// NewProcessCompletedEvent carries the final exit code of a spawn
func NewProcessCompletedEvent(sessionID, processID string, exitCode int) Event {
	return Event{
		Type:      EventProcessCompleted,
		SessionID: sessionID,
		ProcessID: processID,
		ExitCode:  &exitCode,
	}
}

// NewTerminalOutputEvent carries one PTY output chunk
func NewTerminalOutputEvent(sessionID, terminalID, data string) Event {
	return Event{
		Type:       EventTerminalOutput,
		SessionID:  sessionID,
		TerminalID: terminalID,
		Data:       data,
	}
}

// NewTerminalClosedEvent signals a PTY shell has exited
func NewTerminalClosedEvent(sessionID, terminalID string, exitCode int) Event {
	return Event{
		Type:       EventTerminalClosed,
		SessionID:  sessionID,
		TerminalID: terminalID,
		ExitCode:   &exitCode,
	}
}

// NewPreviewReadyEvent announces the session's preview address
func NewPreviewReadyEvent(sessionID, url string) Event {
	return Event{
		Type:      EventPreviewReady,
		SessionID: sessionID,
		URL:       url,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewRefreshPreviewEvent asks preview consumers to reload
func NewRefreshPreviewEvent(sessionID string) Event {
	return Event{Type: EventRefreshPreview, SessionID: sessionID}
}

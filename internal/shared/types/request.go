package types

// CreateSessionRequest establishes (or re-joins) a session. SessionID is
// optional; the server mints one when absent.
type CreateSessionRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// FileReadRequest reads one file from the session tree
type FileReadRequest struct {
	Path string `json:"path" binding:"required"`
}

// FileWriteRequest writes content to a path, creating parents as needed.
// Content is a plain string and may legitimately be empty, so it carries
// no required binding.
type FileWriteRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// MkdirRequest creates a directory
type MkdirRequest struct {
	Path      string `json:"path" binding:"required"`
	Recursive bool   `json:"recursive"`
}

// FileListRequest lists directory entries. An empty path means the
// session root.
type FileListRequest struct {
	Path      string `json:"path"`
	WithTypes bool   `json:"withTypes"`
}

// FileRemoveRequest deletes a file or, recursively, a subtree
type FileRemoveRequest struct {
	Path      string `json:"path" binding:"required"`
	Recursive bool   `json:"recursive"`
}

// FileStatRequest fetches entry metadata
type FileStatRequest struct {
	Path string `json:"path" binding:"required"`
}

// FileFindRequest searches the session tree with a glob pattern
type FileFindRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// SpawnRequest starts one child process inside the session
type SpawnRequest struct {
	Command string   `json:"command" binding:"required"`
	Args    []string `json:"args"`
	Cwd     string   `json:"cwd"`
}

// StdinRequest feeds raw bytes to a running process. Data is base64 so
// arbitrary byte sequences survive the JSON transport. Eof closes the
// pipe after any data is written.
type StdinRequest struct {
	Data string `json:"data"`
	Eof  bool   `json:"eof"`
}

// ClientMessage is an inbound websocket request. The payload is flat:
// each operation reads the fields it needs and ignores the rest. ID is
// echoed on the matching Response so callers can correlate replies.
type ClientMessage struct {
	Type       string   `json:"type"`
	ID         string   `json:"id,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	Path       string   `json:"path,omitempty"`
	Content    *string  `json:"content,omitempty"`
	Recursive  bool     `json:"recursive,omitempty"`
	WithTypes  bool     `json:"withTypes,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	Command    string   `json:"command,omitempty"`
	Args       []string `json:"args,omitempty"`
	Cwd        string   `json:"cwd,omitempty"`
	ProcessID  string   `json:"processId,omitempty"`
	Data       string   `json:"data,omitempty"`
	Eof        bool     `json:"eof,omitempty"`
	TerminalID string   `json:"termId,omitempty"`
	Shell      string   `json:"shell,omitempty"`
	Cols       uint16   `json:"cols,omitempty"`
	Rows       uint16   `json:"rows,omitempty"`
}

// Websocket message types accepted from clients
const (
	MsgSubscribe      = "subscribe"
	MsgPing           = "ping"
	MsgFileRead       = "file-read"
	MsgFileWrite      = "file-write"
	MsgFileMkdir      = "file-mkdir"
	MsgFileList       = "file-list"
	MsgFileRemove     = "file-remove"
	MsgFileStat       = "file-stat"
	MsgFileFind       = "file-find"
	MsgSpawn          = "spawn"
	MsgStdin          = "stdin"
	MsgKill           = "kill"
	MsgTerminalOpen   = "terminal-open"
	MsgTerminalInput  = "terminal-input"
	MsgTerminalResize = "terminal-resize"
	MsgTerminalClose  = "terminal-close"
)

package types

import "time"

// Response is the reply envelope for websocket requests. Type is
// "response" on success and "error" on failure; ID echoes the request.
type Response struct {
	Type   string      `json:"type"`
	ID     string      `json:"id,omitempty"`
	Op     string      `json:"op,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// EntryInfo describes one directory entry in a typed listing
type EntryInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// FileListResponse carries a directory listing. Names is populated for
// plain listings, Entries when types were requested.
type FileListResponse struct {
	Path    string      `json:"path"`
	Names   []string    `json:"names,omitempty"`
	Entries []EntryInfo `json:"entries,omitempty"`
}

// FileReadResponse returns one file's content
type FileReadResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StatInfo carries entry metadata. Mime is sniffed for regular files
// and empty for directories.
type StatInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsDir   bool   `json:"isDir"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"modTime"`
	Mime    string `json:"mime,omitempty"`
}

// FileFindResponse lists paths matching a glob pattern
type FileFindResponse struct {
	Pattern string   `json:"pattern"`
	Matches []string `json:"matches"`
}

// SpawnResponse identifies a successfully started process
type SpawnResponse struct {
	ProcessID string `json:"processId"`
	Pid       int    `json:"pid"`
}

// TerminalInfo identifies an open PTY terminal
type TerminalInfo struct {
	TerminalID string `json:"termId"`
	Shell      string `json:"shell"`
	Cols       uint16 `json:"cols"`
	Rows       uint16 `json:"rows"`
}

// SessionInfo is the bookkeeping view of one session
type SessionInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Clients    int       `json:"clients"`
	Processes  []string  `json:"processes"`
	Terminals  []string  `json:"terminals"`
	PreviewURL string    `json:"previewUrl,omitempty"`
}

// RegistryStats summarizes the session registry for health reporting
type RegistryStats struct {
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
	Processes   int `json:"processes"`
	Terminals   int `json:"terminals"`
}

// Package types provides shared data structures for the DevSession backend.
//
// This package defines the wire-visible types used across all backend
// components and the client facade, ensuring consistent payloads on both
// transports (HTTP request/response and the websocket event channel).
//
// Core Types:
//   - Event: Discriminated push message (file-change, process-output, ...)
//   - ClientMessage: Inbound websocket request
//   - Response: Outbound websocket reply envelope
//   - Error: Code-carrying error shared by domain packages and handlers
//
// Request Types:
//   - CreateSessionRequest: Session establishment
//   - FileReadRequest, FileWriteRequest, MkdirRequest, FileListRequest,
//     FileRemoveRequest, FileStatRequest, FileFindRequest: File Store calls
//   - SpawnRequest, StdinRequest: Process Executor calls
//
// Response Types:
//   - EntryInfo, StatInfo: Directory listing and metadata
//   - SpawnResponse: Process identifiers
//   - SessionInfo, RegistryStats: Session bookkeeping
package types

// Package term runs PTY-backed interactive shells for a session.
//
// Output streams to the session's clients as terminal-output events;
// keystrokes and resizes go the other way. A shell that exits, or is
// closed, produces one terminal-closed event with its exit code.
// Terminals die with their session, unlike plain spawned processes.
package term

// Package proc runs the child processes of a session.
//
// Each spawn starts one command under the session root and streams its
// stdout and stderr through the hub as process-output events, chunk by
// chunk as the child produces them. When the child exits, exactly one
// process-completed event carries the exit code and the handle is
// dropped; a non-zero code is a result, not an error. Processes have
// no timeout and are never tied to a client connection.
//
// A bounded tail of each stream is retained per handle so callers that
// attach mid-run can see recent output.
package proc

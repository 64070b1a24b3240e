/*
Package client is the consumer-facing facade over one remote session.

# Overview

A Client binds to a single session: file operations, process spawning,
and event subscription all target that session. HTTP request/response
carries the operations; a websocket channel carries the push events the
backend emits as the session changes.

# Operation Groups

  - Files: ReadFile, WriteFile, Mkdir, ReadDir, Rm, Stat, Find, Watch
  - Processes: Spawn (returns an output stream), SendStdin, CloseStdin, Kill
  - Events: On / Off keyed by event-type name
  - Preview: PreviewURL for the session's served content

# Usage

	c, err := client.Connect(ctx, "http://localhost:8000", "sess_demo")
	if err != nil {
		return err
	}
	defer c.Close()

	c.WriteFile(ctx, "/index.html", "<h1>hi</h1>")

	p, err := c.Spawn(ctx, "npm", []string{"run", "build"}, "/")
	if err != nil {
		return err
	}
	for chunk := range p.Output() {
		fmt.Print(chunk.Data)
	}
	code, _ := p.Wait(ctx)

# Startup Contract

The backend emits server-ready as soon as the event channel is
established, typically before the consumer has registered listeners. An
unobserved server-ready is redelivered on a fixed schedule: five
attempts at 200ms intervals, then one forced delivery at the 2s mark to
whoever has registered by then. Duplicate delivery to a late subscriber
is acceptable; a silent drop is not.

# Transport

HTTP rides a retrying client (transient 5xx and network errors) behind
a circuit breaker, so a dead backend fails fast. Events arrive with
automatic JSON decoding; malformed frames are logged and dropped. The
client does not redial a dropped event channel; unfinished process
streams resolve with a transport error and the consumer reconnects.

# Errors

Backend failures surface as code-carrying errors matching the wire
taxonomy (not_found, invalid_argument, spawn_failure, transport_error,
internal). A process exiting non-zero is a Wait result, never an error.
*/
package client

// Package ws carries the bidirectional editor protocol over a single
// WebSocket per session.
//
// Inbound frames are operation requests; the flat payload mirrors the
// HTTP API. Outbound frames are either correlated responses or session
// events fanned out from the hub. One read pump dispatches requests
// inline and one write pump owns the wire, so no frame interleaving
// can corrupt the stream.
//
// Liveness uses the standard ping/pong dance: the server pings every
// 30s and drops connections silent past 60s.
package ws

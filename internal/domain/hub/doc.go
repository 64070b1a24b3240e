// Package hub fans session events out to attached connections.
//
// Each session has its own set of connections. Broadcast never blocks:
// every connection owns a bounded queue, and an event that does not fit
// is dropped for that connection and counted. Producers (file store,
// process executor, terminal manager) stay decoupled from transport;
// the websocket layer attaches a connection per client and drains its
// queue into the socket.
package hub

// Package session owns the registry of live sessions.
//
// A session binds an identifier to a working directory, a file store,
// a process executor, a terminal manager, and the set of subscribed
// client connections. The registry creates sessions on first
// reference, hands out at most one Session per identifier, and reaps a
// session once its client set has been empty for the configured grace
// period. A reconnect inside the window cancels the removal.
package session

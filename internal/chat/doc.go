// Package chat implements the in-memory chat relay: the session registry,
// the append-only message log and the Hub event loop that owns both.
//
// Every inbound event (connect, join, message, typing, disconnect) is
// applied by a single goroutine running Hub.Run, one event at a time.
// Read-only accessors take a read lock and always observe a complete
// snapshot of the registry and the log.
package chat

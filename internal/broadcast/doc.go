// Package broadcast owns the connection registry and the shared state using the actor pattern.
//
// A single goroutine receives commands (register, unregister, inbound frame, snapshot, stop)
// over a channel, so the registry and the state store are never touched concurrently.
// Delivery to each connection is non-blocking; a connection that cannot accept a payload
// misses it and stays registered.
package broadcast

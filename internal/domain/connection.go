package domain

import "context"

// Connection is an open bidirectional channel to a single viewer.
// The transport owns the lifecycle; holders of a Connection only keep a reference.
type Connection interface {
	ID() string
	Send(data []byte) error
	IsOpen() bool
	Close() error
}

// Publisher delivers a payload to every open connection.
// Returns the number of connections the payload was queued for.
type Publisher interface {
	Broadcast(ctx context.Context, payload any) int
}

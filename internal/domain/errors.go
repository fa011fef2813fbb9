package domain

import "errors"

var (
	ErrConnectionClosed    = errors.New("connection closed")
	ErrSendBufferFull      = errors.New("send buffer full")
	ErrBroadcasterStopped  = errors.New("broadcaster stopped")
	ErrTooManyConnections  = errors.New("too many connections")
	ErrDuplicateRegistered = errors.New("connection already registered")
)

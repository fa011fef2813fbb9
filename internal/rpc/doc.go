// Package rpc implements the JSON-RPC 2.0 dialect spoken over the websocket channel.
//
// Envelopes (requests, responses, notifications) are defined in envelope.go. The Dispatcher
// maps method names to typed handlers and converts every handler fault into an error
// response, so nothing raised by a handler escapes to the caller.
package rpc

// Package client is a reference viewer for the counter server. It dials the
// websocket endpoint, issues JSON-RPC calls and keeps a local Mirror of the
// shared counter and radius up to date from responses and pushes.
package client

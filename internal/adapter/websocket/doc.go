// Package websocket adapts gorilla/websocket connections to domain.Connection and serves
// the upgrade endpoint.
package websocket

// Package server is the connection acceptor in front of the room manager.
//
// It upgrades HTTP requests to WebSocket connections, wraps each one in a
// Client with its own read and write pumps, and lets the Hub hand the client
// to room.Manager. Configuration, logging, origin checks, and the HTTP routes
// (health, stats, metrics, test page) live here as well.
package server

// Package server defines transport errors and utility helpers that are reused
// across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrSendBufferFull is returned by Client.Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("server: send buffer full")
	// ErrConnClosed is returned by Client.Send once the client is no longer open.
	ErrConnClosed = errors.New("server: connection not open")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

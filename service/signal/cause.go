package signal

import (
	"net"

	"github.com/gorilla/websocket"
)

// DisconnectCause classifies why a connection went away. Diagnostic only:
// cleanup runs the same regardless of cause.
type DisconnectCause int

const (
	CauseUnknown     DisconnectCause = iota
	CausePeer                        // peer closed the connection
	CauseServer                      // server-initiated disconnect/eviction
	CausePingTimeout                 // heartbeat expired
	CauseTransport                   // read/write failure
)

func (c DisconnectCause) String() string {
	switch c {
	case CausePeer:
		return "client disconnect"
	case CauseServer:
		return "server disconnect"
	case CausePingTimeout:
		return "ping timeout"
	case CauseTransport:
		return "transport error"
	default:
		return "unknown"
	}
}

// ClassifyCloseError maps a websocket read error to a cause.
func ClassifyCloseError(err error) DisconnectCause {
	if err == nil {
		return CauseUnknown
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return CausePeer
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return CausePingTimeout
	}
	if websocket.IsUnexpectedCloseError(err) {
		return CauseTransport
	}
	return CauseUnknown
}

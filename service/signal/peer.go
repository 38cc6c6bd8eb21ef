package signal

import "time"

// Peer is the transport capability the core needs from a live connection:
// emit named events to the remote side, answer acknowledgments, and force
// close. The websocket adapter implements it; tests inject fakes.
type Peer interface {
	ID() string
	Emit(event string, data map[string]any) error
	Ack(seq int64, data map[string]any) error
	Close() error
}

// Session is the gateway-side record of one connection. ConnID and Peer are
// set at upgrade time; CID/Room/Authorized flip exactly once when the
// handshake succeeds. All mutation happens inside ConnManager under its lock.
type Session struct {
	ConnID     string
	CID        string
	Room       string
	Authorized bool

	Peer Peer

	CreatedAt time.Time
	UpdatedAt time.Time
}

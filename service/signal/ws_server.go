package signal

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1314wu/server-p2p-signal/logger"
	"github.com/1314wu/server-p2p-signal/tools/ids"
)

// WSConfig bounds the transport-level behavior of one websocket connection.
type WSConfig struct {
	ReadLimit    int64
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendQueue    int
	CheckOrigin  func(r *http.Request) bool
}

func (c *WSConfig) norm() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// wsPeer adapts a gorilla connection to the Peer capability. All writes
// funnel through the send queue into a single writer goroutine; the reader
// never writes.
type wsPeer struct {
	connID string
	conn   *websocket.Conn
	cfg    *WSConfig

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newWsPeer(connID string, conn *websocket.Conn, cfg *WSConfig) *wsPeer {
	return &wsPeer{
		connID: connID,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendQueue),
		done:   make(chan struct{}),
	}
}

func (p *wsPeer) ID() string { return p.connID }

func (p *wsPeer) Emit(event string, data map[string]any) error {
	return p.enqueue(&Frame{Event: event, Data: data})
}

func (p *wsPeer) Ack(seq int64, data map[string]any) error {
	if seq == 0 {
		return nil // no ack requested
	}
	return p.enqueue(&Frame{Event: EventAck, Seq: seq, Data: data})
}

func (p *wsPeer) enqueue(f *Frame) error {
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return errPeerClosed
	default:
	}
	select {
	case p.send <- raw:
		return nil
	default:
		logger.Warnf("[WS] send queue full, drop %s conn=%s", f.Event, p.connID)
		return errSendQueueFull
	}
}

// Close only signals shutdown; it never touches the socket. All frame
// writes, the close handshake and the conn teardown belong to writeLoop,
// which is the designated single writer. Callers on other goroutines
// (eviction, admin disconnect, the sweeper) therefore cannot race a
// write in progress.
func (p *wsPeer) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// writeLoop is the only goroutine writing to the socket: outbound frames,
// the heartbeat pings, and on shutdown the flush + close handshake.
func (p *wsPeer) writeLoop() {
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = p.Close()
		_ = p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			p.flush()
			return
		case raw := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				logger.Debugf("[WS] write err conn=%s err=%v", p.connID, err)
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(p.cfg.WriteWait)); err != nil {
				logger.Debugf("[WS] ping err conn=%s err=%v", p.connID, err)
				return
			}
		}
	}
}

// flush drains the frames queued before Close was signalled, then sends
// the close frame. A superseded session's forced-offline notification is
// enqueued right before Close, so it must reach the wire ahead of the
// handshake. Every write carries a deadline; a stalled peer cannot hold
// the teardown hostage.
func (p *wsPeer) flush() {
	for {
		select {
		case raw := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		default:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(p.cfg.WriteWait))
			return
		}
	}
}

var (
	errPeerClosed    = &closedErr{"peer closed"}
	errSendQueueFull = &closedErr{"send queue full"}
)

type closedErr struct{ s string }

func (e *closedErr) Error() string { return e.s }

// HandleWS upgrades the request and runs the connection's read loop until
// disconnect.
func (s *Server) HandleWS(cfg WSConfig) gin.HandlerFunc {
	cfg.norm()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     cfg.CheckOrigin,
	}

	return func(c *gin.Context) {
		if s.Stopped() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Infof("[HandleWS] upgrade websocket error: %v", err)
			return
		}

		connID := ids.GenerateString()
		peer := newWsPeer(connID, ws, &cfg)

		sess, err := s.ConnMgr().AddUnauth(connID, peer)
		if err != nil {
			logger.Errorf("[HandleWS] register conn=%s: %v", connID, err)
			_ = ws.Close()
			return
		}

		ws.SetReadLimit(cfg.ReadLimit)
		_ = ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		})

		go peer.writeLoop()
		_ = peer.Emit(EventConnected, BuildConnectedData(connID, s.NodeID()))

		logger.Infof("[HandleWS] conn=%s from %s", connID, ws.RemoteAddr())
		s.readLoop(sess, peer, ws)
	}
}

// readLoop dispatches inbound frames in arrival order; per-connection FIFO
// comes from the single reader. On exit the disconnect cleanup runs with
// the classified cause.
func (s *Server) readLoop(sess *Session, peer *wsPeer, ws *websocket.Conn) {
	cause := CauseUnknown
	defer func() {
		_ = peer.Close()
		s.HandleDisconnect(sess.ConnID, cause)
	}()

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			cause = ClassifyCloseError(rerr)
			logger.Infof("[WS] read end conn=%s cause=%s err=%v", sess.ConnID, cause, rerr)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[WS] parse frame err conn=%s err=%v sample=%q", sess.ConnID, perr, sample)
			continue
		}

		h := s.Disp().GetHandler(f.Event)
		if h == nil {
			logger.Debugf("[WS] no handler conn=%s event=%s", sess.ConnID, f.Event)
			continue
		}
		if err := h.Handle(&Context{S: s}, f, sess); err != nil {
			logger.Warnf("[WS] handler %s err conn=%s err=%v", f.Event, sess.ConnID, err)
		}

		// A handler may have force-closed the connection (protocol
		// violations); the next Read returns and classifies then.
	}
}

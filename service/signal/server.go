package signal

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/1314wu/server-p2p-signal/logger"
	"github.com/1314wu/server-p2p-signal/service/events"
	"github.com/1314wu/server-p2p-signal/service/presence"
	errs "github.com/1314wu/server-p2p-signal/tools/errs"
	"github.com/1314wu/server-p2p-signal/tools/safe"
)

// Options wires the server's collaborators. Auth is mandatory; Observer,
// Presence and Events may be nil and the corresponding side effects are
// skipped. No ambient globals: every Server instance owns its own
// directory and registry, so independent instances coexist.
type Options struct {
	NodeID      string
	DefaultRoom string

	Auth     Authenticator
	Observer DisconnectObserver
	Presence *presence.Manager
	Events   *events.Publisher

	RoomSubject string // NATS subject for room membership events
	Manager     ManagerConf
}

type Server struct {
	opts  Options
	conns *ConnManager
	rooms *RoomManager
	disp  *Dispatcher
	clock func() time.Time

	stopped atomic.Bool
	httpSrv *http.Server
}

func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, errors.New("signal: Authenticator is required")
	}
	if opts.NodeID == "" {
		opts.NodeID = "signal_gw-1"
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "__default"
	}
	if opts.Manager.Clock == nil {
		opts.Manager.Clock = time.Now
	}
	conns := NewConnManagerWithConf(opts.Manager, opts.NodeID)
	s := &Server{
		opts:  opts,
		conns: conns,
		rooms: NewRoomManager(conns),
		disp:  NewDispatcher(),
		clock: opts.Manager.Clock,
	}
	return s, nil
}

func (s *Server) ConnMgr() *ConnManager { return s.conns }
func (s *Server) Rooms() *RoomManager   { return s.rooms }
func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) Auth() Authenticator   { return s.opts.Auth }
func (s *Server) NodeID() string        { return s.opts.NodeID }
func (s *Server) DefaultRoom() string   { return s.opts.DefaultRoom }
func (s *Server) Now() time.Time        { return s.clock() }

// ===== outward interface (supervisor / admin layer) =====

// Send delivers a server-initiated message to one client over the same
// path the router uses. Unreachable cids fail with code 2201.
func (s *Server) Send(cid string, data map[string]any) error {
	p, ok := s.conns.Lookup(cid)
	if !ok {
		return errs.ErrUnreachable.WrapMsg("cid=" + cid)
	}
	return p.Emit(EventMessage, data)
}

// Disconnect force-evicts a client's session. Reports whether a session
// was actually evicted.
func (s *Server) Disconnect(cid string) bool {
	removed, ok := s.conns.Evict(cid, "forced offline by server")
	if !ok {
		return false
	}
	s.finishDisconnect(removed, CauseServer)
	return true
}

// Stopped reports whether new connections are being refused.
func (s *Server) Stopped() bool { return s.stopped.Load() }

// Start serves the HTTP/WebSocket listener until Stop or failure.
func (s *Server) Start(addr string, handler http.Handler) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: handler}
	logger.Infof("[signal] node=%s listening on %s", s.opts.NodeID, addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop refuses new connections and closes the listener. Established
// websocket connections are hijacked from the HTTP server and are left
// alive; callers wanting a hard stop follow up with ConnMgr().Close().
func (s *Server) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// ===== disconnect handling =====

// HandleDisconnect runs the cleanup for a lost connection. Safe to call
// multiple times for the same connection: only the call that actually
// removes the directory entry performs cleanup, so duplicate transport
// notifications and already-evicted sessions are no-ops.
func (s *Server) HandleDisconnect(connID string, cause DisconnectCause) {
	removed, ok := s.conns.RemoveConn(connID)
	if !ok {
		return
	}
	if !removed.Authorized {
		logger.Debugf("[signal] unauth conn=%s gone cause=%s", connID, cause)
		return
	}
	s.finishDisconnect(removed, cause)
}

// finishDisconnect undoes room membership and fires the observability side
// effects for a session already removed from the directory.
func (s *Server) finishDisconnect(removed Session, cause DisconnectCause) {
	logger.Infof("[signal] cid=%s conn=%s offline cause=%s", removed.CID, removed.ConnID, cause)

	if removed.Room != "" {
		s.LeaveRoomAndNotify(removed.Room, removed.CID)
	}

	cid := removed.CID
	if s.opts.Observer != nil {
		safe.SafeGo(func() { s.opts.Observer.Notify(cid) })
	}
	if s.opts.Presence != nil {
		safe.SafeGo(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.opts.Presence.Offline(ctx, cid); err != nil {
				logger.Warnf("[signal] presence offline cid=%s: %v", cid, err)
			}
		})
	}
}

// LeaveRoomAndNotify removes cid from the room and broadcasts user-left to
// the remaining peers.
func (s *Server) LeaveRoomAndNotify(room, cid string) {
	remaining, left := s.rooms.Leave(room, cid)
	if !left {
		return
	}
	n := s.rooms.Broadcast(room, EventUserLeft, BuildLeftData(cid, remaining, s.Now()))
	logger.Debugf("[signal] user-left room=%s cid=%s delivered=%d", room, cid, n)
	s.PublishRoomEvent("leave", room, cid, remaining)
}

// PublishRoomEvent mirrors a membership change to the event bus, best
// effort.
func (s *Server) PublishRoomEvent(typ, room, cid string, users []string) {
	if s.opts.Events == nil || s.opts.RoomSubject == "" {
		return
	}
	ev := events.RoomEvent{
		Type:  typ,
		Room:  room,
		CID:   cid,
		Node:  s.opts.NodeID,
		Users: users,
		TS:    s.Now().UnixMilli(),
	}
	pub, subj := s.opts.Events, s.opts.RoomSubject
	safe.SafeGo(func() {
		if err := pub.Publish(subj, ev); err != nil {
			logger.Warnf("[signal] publish room event: %v", err)
		}
	})
}

// PresenceOnline records the cid as online on this node, best effort.
func (s *Server) PresenceOnline(cid string) {
	if s.opts.Presence == nil {
		return
	}
	p := s.opts.Presence
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Online(ctx, cid); err != nil {
			logger.Warnf("[signal] presence online cid=%s: %v", cid, err)
		}
	})
}

package handlers

import (
	"context"
	"time"

	"github.com/1314wu/server-p2p-signal/logger"
	"github.com/1314wu/server-p2p-signal/service/signal"
	"github.com/1314wu/server-p2p-signal/tools/decode"
	errs "github.com/1314wu/server-p2p-signal/tools/errs"
)

const authTimeout = 2 * time.Second

// AuthHandler runs the handshake: validate the token through the injected
// Authenticator, bind the connection in the directory (evicting a prior
// session for the same cid), join the room and broadcast membership.
type AuthHandler struct{}

func NewAuthHandler() signal.Handler { return &AuthHandler{} }

func (h *AuthHandler) Event() string { return signal.EventAuth }

func (h *AuthHandler) Handle(ctx *signal.Context, f *signal.Frame, sess *signal.Session) error {
	s := ctx.S

	// Re-authentication on a live connection is a protocol violation:
	// rejected, connection kept as-is.
	if _, _, authed := s.ConnMgr().Identity(sess.ConnID); authed {
		_ = sess.Peer.Ack(f.Seq, signal.BuildErrorAckData(errs.ErrAlreadyAuthed))
		return nil
	}

	ap, err := decode.DecodeMap[signal.AuthPayload](f.Data)
	if err != nil || ap.Token == "" {
		_ = sess.Peer.Ack(f.Seq, signal.BuildErrorAckData(errs.ErrBadFrame))
		_ = sess.Peer.Close()
		return nil
	}

	cctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	res, aerr := s.Auth().Authenticate(cctx, ap.Token)
	cancel()
	if aerr != nil {
		// The validator's reason goes back verbatim, then the
		// connection is closed. No directory or room mutation.
		e := errs.ErrAuthFailed.WithDetail(aerr.Error())
		_ = sess.Peer.Ack(f.Seq, map[string]any{"error": aerr.Error(), "code": e.Code})
		_ = sess.Peer.Close()
		logger.Infof("[auth] reject conn=%s: %v", sess.ConnID, aerr)
		return nil
	}

	room := res.Room
	if room == "" {
		room = s.DefaultRoom()
	}

	evicted, berr := s.ConnMgr().Bind(sess.ConnID, res.CID, room)
	if berr != nil {
		// Connection vanished mid-handshake.
		logger.Warnf("[auth] bind conn=%s cid=%s: %v", sess.ConnID, res.CID, berr)
		_ = sess.Peer.Close()
		return nil
	}
	rejoin := false
	if evicted != nil {
		_ = evicted.Peer.Emit(signal.EventForcedOffline, map[string]any{"reason": "duplicate login"})
		_ = evicted.Peer.Close()
		if evicted.Room != "" && evicted.Room != room {
			// Same identity moved rooms: the old membership goes away
			// with a departure broadcast.
			s.LeaveRoomAndNotify(evicted.Room, res.CID)
		}
		// Same room: membership is unchanged, the peers never saw a
		// departure and must not see a second arrival.
		rejoin = evicted.Room == room
		logger.Infof("[auth] evicted prior session cid=%s", res.CID)
	}

	others, all := s.Rooms().Join(room, res.CID)

	_ = sess.Peer.Ack(f.Seq, signal.BuildAuthAckData(res.CID, room, others))
	s.Rooms().Broadcast(room, signal.EventRoomList, signal.BuildRoomListData(room, all))
	if !rejoin {
		s.Rooms().Broadcast(room, signal.EventUserJoined,
			signal.BuildJoinedData(res.CID, all, s.Now()), res.CID)
	}

	s.PresenceOnline(res.CID)
	s.PublishRoomEvent("join", room, res.CID, all)

	logger.Infof("[auth] cid=%s room=%s conn=%s online", res.CID, room, sess.ConnID)
	return nil
}

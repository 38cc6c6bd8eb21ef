package handlers

import (
	"github.com/1314wu/server-p2p-signal/logger"
	"github.com/1314wu/server-p2p-signal/service/signal"
	errs "github.com/1314wu/server-p2p-signal/tools/errs"
)

// ForwardHandler routes point-to-point payloads between authenticated
// clients. The destination field is consumed and the sender's real cid is
// stamped on before delivery, so the recipient cannot be lied to about the
// origin.
type ForwardHandler struct{}

func NewForwardHandler() signal.Handler { return &ForwardHandler{} }

func (h *ForwardHandler) Event() string { return signal.EventMessage }

func (h *ForwardHandler) Handle(ctx *signal.Context, f *signal.Frame, sess *signal.Session) error {
	s := ctx.S

	cid, _, authed := s.ConnMgr().Identity(sess.ConnID)
	if !authed {
		// Forward before handshake is a protocol violation: error ack,
		// then the connection goes away.
		_ = sess.Peer.Ack(f.Seq, signal.BuildErrorAckData(errs.ErrUnauthSender))
		_ = sess.Peer.Close()
		logger.Infof("[forward] unauth sender conn=%s, closing", sess.ConnID)
		return nil
	}

	to, _ := f.Data["to"].(string)
	if to == "" {
		_ = sess.Peer.Ack(f.Seq, signal.BuildErrorAckData(errs.ErrBadFrame))
		return nil
	}

	payload := make(map[string]any, len(f.Data))
	for k, v := range f.Data {
		if k == "to" {
			continue
		}
		payload[k] = v
	}
	payload["from"] = cid

	dst, ok := s.ConnMgr().Lookup(to)
	if !ok {
		_ = sess.Peer.Ack(f.Seq, signal.BuildErrorAckData(errs.ErrUnreachable))
		return nil
	}

	// Fire and forget: a live destination is all routing checks for.
	if err := dst.Emit(signal.EventMessage, payload); err != nil {
		logger.Debugf("[forward] emit to=%s err=%v", to, err)
	}
	_ = sess.Peer.Ack(f.Seq, nil)
	return nil
}

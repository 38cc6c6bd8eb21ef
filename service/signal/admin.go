package signal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/1314wu/server-p2p-signal/tools/errs"
)

// Admin surface: server-initiated send and disconnect, mounted behind the
// bearer-token middleware by main.

type adminSendReq struct {
	CID  string         `json:"cid" binding:"required"`
	Data map[string]any `json:"data" binding:"required"`
}

func (s *Server) HandleAdminSend(c *gin.Context) {
	var req adminSendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Send(req.CID, req.Data); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, &errs.ErrUnreachable) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": errs.CodeOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type adminDisconnectReq struct {
	CID string `json:"cid" binding:"required"`
}

func (s *Server) HandleAdminDisconnect(c *gin.Context) {
	var req adminDisconnectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.Disconnect(req.CID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for cid"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) HandleHealthz(c *gin.Context) {
	conns, users := s.ConnMgr().Counts()
	c.JSON(http.StatusOK, gin.H{
		"node":  s.NodeID(),
		"conns": conns,
		"users": users,
	})
}

package signal

import (
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // fixed-timezone timestamps must not depend on the host zoneinfo

	"github.com/1314wu/server-p2p-signal/tools/errs"
)

// Event names on the wire.
const (
	EventConnected     = "connected"
	EventAuth          = "authentication"
	EventMessage       = "message"
	EventAck           = "ack"
	EventRoomList      = "room-list"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventForcedOffline = "forced-offline"
)

// Frame is the JSON envelope for every event in both directions. Seq
// correlates a client request with its ack; zero means no ack expected.
type Frame struct {
	Event string         `json:"event"`
	Seq   int64          `json:"seq,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame missing event")
	}
	return f, nil
}

func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// AuthPayload is the handshake request body.
type AuthPayload struct {
	Token string `json:"token"`
}

// ---- server-built payloads ----

// Broadcast timestamps are rendered in a fixed timezone so operators read
// the same wall clock on every node. Diagnostic only, never used for
// ordering.
var stampLoc = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.UTC
	}
	return loc
}()

func stamp(now time.Time) string {
	return now.In(stampLoc).Format("2006-01-02 15:04:05")
}

func BuildConnectedData(connID, nodeID string) map[string]any {
	return map[string]any{"conn_id": connID, "node_id": nodeID}
}

func BuildAuthAckData(cid, room string, others []string) map[string]any {
	return map[string]any{"uid": cid, "room": room, "peers": others}
}

func BuildErrorAckData(e errs.CodeError) map[string]any {
	return map[string]any{"error": e.Msg, "code": e.Code}
}

func BuildRoomListData(room string, users []string) map[string]any {
	return map[string]any{"room": room, "users": users}
}

func BuildJoinedData(cid string, users []string, now time.Time) map[string]any {
	return map[string]any{"cid": cid, "users": users, "time": stamp(now)}
}

func BuildLeftData(cid string, users []string, now time.Time) map[string]any {
	return map[string]any{"cid": cid, "users": users, "time": stamp(now)}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1314wu/server-p2p-signal/logger"
	"github.com/1314wu/server-p2p-signal/tools/ids"
)

const DefaultRoom = "__default"

type AppConfig struct {
	NodeID     string // gateway node id, used in presence values and logs
	SnowNodeID int64  // snowflake node part
	ListenAddr string // HTTP + WebSocket listen address

	// WebSocket limits and heartbeat.
	ReadLimit    int64
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendQueue    int
	UnauthTTL    time.Duration // kick connections that never authenticate
	SweepEvery   time.Duration

	// Browser origin allow list; empty accepts all.
	AllowedOrigins []string

	// Handshake validation.
	JwtSecret   []byte
	DefaultRoom string

	// Admin surface.
	AdminToken string

	// Optional presence mirror (disabled when Addr is empty).
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	// Optional event publishing (disabled when Servers is empty).
	NatsServers        string
	NatsDisconnectSubj string
	NatsRoomSubj       string
}

var Global = AppConfig{
	NodeID:     "signal_gw-1",
	SnowNodeID: 1,
	ListenAddr: ":8080",

	ReadLimit:    1 << 20,
	PingInterval: 25 * time.Second,
	PongWait:     75 * time.Second,
	WriteWait:    10 * time.Second,
	SendQueue:    256,
	UnauthTTL:    30 * time.Second,
	SweepEvery:   10 * time.Second,

	JwtSecret:   []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="),
	DefaultRoom: DefaultRoom,

	AdminToken: "",

	PresenceTTL: 2 * time.Minute,

	NatsDisconnectSubj: "signal.disconnect",
	NatsRoomSubj:       "signal.room",
}

// Load applies environment overrides onto the defaults and seeds the
// snowflake generator. Call once from main before anything else.
func Load() {
	Global.NodeID = envStr("GATEWAY_ID", Global.NodeID)
	Global.SnowNodeID = envInt64("SNOW_NODE_ID", Global.SnowNodeID)
	Global.ListenAddr = envStr("LISTEN_ADDR", Global.ListenAddr)
	if s := os.Getenv("JWT_SECRET"); s != "" {
		Global.JwtSecret = []byte(s)
	}
	if s := os.Getenv("ALLOWED_ORIGINS"); s != "" {
		Global.AllowedOrigins = strings.Split(s, ",")
	}
	Global.DefaultRoom = envStr("DEFAULT_ROOM", Global.DefaultRoom)
	Global.AdminToken = envStr("ADMIN_TOKEN", Global.AdminToken)
	Global.RedisAddr = envStr("REDIS_ADDR", Global.RedisAddr)
	Global.RedisPassword = envStr("REDIS_PASSWORD", Global.RedisPassword)
	Global.RedisDB = int(envInt64("REDIS_DB", int64(Global.RedisDB)))
	Global.NatsServers = envStr("NATS_SERVERS", Global.NatsServers)
	Global.NatsDisconnectSubj = envStr("NATS_DISCONNECT_SUBJECT", Global.NatsDisconnectSubj)
	Global.NatsRoomSubj = envStr("NATS_ROOM_SUBJECT", Global.NatsRoomSubj)

	ids.SetNodeID(Global.SnowNodeID)
	logger.Infof("[config] loaded node=%s listen=%s", Global.NodeID, Global.ListenAddr)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warnf("[config] bad int for %s: %q, keeping %d", key, v, def)
		return def
	}
	return i
}

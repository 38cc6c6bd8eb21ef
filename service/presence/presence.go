// Package presence mirrors which node currently holds a client's live
// session into Redis, so out-of-process consumers can answer "is this cid
// online and where". The gateway works fine without it; the directory in
// service/signal stays the source of truth.
package presence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	NodeID   string
	TTL      time.Duration // online key validity; refreshed on heartbeat
}

type Manager struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

// New connects and pings. TTL defaults to 2 minutes.
func New(c Config) (*Manager, error) {
	if c.TTL <= 0 {
		c.TTL = 2 * time.Minute
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "presence: redis ping")
	}
	return &Manager{rdb: rdb, nodeID: c.NodeID, ttl: c.TTL}, nil
}

// presence key: sig:presence:<cid>
// value: node id, TTL bounds staleness after a crashed node.
func presenceKey(cid string) string { return "sig:presence:" + cid }

// Online marks the cid online on this node and arms the TTL.
func (m *Manager) Online(ctx context.Context, cid string) error {
	return errors.Wrap(m.rdb.Set(ctx, presenceKey(cid), m.nodeID, m.ttl).Err(), "presence: online")
}

// Refresh renews the TTL for a still-connected cid.
func (m *Manager) Refresh(ctx context.Context, cid string) error {
	return errors.Wrap(m.rdb.Expire(ctx, presenceKey(cid), m.ttl).Err(), "presence: refresh")
}

// Offline deletes the key.
func (m *Manager) Offline(ctx context.Context, cid string) error {
	return errors.Wrap(m.rdb.Del(ctx, presenceKey(cid)).Err(), "presence: offline")
}

// Lookup reports whether the cid is online and on which node.
func (m *Manager) Lookup(ctx context.Context, cid string) (node string, online bool, err error) {
	val, err := m.rdb.Get(ctx, presenceKey(cid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "presence: lookup")
	}
	return val, true, nil
}

func (m *Manager) Close() error {
	return m.rdb.Close()
}

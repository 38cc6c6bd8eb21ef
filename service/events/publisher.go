// Package events publishes gateway lifecycle events (room membership
// changes, disconnects) to NATS for out-of-process consumers. Everything
// here is best effort; the session state machine never depends on a
// publish succeeding.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type Publisher struct {
	nc *nats.Conn
}

func New(cfg Config) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("events: nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "events: nats connect")
	}
	return &Publisher{nc: nc}, nil
}

// Publish marshals v as JSON onto the subject.
func (p *Publisher) Publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "events: marshal")
	}
	return errors.Wrap(p.nc.Publish(subject, data), "events: publish")
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// RoomEvent mirrors a join/leave applied to the room registry.
type RoomEvent struct {
	Type  string   `json:"type"` // join | leave
	Room  string   `json:"room"`
	CID   string   `json:"cid"`
	Node  string   `json:"node"`
	Users []string `json:"users"`
	TS    int64    `json:"ts"`
}

// DisconnectNotifier implements the gateway's disconnect-observer contract
// by publishing to a subject.
type DisconnectNotifier struct {
	P       *Publisher
	Subject string
	Node    string
}

type disconnectEvent struct {
	CID  string `json:"cid"`
	Node string `json:"node"`
	TS   int64  `json:"ts"`
}

func (n *DisconnectNotifier) Notify(cid string) {
	_ = n.P.Publish(n.Subject, disconnectEvent{
		CID:  cid,
		Node: n.Node,
		TS:   time.Now().UnixMilli(),
	})
}

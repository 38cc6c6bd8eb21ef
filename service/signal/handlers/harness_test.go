package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/1314wu/server-p2p-signal/service/signal"
)

type fakeEvent struct {
	Event string
	Data  map[string]any
}

type fakeAck struct {
	Seq  int64
	Data map[string]any
}

type fakePeer struct {
	id string

	mu     sync.Mutex
	events []fakeEvent
	acks   []fakeAck
	closed bool
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Emit(event string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fakeEvent{Event: event, Data: data})
	return nil
}

func (p *fakePeer) Ack(seq int64, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acks = append(p.acks, fakeAck{Seq: seq, Data: data})
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) eventsNamed(name string) []fakeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []fakeEvent
	for _, e := range p.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePeer) lastAck(t *testing.T) fakeAck {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.acks) == 0 {
		t.Fatal("no ack recorded")
	}
	return p.acks[len(p.acks)-1]
}

// fakeAuth resolves tokens from a fixed table; unknown tokens are rejected
// with a stable reason.
type fakeAuth struct {
	users map[string]signal.AuthResult
}

func (a *fakeAuth) Authenticate(_ context.Context, token string) (*signal.AuthResult, error) {
	r, ok := a.users[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &r, nil
}

func newHarness(t *testing.T) *signal.Server {
	t.Helper()
	s, err := signal.NewServer(signal.Options{
		NodeID:      "node-test",
		DefaultRoom: "lobby",
		Auth: &fakeAuth{users: map[string]signal.AuthResult{
			"tA":      {CID: "alice", Room: "r1"},
			"tB":      {CID: "bob", Room: "r1"},
			"tB2":     {CID: "bob", Room: "r2"},
			"tNoRoom": {CID: "dave"},
		}},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	RegisterAll(s)
	t.Cleanup(s.ConnMgr().Close)
	return s
}

// connect registers an unauthenticated connection, as the transport does
// at upgrade time.
func connect(t *testing.T, s *signal.Server, connID string) (*signal.Session, *fakePeer) {
	t.Helper()
	p := newFakePeer(connID)
	sess, err := s.ConnMgr().AddUnauth(connID, p)
	if err != nil {
		t.Fatalf("AddUnauth(%s): %v", connID, err)
	}
	return sess, p
}

func dispatch(t *testing.T, s *signal.Server, f *signal.Frame, sess *signal.Session) {
	t.Helper()
	h := s.Disp().GetHandler(f.Event)
	if h == nil {
		t.Fatalf("no handler for %s", f.Event)
	}
	if err := h.Handle(&signal.Context{S: s}, f, sess); err != nil {
		t.Fatalf("handle %s: %v", f.Event, err)
	}
}

func authFrame(seq int64, token string) *signal.Frame {
	return &signal.Frame{Event: signal.EventAuth, Seq: seq, Data: map[string]any{"token": token}}
}

func authenticate(t *testing.T, s *signal.Server, connID, token string) (*signal.Session, *fakePeer) {
	t.Helper()
	sess, p := connect(t, s, connID)
	dispatch(t, s, authFrame(1, token), sess)
	return sess, p
}

package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/1314wu/server-p2p-signal/logger"
)

// ===== Config =====

type ManagerConf struct {
	UnauthTTL  time.Duration    // grace period before unauthenticated connections are kicked
	SweepEvery time.Duration    // sweep interval
	Clock      func() time.Time // injectable clock (tests); nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 30 * time.Second
	}
}

// ===== Connection directory =====

// ConnManager owns the cid -> session mapping and enforces the
// single-active-session invariant: at most one live connection per cid,
// a later handshake for the same cid evicts the earlier connection.
//
// byConn indexes every connection from the moment of upgrade; byUser only
// holds authenticated sessions. Eviction removes a session from both maps
// before the replacement is installed, all under one lock acquisition, so
// no third registration for the same cid can interleave.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Session // connID -> session (auth and unauth)
	byUser map[string]*Session // cid -> the single authorized session

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	nodeID   string
}

// Evicted describes the session displaced by a Bind for the same cid.
type Evicted struct {
	Peer Peer
	Room string
}

func NewConnManager(nodeID string) *ConnManager {
	return NewConnManagerWithConf(ManagerConf{}, nodeID)
}

func NewConnManagerWithConf(conf ManagerConf, nodeID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*Session),
		byUser: make(map[string]*Session),
		conf:   conf,
		nodeID: nodeID,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) NodeID() string { return m.nodeID }

// Close stops the sweeper and force-closes every remaining connection.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	peers := make([]Peer, 0, len(m.byConn))
	for _, s := range m.byConn {
		peers = append(peers, s.Peer)
	}
	m.byConn = map[string]*Session{}
	m.byUser = map[string]*Session{}
	m.mu.Unlock()

	for _, p := range peers {
		closeQuiet(p)
	}
}

// AddUnauth registers a freshly upgraded, not yet authenticated connection.
func (m *ConnManager) AddUnauth(connID string, p Peer) (*Session, error) {
	if connID == "" || p == nil {
		return nil, errors.New("connID/peer empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byConn[connID]; exists {
		return nil, errors.New("connID exists")
	}
	s := &Session{
		ConnID:    connID,
		Peer:      p,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byConn[connID] = s
	return s, nil
}

// Identity reports the authenticated identity of a connection, if any.
func (m *ConnManager) Identity(connID string) (cid, room string, authed bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byConn[connID]
	if !ok || !s.Authorized {
		return "", "", false
	}
	return s.CID, s.Room, true
}

// Bind flips a connection to authenticated under the given cid. If another
// session already holds the cid it is removed from both indexes first and
// returned so the caller can notify and close it outside the lock.
func (m *ConnManager) Bind(connID, cid, room string) (*Evicted, error) {
	if connID == "" || cid == "" {
		return nil, errors.New("connID/cid empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return nil, errors.New("connID not found")
	}
	if s.Authorized {
		return nil, errors.New("already authorized")
	}

	var evicted *Evicted
	if old, ok := m.byUser[cid]; ok && old != s {
		delete(m.byUser, cid)
		delete(m.byConn, old.ConnID)
		evicted = &Evicted{Peer: old.Peer, Room: old.Room}
	}

	s.CID = cid
	s.Room = room
	s.Authorized = true
	s.UpdatedAt = now
	m.byUser[cid] = s
	return evicted, nil
}

// Lookup resolves a cid to its live peer.
func (m *ConnManager) Lookup(cid string) (Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byUser[cid]
	if !ok || s.Peer == nil {
		return nil, false
	}
	return s.Peer, true
}

// RemoveConn drops a connection from both indexes and returns a copy of the
// removed session. The cid entry is only cleared when it still points at
// this very connection, so a superseded session's late disconnect can never
// remove its successor. Second and later calls report ok=false.
func (m *ConnManager) RemoveConn(connID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return Session{}, false
	}
	delete(m.byConn, connID)
	if s.Authorized {
		if cur, ok := m.byUser[s.CID]; ok && cur == s {
			delete(m.byUser, s.CID)
		}
	}
	return *s, true
}

// Evict force-disconnects the session registered under cid: the peer is
// notified, removed from both indexes and closed. Idempotent.
func (m *ConnManager) Evict(cid, reason string) (Session, bool) {
	m.mu.Lock()
	s, ok := m.byUser[cid]
	if !ok {
		m.mu.Unlock()
		return Session{}, false
	}
	delete(m.byUser, cid)
	delete(m.byConn, s.ConnID)
	removed := *s
	m.mu.Unlock()

	_ = removed.Peer.Emit(EventForcedOffline, map[string]any{"reason": reason})
	closeQuiet(removed.Peer)
	return removed, true
}

// Counts returns (connections, authenticated identities).
func (m *ConnManager) Counts() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn), len(m.byUser)
}

// ===== Sweeper =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

// sweepOnce kicks connections that never authenticated within UnauthTTL.
// Authorized sessions are left alone; transport heartbeats own their liveness.
func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*Session

	m.mu.Lock()
	for connID, s := range m.byConn {
		if !s.Authorized && now.Sub(s.CreatedAt) > m.conf.UnauthTTL {
			delete(m.byConn, connID)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		logger.Debugf("[conns] sweeping unauth conn=%s age>%s", s.ConnID, m.conf.UnauthTTL)
		closeQuiet(s.Peer)
	}
}

func closeQuiet(p Peer) {
	if p != nil {
		_ = p.Close()
	}
}

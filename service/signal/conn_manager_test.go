package signal

import (
	"testing"
	"time"
)

func newTestManager() *ConnManager {
	return NewConnManagerWithConf(ManagerConf{
		UnauthTTL:  30 * time.Second,
		SweepEvery: time.Hour, // sweeps driven manually in tests
	}, "node-test")
}

func TestBindAndLookup(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	p := newFakePeer("c1")
	if _, err := m.AddUnauth("c1", p); err != nil {
		t.Fatalf("AddUnauth: %v", err)
	}
	if _, _, authed := m.Identity("c1"); authed {
		t.Fatal("fresh connection must not be authenticated")
	}

	evicted, err := m.Bind("c1", "alice", "r1")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if evicted != nil {
		t.Fatal("first bind must not evict")
	}

	cid, room, authed := m.Identity("c1")
	if !authed || cid != "alice" || room != "r1" {
		t.Fatalf("Identity = (%q,%q,%v), want (alice,r1,true)", cid, room, authed)
	}
	got, ok := m.Lookup("alice")
	if !ok || got != Peer(p) {
		t.Fatal("Lookup must return the bound peer")
	}
}

func TestSingleSessionInvariant(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	p1 := newFakePeer("c1")
	p2 := newFakePeer("c2")
	_, _ = m.AddUnauth("c1", p1)
	_, _ = m.AddUnauth("c2", p2)

	if _, err := m.Bind("c1", "alice", "r1"); err != nil {
		t.Fatalf("bind c1: %v", err)
	}
	evicted, err := m.Bind("c2", "alice", "r2")
	if err != nil {
		t.Fatalf("bind c2: %v", err)
	}
	if evicted == nil || evicted.Peer != Peer(p1) || evicted.Room != "r1" {
		t.Fatalf("second bind must evict the first session, got %+v", evicted)
	}

	got, ok := m.Lookup("alice")
	if !ok || got != Peer(p2) {
		t.Fatal("directory must hold exactly the newest connection")
	}
	conns, users := m.Counts()
	if conns != 1 || users != 1 {
		t.Fatalf("Counts = (%d,%d), want (1,1)", conns, users)
	}
}

func TestRemoveConnIdentityGuard(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	p1 := newFakePeer("c1")
	p2 := newFakePeer("c2")
	_, _ = m.AddUnauth("c1", p1)
	_, _ = m.AddUnauth("c2", p2)
	_, _ = m.Bind("c1", "alice", "r1")
	_, _ = m.Bind("c2", "alice", "r1")

	// Late disconnect notification from the superseded connection.
	if _, ok := m.RemoveConn("c1"); ok {
		t.Fatal("evicted connection must already be gone")
	}
	if _, ok := m.Lookup("alice"); !ok {
		t.Fatal("successor session must survive the stale disconnect")
	}

	removed, ok := m.RemoveConn("c2")
	if !ok || removed.CID != "alice" {
		t.Fatalf("RemoveConn(c2) = (%+v,%v)", removed, ok)
	}
	if _, ok := m.Lookup("alice"); ok {
		t.Fatal("alice must be gone after her live connection is removed")
	}
}

func TestEvictIdempotent(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	p := newFakePeer("c1")
	_, _ = m.AddUnauth("c1", p)
	_, _ = m.Bind("c1", "alice", "r1")

	removed, ok := m.Evict("alice", "kicked")
	if !ok || removed.CID != "alice" {
		t.Fatalf("first Evict = (%+v,%v)", removed, ok)
	}
	if !p.isClosed() {
		t.Fatal("evicted peer must be closed")
	}
	if evs := p.eventsNamed(EventForcedOffline); len(evs) != 1 {
		t.Fatalf("want one forced-offline notification, got %d", len(evs))
	}

	if _, ok := m.Evict("alice", "kicked"); ok {
		t.Fatal("second Evict must be a no-op")
	}
	if conns, users := m.Counts(); conns != 0 || users != 0 {
		t.Fatalf("Counts = (%d,%d), want (0,0)", conns, users)
	}
}

func TestSweepKicksOnlyUnauth(t *testing.T) {
	now := time.Now()
	m := NewConnManagerWithConf(ManagerConf{
		UnauthTTL:  10 * time.Second,
		SweepEvery: time.Hour,
		Clock:      func() time.Time { return now },
	}, "node-test")
	defer m.Close()

	stale := newFakePeer("stale")
	fresh := newFakePeer("fresh")
	authed := newFakePeer("authed")
	_, _ = m.AddUnauth("stale", stale)
	_, _ = m.AddUnauth("authed", authed)
	_, _ = m.Bind("authed", "alice", "r1")

	now = now.Add(11 * time.Second)
	_, _ = m.AddUnauth("fresh", fresh)

	m.sweepOnce(now)

	if !stale.isClosed() {
		t.Fatal("stale unauth connection must be swept")
	}
	if fresh.isClosed() || authed.isClosed() {
		t.Fatal("fresh and authenticated connections must survive the sweep")
	}
	if _, ok := m.Lookup("alice"); !ok {
		t.Fatal("authenticated session must survive the sweep")
	}
}

func TestCloseClosesEverything(t *testing.T) {
	m := newTestManager()

	p1 := newFakePeer("c1")
	p2 := newFakePeer("c2")
	_, _ = m.AddUnauth("c1", p1)
	_, _ = m.AddUnauth("c2", p2)
	_, _ = m.Bind("c1", "alice", "r1")

	m.Close()

	if !p1.isClosed() || !p2.isClosed() {
		t.Fatal("Close must close every connection")
	}
	if conns, users := m.Counts(); conns != 0 || users != 0 {
		t.Fatalf("Counts = (%d,%d), want (0,0)", conns, users)
	}
}

package signal

import (
	"sync"
	"time"
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

func (p *fakePeer) lastAck() (fakeAck, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.acks) == 0 {
		return fakeAck{}, false
	}
	return p.acks[len(p.acks)-1], true
}

// waitUntil polls cond for up to a second; some side effects run on
// fire-and-forget goroutines.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

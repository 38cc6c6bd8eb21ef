package signal

import (
	"sort"
	"sync"

	"github.com/1314wu/server-p2p-signal/logger"
)

// RoomManager maps room identity -> member cids. Rooms are created lazily
// on first join and deleted as soon as the member set empties; an existing
// room therefore always has at least one member. Delivery goes through the
// connection directory so the registry never holds peers itself.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
	conns *ConnManager
}

func NewRoomManager(conns *ConnManager) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]struct{}),
		conns: conns,
	}
}

// Join inserts cid into the room and returns two sorted snapshots: the
// members excluding the joiner (for the joiner's "who else is here" view)
// and the full member list (for broadcast payloads).
func (r *RoomManager) Join(room, cid string) (others, all []string) {
	r.mu.Lock()
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[room] = set
	}
	for member := range set {
		if member != cid {
			others = append(others, member)
		}
	}
	set[cid] = struct{}{}
	all = make([]string, 0, len(set))
	for member := range set {
		all = append(all, member)
	}
	r.mu.Unlock()

	sort.Strings(others)
	sort.Strings(all)
	return others, all
}

// Leave removes cid from the room. The room entry itself is deleted once
// empty. Returns the sorted remaining members and whether cid was present.
func (r *RoomManager) Leave(room, cid string) (remaining []string, left bool) {
	r.mu.Lock()
	set, ok := r.rooms[room]
	if ok {
		if _, left = set[cid]; left {
			delete(set, cid)
			if len(set) == 0 {
				delete(r.rooms, room)
			}
		}
		remaining = make([]string, 0, len(set))
		for member := range set {
			remaining = append(remaining, member)
		}
	}
	r.mu.Unlock()

	sort.Strings(remaining)
	return remaining, left
}

// Members returns the sorted member snapshot, nil for an absent room.
func (r *RoomManager) Members(room string) []string {
	r.mu.RLock()
	set, ok := r.rooms[room]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Broadcast emits the event to every current member of the room except the
// excluded cids, resolving peers through the connection directory at send
// time. Members without a live connection are skipped silently; the
// delivered count is returned for logging.
func (r *RoomManager) Broadcast(room, event string, data map[string]any, exclude ...string) int {
	members := r.Members(room)
	if len(members) == 0 {
		return 0
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, cid := range exclude {
		skip[cid] = struct{}{}
	}

	delivered := 0
	for _, cid := range members {
		if _, ok := skip[cid]; ok {
			continue
		}
		p, ok := r.conns.Lookup(cid)
		if !ok {
			// Member mid-teardown, best effort only.
			continue
		}
		if err := p.Emit(event, data); err != nil {
			logger.Debugf("[rooms] broadcast %s to %s failed: %v", event, cid, err)
			continue
		}
		delivered++
	}
	return delivered
}

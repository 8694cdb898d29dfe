package rooms

import "sync"

// Index maps connections to rooms in both directions.
type Index struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // roomID -> connIDs
	conns map[string]map[string]struct{} // connID -> roomIDs
}

// New creates an empty index.
func New() *Index {
	return &Index{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to roomID. It reports whether membership changed.
func (x *Index) Join(connID, roomID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	members := x.rooms[roomID]
	if members == nil {
		members = make(map[string]struct{})
		x.rooms[roomID] = members
	}
	if _, ok := members[connID]; ok {
		return false
	}
	members[connID] = struct{}{}

	joined := x.conns[connID]
	if joined == nil {
		joined = make(map[string]struct{})
		x.conns[connID] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave removes connID from roomID, deleting the room once empty.
func (x *Index) Leave(connID, roomID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.leaveLocked(connID, roomID)
}

// LeaveAll removes connID from every room and returns the rooms it left.
func (x *Index) LeaveAll(connID string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	joined := x.conns[connID]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		x.leaveLocked(connID, roomID)
	}
	return left
}

// MembersOf returns a copy of the room's member set.
func (x *Index) MembersOf(roomID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	members := x.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns the rooms connID has joined.
func (x *Index) RoomsOf(connID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	joined := x.conns[connID]
	ids := make([]string, 0, len(joined))
	for id := range joined {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the member count of roomID.
func (x *Index) Size(roomID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rooms[roomID])
}

// Rooms returns room names with their member counts.
func (x *Index) Rooms() map[string]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	result := make(map[string]int, len(x.rooms))
	for id, members := range x.rooms {
		result[id] = len(members)
	}
	return result
}

func (x *Index) leaveLocked(connID, roomID string) bool {
	members, ok := x.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(x.rooms, roomID)
	}
	if joined := x.conns[connID]; joined != nil {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(x.conns, connID)
		}
	}
	return true
}

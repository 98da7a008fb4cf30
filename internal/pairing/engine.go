// Package pairing owns all matchmaking state: the waiting pool, the room
// table, and the connection-to-room mapping. A single mutex serializes every
// transition so that concurrent seekers can never double-pair, and teardown
// is idempotent. The engine performs no I/O; callers deliver the resulting
// notifications after each call returns.
package pairing

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// Room is an ephemeral two-party context. Its ID is a capability token:
// unguessable, generated fresh per pairing, and required for nothing beyond
// report correlation (relay routing uses the server-side mapping only).
type Room struct {
	ID      string
	Members [2]string
}

// Partner returns the other member of the room.
func (r Room) Partner(connID string) (string, bool) {
	switch connID {
	case r.Members[0]:
		return r.Members[1], true
	case r.Members[1]:
		return r.Members[0], true
	}
	return "", false
}

// IsMember reports whether a connection belongs to this room.
func (r Room) IsMember(connID string) bool {
	return connID == r.Members[0] || connID == r.Members[1]
}

// SeekOutcome describes the result of a Seek call.
type SeekOutcome int

const (
	// SeekWaiting — the pool was empty; the seeker is now queued.
	SeekWaiting SeekOutcome = iota
	// SeekAlreadyWaiting — the seeker was already queued; nothing changed.
	SeekAlreadyWaiting
	// SeekPaired — a partner was found and a room created.
	SeekPaired
)

// SeekResult carries everything the caller needs to notify the affected
// connections after the pairing transaction has committed.
type SeekResult struct {
	Outcome   SeekOutcome
	Room      string
	Partner   string
	Initiator bool // the seeker's flag; the partner receives the negation

	// If the seeker was still paired when it sought again, its old room was
	// torn down as part of the same transaction. PrevPartner (when non-empty)
	// must be sent partner_left before any matched event.
	PrevRoom    string
	PrevPartner string
}

// LeaveResult describes a skip or disconnect teardown.
type LeaveResult struct {
	TornDown bool   // false when the connection was not in a room (benign)
	Room     string
	Partner  string // member to notify with partner_left
}

// DisconnectResult describes full state removal for a closing connection.
type DisconnectResult struct {
	WasWaiting bool
	LeaveResult
}

// Engine is the single owner of all pairing state.
type Engine struct {
	mu     sync.Mutex
	pool   *Pool
	rooms  map[string]Room
	roomOf map[string]string // connID -> room ID
}

// NewEngine creates an Engine with empty state.
func NewEngine() *Engine {
	return &Engine{
		pool:   NewPool(),
		rooms:  make(map[string]Room),
		roomOf: make(map[string]string),
	}
}

// Seek runs the whole pairing transaction for one connection: idempotence
// check, partner selection, room creation, and mapping updates happen under
// one lock acquisition. No I/O or event delivery happens inside it.
func (e *Engine) Seek(connID string) SeekResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool.Contains(connID) {
		return SeekResult{Outcome: SeekAlreadyWaiting}
	}

	var res SeekResult

	// A seeker still mapped to a room is skipping implicitly: tear the old
	// room down in the same transaction so the connection is never in two
	// rooms, even transiently.
	if old, ok := e.teardownLocked(connID); ok {
		res.PrevRoom = old.ID
		res.PrevPartner, _ = old.Partner(connID)
	}

	partner, ok := e.pool.PopRandom()
	if !ok {
		e.pool.Add(connID)
		res.Outcome = SeekWaiting
		return res
	}

	room := Room{ID: newRoomID(), Members: [2]string{partner, connID}}
	e.rooms[room.ID] = room
	e.roomOf[partner] = room.ID
	e.roomOf[connID] = room.ID

	res.Outcome = SeekPaired
	res.Room = room.ID
	res.Partner = partner
	res.Initiator = rand.IntN(2) == 0
	return res
}

// Skip tears down the caller's room, if any. Idempotent: a second caller
// (simultaneous skip or disconnect of both peers) observes TornDown=false
// and must not notify anyone.
func (e *Engine) Skip(connID string) LeaveResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaveLocked(connID)
}

// Disconnect removes every trace of a closing connection: waiting pool
// membership and, when paired, the room. It must run before the connection
// task exits so no later seeker can match the dead connection.
func (e *Engine) Disconnect(connID string) DisconnectResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	return DisconnectResult{
		WasWaiting:  e.pool.Remove(connID),
		LeaveResult: e.leaveLocked(connID),
	}
}

// PeerOf resolves the sender's room and partner for relay. ok=false means
// the sender has no room (typically a race with teardown) and the caller
// treats the relay as a no-op.
func (e *Engine) PeerOf(connID string) (roomID, peer string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	roomID, mapped := e.roomOf[connID]
	if !mapped {
		return "", "", false
	}
	peer, _ = e.rooms[roomID].Partner(connID)
	return roomID, peer, true
}

// Members returns the room with the given ID, if it still exists. Used by
// the report sink to infer the reported peer at submission time.
func (e *Engine) Members(roomID string) (Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms[roomID]
	return room, ok
}

// WaitingLen returns the current waiting pool size.
func (e *Engine) WaitingLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len()
}

// RoomCount returns the number of live rooms.
func (e *Engine) RoomCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rooms)
}

// leaveLocked tears down connID's room and reports the partner to notify.
// Callers must hold e.mu.
func (e *Engine) leaveLocked(connID string) LeaveResult {
	room, ok := e.teardownLocked(connID)
	if !ok {
		return LeaveResult{}
	}
	partner, _ := room.Partner(connID)
	return LeaveResult{TornDown: true, Room: room.ID, Partner: partner}
}

// teardownLocked removes the room containing connID together with both
// members' mappings. Both mappings go in the same critical section so a peer
// never observes a half-torn-down room. Callers must hold e.mu.
func (e *Engine) teardownLocked(connID string) (Room, bool) {
	roomID, ok := e.roomOf[connID]
	if !ok {
		return Room{}, false
	}
	room := e.rooms[roomID]
	for _, member := range room.Members {
		delete(e.roomOf, member)
	}
	delete(e.rooms, roomID)
	return room, true
}

// newRoomID generates an unguessable room token. uuid.New is backed by
// crypto/rand, so tokens cannot be predicted by a third connection.
func newRoomID() string {
	u := uuid.New()
	return fmt.Sprintf("room_%x", u[:])
}

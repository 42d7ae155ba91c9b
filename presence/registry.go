// Package presence tracks which user is reachable on which live connection.
// Entries are process-local and rebuilt from scratch on every connection
// event; they have no authority over stored data.
package presence

import (
	"log"
	"sync"
)

// Conn is the slice of a websocket connection the registry needs. Satisfied
// by *websocket.Conn and by test fakes.
type Conn interface {
	WriteJSON(v interface{}) error
}

type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]Conn)}
}

// Register associates userID with conn, overwriting any prior association.
// Last connection wins: a user connected twice only receives pushes on the
// newest socket.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()
}

// Unregister removes every entry whose connection equals conn. Called on
// disconnect; a user who reconnected in the meantime keeps the newer entry.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	for userID, c := range r.conns {
		if c == conn {
			delete(r.conns, userID)
		}
	}
	r.mu.Unlock()
}

// Lookup returns the live connection for userID, if any. Absence means no
// push is attempted; there is no offline queue.
func (r *Registry) Lookup(userID int64) (Conn, bool) {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	return conn, ok
}

// Push writes v to userID's connection if one is registered. A write failure
// evicts the dead connection. Offline recipients are a normal, silent
// outcome: durability is the store's job, not the push channel's.
func (r *Registry) Push(userID int64, v interface{}) {
	conn, ok := r.Lookup(userID)
	if !ok {
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("Error pushing to user %d: %v", userID, err)
		r.mu.Lock()
		if c, ok := r.conns[userID]; ok && c == conn {
			delete(r.conns, userID)
		}
		r.mu.Unlock()
	}
}

// Online reports whether userID currently has a registered connection.
func (r *Registry) Online(userID int64) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

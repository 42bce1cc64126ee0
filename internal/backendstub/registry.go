package backendstub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Registry tracks the live socket of each guest session. A newer socket
// for the same session replaces and closes the older one.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*websocket.Conn)}
}

func (r *Registry) Add(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[sessionID]; ok && old != conn {
		_ = old.Close()
	}
	r.conns[sessionID] = conn
}

func (r *Registry) Get(sessionID string) (*websocket.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[sessionID]
	return conn, ok
}

// Remove forgets conn if it is still the session's current socket.
func (r *Registry) Remove(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[sessionID]; ok && cur == conn {
		delete(r.conns, sessionID)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered socket.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionID, conn := range r.conns {
		_ = conn.Close()
		delete(r.conns, sessionID)
	}
}

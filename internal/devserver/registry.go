package devserver

import (
	"slices"
	"strings"
	"sync"
)

// ObjectRegistry indexes live connections by connection id and by the object
// id they registered with.
type ObjectRegistry struct {
	mu       sync.RWMutex
	store    map[string]Conn
	byObject map[string]Conn
}

func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{
		store:    make(map[string]Conn),
		byObject: make(map[string]Conn),
	}
}

func (r *ObjectRegistry) Store(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[conn.Meta().Id] = conn
}

// Bind associates objectID with conn. A previous connection of the same
// object is returned so the caller can close it.
func (r *ObjectRegistry) Bind(objectID string, conn Conn) (previous Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byObject[objectID]; ok && prev != conn {
		previous = prev
	}
	r.byObject[objectID] = conn
	return previous
}

func (r *ObjectRegistry) Get(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.store[id]
	return val, ok
}

func (r *ObjectRegistry) Lookup(objectID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.byObject[objectID]
	return val, ok
}

func (r *ObjectRegistry) Delete(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, conn.Meta().Id)
	if objectID := conn.Meta().objectID(); objectID != "" && r.byObject[objectID] == conn {
		delete(r.byObject, objectID)
	}
}

// List returns the connections ordered by connection id.
func (r *ObjectRegistry) List() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.store))
	for _, conn := range r.store {
		conns = append(conns, conn)
	}
	slices.SortFunc(conns, func(a, b Conn) int { return strings.Compare(a.Meta().Id, b.Meta().Id) })
	return conns
}

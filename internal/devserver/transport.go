package devserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alivecode/aliot-go/proto"
)

// ObjectMetadata describes one connected object.
type ObjectMetadata struct {
	Id          string // connection id
	ObjectID    string // set by connect_object
	RemoteAddr  string
	ConnectedAt time.Time
	LastSeen    time.Time
	Subs        map[string]struct{}
	Mu          sync.RWMutex
}

// Conn is the server side of an object connection.
type Conn interface {
	Send(proto.Message) error
	Close() error
	Meta() *ObjectMetadata
}

func (m *ObjectMetadata) init(prefix, remoteAddr string) {
	now := time.Now()
	m.Id = generateConnId(prefix)
	m.RemoteAddr = remoteAddr
	m.ConnectedAt = now
	m.LastSeen = now
	m.Subs = make(map[string]struct{})
}

func (m *ObjectMetadata) objectID() string {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	return m.ObjectID
}

func (m *ObjectMetadata) touch() {
	m.Mu.Lock()
	m.LastSeen = time.Now()
	m.Mu.Unlock()
}

func generateConnId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

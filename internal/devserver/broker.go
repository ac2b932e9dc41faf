package devserver

import (
	"log/slog"
	"sync"

	"github.com/alivecode/aliot-go/proto"
)

// Broker fans document updates out to the connections watching their fields.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[Conn]struct{} // field to hashset of connections
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[Conn]struct{}),
	}
}

func (b *Broker) Subscribe(field string, conn Conn) {
	slog.Debug("Subscribing", "field", field, "conn", conn.Meta().Id)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[field] == nil {
		b.subs[field] = make(map[Conn]struct{})
	}
	b.subs[field][conn] = struct{}{}

	conn.Meta().Mu.Lock()
	conn.Meta().Subs[field] = struct{}{}
	conn.Meta().Mu.Unlock()
}

// Publish sends each subscriber the part of fields it watches, as one
// receive_listen event. It returns the number of connections reached.
func (b *Broker) Publish(fields map[string]any) int {
	b.mu.RLock()
	matched := make(map[Conn]map[string]any)
	for name, value := range fields {
		for conn := range b.subs[name] {
			if matched[conn] == nil {
				matched[conn] = make(map[string]any)
			}
			matched[conn][name] = value
		}
	}
	b.mu.RUnlock()

	sentCount := 0
	for conn, subset := range matched {
		err := conn.Send(proto.Message{Event: proto.ReceiveListen, Data: map[string]any{"fields": subset}})
		if err != nil {
			slog.Warn("There was an error publishing an update to a subscriber", "conn", conn.Meta().Id, "error", err.Error())
			continue
		}
		sentCount++
	}
	slog.Debug("Update published", "fields", len(fields), "subscribers", sentCount)
	return sentCount
}

// UnsubscribeAll drops every subscription of conn.
func (b *Broker) UnsubscribeAll(conn Conn) {
	slog.Debug("Unsubscribing", "conn", conn.Meta().Id)
	b.mu.Lock()
	defer b.mu.Unlock()

	for field, subs := range b.subs {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(b.subs, field)
		}
	}
}

// Subscribers counts the connections watching field.
func (b *Broker) Subscribers(field string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[field])
}

// Package devserver is a local coordination server for objects. It speaks the
// object side of the event vocabulary so objects can be run and tested
// without the hosted service.
package devserver

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alivecode/aliot-go/proto"
)

// Route is a send_route call recorded by the server.
type Route struct {
	ObjectID  string    `json:"object_id"`
	RoutePath string    `json:"route_path"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

// ActionResult is a send_action_done reported by an object.
type ActionResult struct {
	ObjectID string    `json:"object_id"`
	ActionID int       `json:"action_id"`
	Value    any       `json:"value"`
	At       time.Time `json:"at"`
}

type Coordinator struct {
	Registry *ObjectRegistry
	Broker   *Broker
	Document *Document

	// AllowedObjects restricts connect_object to these ids when not empty.
	AllowedObjects []string

	historyMu sync.Mutex
	routes    []Route
	results   []ActionResult
}

func NewCoordinator(registry *ObjectRegistry, broker *Broker, doc *Document) *Coordinator {
	return &Coordinator{Registry: registry, Broker: broker, Document: doc}
}

func (c *Coordinator) RegisterConn(conn Conn) error {
	c.Registry.Store(conn)
	slog.Info("Registered connection", "conn", conn.Meta().Id, "addr", conn.Meta().RemoteAddr)
	return nil
}

func (c *Coordinator) UnregisterConn(conn Conn) {
	c.Broker.UnsubscribeAll(conn)
	c.Registry.Delete(conn)
	slog.Info("Unregistered connection", "conn", conn.Meta().Id, "object", conn.Meta().objectID())
}

// Routes returns the recorded send_route calls, oldest first.
func (c *Coordinator) Routes() []Route {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return slices.Clone(c.routes)
}

// ActionResults returns the recorded send_action_done events, oldest first.
func (c *Coordinator) ActionResults() []ActionResult {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return slices.Clone(c.results)
}

// PingAll sends a ping to every registered object.
func (c *Coordinator) PingAll() {
	for _, conn := range c.Registry.List() {
		if conn.Meta().objectID() == "" {
			continue
		}
		if err := conn.Send(proto.Message{Event: proto.Ping}); err != nil {
			slog.Warn("Failed to ping object", "conn", conn.Meta().Id, "error", err)
		}
	}
}

func (c *Coordinator) allowed(objectID string) bool {
	return len(c.AllowedObjects) == 0 || slices.Contains(c.AllowedObjects, objectID)
}

package devserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cast"

	"github.com/alivecode/aliot-go/proto"
)

func (c *Coordinator) Handle(conn Conn, msg proto.Message) {
	conn.Meta().touch()

	switch msg.Event {
	case proto.ConnectObject:
		c.handleConnect(conn, msg)

	case proto.SubscribeListener:
		c.handleSubscribe(conn, msg)

	case proto.UpdateDoc, proto.UpdateComponent:
		c.handleUpdate(conn, msg)

	case proto.SendBroadcast:
		c.handleBroadcast(conn, msg)

	case proto.SendAction:
		c.handleSendAction(conn, msg)

	case proto.SendActionDone:
		c.handleActionDone(conn, msg)

	case proto.SendRoute:
		c.handleRoute(conn, msg)

	case proto.Pong:
		slog.Debug("Pong received", "conn", conn.Meta().Id)

	default:
		slog.Warn("Unhandled event", "event", msg.Event, "conn", conn.Meta().Id)
		c.reject(conn, fmt.Sprintf("unsupported event %q", msg.Event))
	}
}

func (c *Coordinator) reject(conn Conn, reason string) {
	if err := conn.Send(proto.Message{Event: proto.Error, Data: reason}); err != nil {
		slog.Warn("Failed to send error", "conn", conn.Meta().Id, "error", err)
	}
}

// registered returns the object id of conn, rejecting events from
// connections that never sent connect_object.
func (c *Coordinator) registered(conn Conn) (string, bool) {
	objectID := conn.Meta().objectID()
	if objectID == "" {
		c.reject(conn, "object is not connected")
		return "", false
	}
	return objectID, true
}

// ---------- connection ---------- //

func (c *Coordinator) handleConnect(conn Conn, msg proto.Message) {
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "connect_object needs an id")
		return
	}
	objectID := cast.ToString(data["id"])
	if objectID == "" || !c.allowed(objectID) {
		// The hosted server drops the socket for unknown objects
		slog.Warn("Refused object", "conn", conn.Meta().Id, "object", objectID)
		conn.Close()
		return
	}

	conn.Meta().Mu.Lock()
	conn.Meta().ObjectID = objectID
	conn.Meta().Mu.Unlock()

	if prev := c.Registry.Bind(objectID, conn); prev != nil {
		slog.Info("Object reconnected, closing previous connection", "object", objectID, "previous", prev.Meta().Id)
		prev.Close()
	}

	slog.Info("Object connected", "object", objectID, "conn", conn.Meta().Id)
	conn.Send(proto.Message{Event: proto.ConnectSuccess})
}

// ---------- document ---------- //

// handleSubscribe acknowledges each subscribed field separately.
func (c *Coordinator) handleSubscribe(conn Conn, msg proto.Message) {
	if _, ok := c.registered(conn); !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "subscribe_listener needs fields")
		return
	}
	fields, err := cast.ToStringSliceE(data["fields"])
	if err != nil || len(fields) == 0 {
		c.reject(conn, "subscribe_listener needs fields")
		return
	}

	for _, field := range fields {
		c.Broker.Subscribe(field, conn)
		if err := conn.Send(proto.Message{Event: proto.SubscribeListenerSuccess, Data: map[string]any{"field": field}}); err != nil {
			slog.Warn("Failed to acknowledge subscription", "conn", conn.Meta().Id, "field", field, "error", err)
		}
	}
}

func (c *Coordinator) handleUpdate(conn Conn, msg proto.Message) {
	if _, ok := c.registered(conn); !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, fmt.Sprintf("%s needs an object payload", msg.Event))
		return
	}

	var fields map[string]any
	if msg.Event == proto.UpdateComponent {
		fields = map[string]any{cast.ToString(data["id"]): data["value"]}
	} else if fields, err = cast.ToStringMapE(data["fields"]); err != nil {
		c.reject(conn, "update_doc needs fields")
		return
	}

	c.Document.Update(fields)
	c.Broker.Publish(fields)
}

// ---------- messaging ---------- //

func (c *Coordinator) handleBroadcast(conn Conn, msg proto.Message) {
	if _, ok := c.registered(conn); !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "send_broadcast needs data")
		return
	}

	out := proto.Message{Event: proto.ReceiveBroadcast, Data: map[string]any{"data": data["data"]}}
	sent := 0
	for _, other := range c.Registry.List() {
		if other == conn || other.Meta().objectID() == "" {
			continue
		}
		if err := other.Send(out); err != nil {
			slog.Warn("Failed to deliver broadcast", "conn", other.Meta().Id, "error", err)
			continue
		}
		sent++
	}
	slog.Debug("Broadcast relayed", "from", conn.Meta().Id, "recipients", sent)
}

func (c *Coordinator) handleSendAction(conn Conn, msg proto.Message) {
	if _, ok := c.registered(conn); !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "send_action needs a payload")
		return
	}
	targetID := cast.ToString(data["targetId"])
	if err := c.SendAction(targetID, data["actionId"], data["value"]); err != nil {
		c.reject(conn, err.Error())
	}
}

// SendAction relays one action record to the object registered as objectID.
func (c *Coordinator) SendAction(objectID string, actionID, value any) error {
	id, err := cast.ToIntE(actionID)
	if err != nil {
		return fmt.Errorf("action id %v is not an integer", actionID)
	}
	target, ok := c.Registry.Lookup(objectID)
	if !ok {
		return fmt.Errorf("object %s is not connected", objectID)
	}
	record := map[string]any{"id": id, "value": value}
	if err := target.Send(proto.Message{Event: proto.ReceiveAction, Data: record}); err != nil {
		slog.Warn("Failed to relay action", "target", objectID, "action_id", id, "error", err)
		return err
	}
	return nil
}

func (c *Coordinator) handleActionDone(conn Conn, msg proto.Message) {
	objectID, ok := c.registered(conn)
	if !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "send_action_done needs a payload")
		return
	}
	result := ActionResult{
		ObjectID: objectID,
		ActionID: cast.ToInt(data["actionId"]),
		Value:    data["value"],
		At:       time.Now(),
	}

	c.historyMu.Lock()
	c.results = append(c.results, result)
	c.historyMu.Unlock()
	slog.Info("Action done", "object", objectID, "action_id", result.ActionID)
}

func (c *Coordinator) handleRoute(conn Conn, msg proto.Message) {
	objectID, ok := c.registered(conn)
	if !ok {
		return
	}
	data, err := cast.ToStringMapE(msg.Data)
	if err != nil {
		c.reject(conn, "send_route needs a payload")
		return
	}
	route := Route{
		ObjectID:  objectID,
		RoutePath: cast.ToString(data["routePath"]),
		Data:      data["data"],
		At:        time.Now(),
	}

	c.historyMu.Lock()
	c.routes = append(c.routes, route)
	c.historyMu.Unlock()
	slog.Info("Route triggered", "object", objectID, "route", route.RoutePath)
}

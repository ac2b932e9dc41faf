package client

import (
	"fmt"

	"github.com/alivecode/aliot-go/proto"
)

// send encodes and writes one event. It does nothing while the transport is
// not connected.
func (c *Client) send(s *session, event proto.Event, data any) error {
	if s == nil || !s.state.isConnected() {
		c.logger.Debug("Dropped event while disconnected", "event", event)
		return nil
	}

	if c.throttle != nil {
		if err := c.throttle.Wait(s.ctx); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
	}

	frame, err := c.encoder.Encode(proto.Message{Event: event, Data: data}.Value())
	if err != nil {
		c.reporter.Failure("Could not encode event", "event", event, "error", err)
		return fmt.Errorf("send %s: %w", event, err)
	}

	c.writeMu.Lock()
	err = c.transport.Send(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.reporter.Warning("Could not send event", "event", event, "session", s.id, "error", err)
		return fmt.Errorf("send %s: %w", event, err)
	}

	c.sent.Add(1)
	c.metrics.EventsSent.WithLabelValues(string(event)).Inc()
	c.logger.Debug("Event sent", "event", event, "session", s.id, "size", len(frame))
	return nil
}

// UpdateDoc writes fields into the project document.
func (c *Client) UpdateDoc(fields map[string]any) error {
	return c.send(c.current(), proto.UpdateDoc, proto.UpdateDocPayload{Fields: fields})
}

// Broadcast relays data to the other objects of the project.
func (c *Client) Broadcast(data any) error {
	return c.send(c.current(), proto.SendBroadcast, proto.BroadcastPayload{Data: data})
}

// SendAction asks the object targetID to run one of its actions.
func (c *Client) SendAction(targetID string, actionID int, value any) error {
	return c.send(c.current(), proto.SendAction, proto.SendActionPayload{
		TargetID: targetID,
		ActionID: actionID,
		Value:    value,
	})
}

// SendRoute triggers a route of the project.
func (c *Client) SendRoute(routePath string, data any) error {
	return c.send(c.current(), proto.SendRoute, proto.RoutePayload{RoutePath: routePath, Data: data})
}

// Deprecated: use UpdateDoc.
func (c *Client) UpdateComponent(id string, value any) error {
	return c.send(c.current(), proto.UpdateComponent, proto.UpdateComponentPayload{ID: id, Value: value})
}

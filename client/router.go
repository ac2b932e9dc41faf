package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/alivecode/aliot-go/proto"
)

func (c *Client) handleFrame(s *session, frame []byte) {
	v, err := c.decoder.Decode(frame)
	if err != nil {
		c.reporter.Warning("Dropped undecodable frame", "session", s.id, "size", len(frame), "error", err)
		return
	}
	msg, err := proto.FromValue(v)
	if err != nil {
		c.reporter.Warning("Dropped frame without a valid event", "session", s.id, "error", err)
		return
	}

	c.logger.Debug("Message Received", "event", msg.Event, "session", s.id, "size", len(frame))
	label := string(msg.Event)
	if !msg.Event.Known() {
		label = "unknown"
	}
	c.metrics.EventsReceived.WithLabelValues(label).Inc()

	c.route(s, msg)
}

func (c *Client) route(s *session, msg proto.Message) {
	switch msg.Event {
	case proto.ConnectSuccess:
		c.onConnectSuccess(s)

	case proto.SubscribeListenerSuccess:
		c.onSubscribeSuccess(s)

	case proto.ReceiveAction:
		c.executeActions(s, msg.Data)

	case proto.ReceiveListen:
		c.executeListen(s, msg.Data)

	case proto.ReceiveBroadcast:
		c.executeBroadcast(s, msg.Data)

	case proto.Error:
		c.reporter.Failure("Server reported an error", "session", s.id, "data", msg.Data)

	case proto.Ping:
		c.send(s, proto.Pong, nil)

	default:
		// Unknown tags and events this side only emits are ignored.
	}
}

// ---------- actions ---------- //

func (c *Client) executeActions(s *session, data any) {
	entries, ok := data.([]any)
	if !ok {
		entries = []any{data}
	}
	for _, entry := range entries {
		rec, err := proto.ParseActionRecord(entry)
		switch {
		case errors.Is(err, proto.ErrNonIntegerID):
			c.unknownAction(s, rec.RawID)
			return
		case err != nil:
			c.metrics.Actions.WithLabelValues("malformed").Inc()
			c.reporter.Warning("The action received does not have a valid structure", "session", s.id, "record", entry, "error", err)
			continue
		}
		if !c.executeAction(s, rec) {
			return
		}
	}
}

// executeAction runs one record. It returns false once the connection is
// being dropped for an unknown id.
func (c *Client) executeAction(s *session, rec proto.ActionRecord) bool {
	entry, ok := c.actions[rec.ID]
	if !ok {
		c.unknownAction(s, rec.RawID)
		return false
	}

	if entry.logReception {
		c.reporter.Info(fmt.Sprintf("The action %d was called", rec.ID), "action_id", rec.ID, "value", rec.Value)
	}

	result, err := invokeAction(entry.handler, rec.Value)
	if err != nil {
		c.metrics.Actions.WithLabelValues("failed").Inc()
		c.reporter.Failure("Action handler failed", "session", s.id, "action_id", rec.ID, "error", err)
		return true
	}
	c.metrics.Actions.WithLabelValues("done").Inc()

	c.send(s, proto.SendActionDone, proto.ActionDonePayload{ActionID: rec.ID, Value: result})
	return true
}

// unknownAction revokes readiness, which closes the transport. No
// send_action_done goes out for the record.
func (c *Client) unknownAction(s *session, id any) {
	c.metrics.Actions.WithLabelValues("unknown").Inc()
	s.fail(fmt.Errorf("%w: action %v", ErrUnknownAction, id))
	c.setAcknowledged(s, false)
	c.reporter.Failure(fmt.Sprintf("The action with the id %v is not implemented", id), "session", s.id, "action_id", id)
}

func invokeAction(h ActionHandler, value any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(value), nil
}

// ---------- listeners ---------- //

func (c *Client) executeListen(s *session, data any) {
	payload, err := cast.ToStringMapE(data)
	if err != nil {
		c.reporter.Warning("Dropped listen update without fields", "session", s.id, "error", err)
		return
	}
	fields, err := cast.ToStringMapE(payload["fields"])
	if err != nil {
		c.reporter.Warning("Dropped listen update without fields", "session", s.id, "error", err)
		return
	}

	for i, l := range c.listeners {
		matched := make(map[string]any)
		for name, value := range fields {
			if _, ok := l.fields[name]; ok {
				matched[name] = value
			}
		}
		if len(matched) == 0 {
			continue
		}
		if err := safeCall(func() { l.handler(matched) }); err != nil {
			c.reporter.Failure("Listener failed", "session", s.id, "listener", i, "error", err)
		}
	}
}

// ---------- broadcast ---------- //

func (c *Client) executeBroadcast(s *session, data any) {
	if c.broadcast == nil {
		return
	}
	payload, err := cast.ToStringMapE(data)
	if err != nil {
		c.reporter.Warning("Dropped malformed broadcast", "session", s.id, "error", err)
		return
	}
	if err := safeCall(func() { c.broadcast(payload["data"]) }); err != nil {
		c.reporter.Failure("Broadcast listener failed", "session", s.id, "error", err)
	}
}

func safeCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

package proto

import (
	"fmt"
)

// Message is the unit written to and read from the wire. Data holds the
// decoded payload in its generic form (maps, slices, scalars) on the inbound
// side and a payload struct or generic value on the outbound side.
type Message struct {
	Event Event `json:"event"` // e.g. "receive_action", "connect_success"
	Data  any   `json:"data"`  // payload, null for handshake replies and pong
}

// Value returns the generic form handed to an encoder.
func (m Message) Value() map[string]any {
	return map[string]any{"event": string(m.Event), "data": m.Data}
}

// FromValue reads a decoded frame. The frame must be a mapping with a string
// "event" entry; a missing "data" entry yields nil data.
func FromValue(v any) (Message, error) {
	frame, ok := v.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("frame is %T, expected an object", v)
	}
	raw, ok := frame["event"]
	if !ok {
		return Message{}, fmt.Errorf("frame has no event tag")
	}
	tag, ok := raw.(string)
	if !ok {
		return Message{}, fmt.Errorf("event tag is %T, expected a string", raw)
	}
	return Message{Event: Event(tag), Data: frame["data"]}, nil
}

type ConnectObjectPayload struct {
	ID string `json:"id"` // object identifier from configuration
}

type SubscriptionPayload struct {
	Fields []string `json:"fields"` // sorted, deduplicated field names
}

type UpdateDocPayload struct {
	Fields map[string]any `json:"fields"`
}

type BroadcastPayload struct {
	Data any `json:"data"`
}

type SendActionPayload struct {
	TargetID string `json:"targetId"` // object receiving the action
	ActionID int    `json:"actionId"`
	Value    any    `json:"value"`
}

type ActionDonePayload struct {
	ActionID int `json:"actionId"`
	Value    any `json:"value"` // handler result
}

type RoutePayload struct {
	RoutePath string `json:"routePath"`
	Data      any    `json:"data"`
}

// Deprecated: use UpdateDocPayload.
type UpdateComponentPayload struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

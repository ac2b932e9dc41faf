package proto

// Event is the tag carried in the "event" field of every frame.
type Event string

const (
	// Connection events
	ConnectObject  Event = "connect_object"  // out: register this object
	ConnectSuccess Event = "connect_success" // in: registration accepted
	Ping           Event = "ping"
	Pong           Event = "pong"

	// Document events
	UpdateDoc                Event = "update_doc"
	SubscribeListener        Event = "subscribe_listener"
	SubscribeListenerSuccess Event = "subscribe_listener_success"
	ReceiveListen            Event = "receive_listen"

	// Broadcast events
	SendBroadcast    Event = "send_broadcast"
	ReceiveBroadcast Event = "receive_broadcast"

	// Action events
	SendAction     Event = "send_action"
	ReceiveAction  Event = "receive_action"
	SendActionDone Event = "send_action_done"
	SendRoute      Event = "send_route"

	Error Event = "error"

	// Deprecated: superseded by UpdateDoc.
	UpdateComponent Event = "update_component"
)

// Direction tells which side of the connection emits an event.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

var vocabulary = map[Event]Direction{
	ConnectObject:            Outbound,
	ConnectSuccess:           Inbound,
	SubscribeListener:        Outbound,
	SubscribeListenerSuccess: Inbound,
	ReceiveListen:            Inbound,
	SendBroadcast:            Outbound,
	ReceiveBroadcast:         Inbound,
	SendAction:               Outbound,
	ReceiveAction:            Inbound,
	SendActionDone:           Outbound,
	UpdateDoc:                Outbound,
	UpdateComponent:          Outbound,
	SendRoute:                Outbound,
	Error:                    Inbound,
	Ping:                     Inbound,
	Pong:                     Outbound,
}

// Known reports whether e belongs to the event vocabulary.
func (e Event) Known() bool {
	_, ok := vocabulary[e]
	return ok
}

// Direction returns the direction of a known event. Unknown events report
// Inbound with ok set to false.
func (e Event) Direction() (d Direction, ok bool) {
	d, ok = vocabulary[e]
	return d, ok
}

func (e Event) String() string {
	return string(e)
}

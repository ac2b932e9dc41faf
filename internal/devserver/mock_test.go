package devserver

import (
	"errors"
	"sync"

	"github.com/alivecode/aliot-go/proto"
)

// MockConn records what the server sends to one object.
type MockConn struct {
	meta     ObjectMetadata
	messages []proto.Message
	sendErr  error
	closed   bool
	mu       sync.Mutex
}

func NewMockConn() *MockConn {
	c := &MockConn{}
	c.meta.init("mock", "test")
	return c
}

func (mc *MockConn) Send(msg proto.Message) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.sendErr != nil {
		return mc.sendErr
	}
	mc.messages = append(mc.messages, msg)
	return nil
}

func (mc *MockConn) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.closed = true
	return nil
}

func (mc *MockConn) Meta() *ObjectMetadata {
	return &mc.meta
}

func (mc *MockConn) Messages() []proto.Message {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	result := make([]proto.Message, len(mc.messages))
	copy(result, mc.messages)
	return result
}

func (mc *MockConn) Events() []proto.Event {
	var events []proto.Event
	for _, msg := range mc.Messages() {
		events = append(events, msg.Event)
	}
	return events
}

func (mc *MockConn) Closed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.closed
}

func (mc *MockConn) FailSends() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.sendErr = errors.New("connection lost")
}

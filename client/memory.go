package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/proto"
)

// MemoryTransport connects a client to an in-process peer. It backs simulated
// objects and tests: the peer side delivers frames with Deliver and observes
// what the client wrote through Sent.
type MemoryTransport struct {
	inbound  chan []byte
	outbound chan []byte
	failed   chan error

	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32

	connectErr error
	connected  atomic.Bool
	addr       atomic.Value
	codec      codec.Codec
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		inbound:  make(chan []byte, 64),
		outbound: make(chan []byte, 256),
		failed:   make(chan error, 1),
		closed:   make(chan struct{}),
		codec:    codec.JSON{},
	}
}

// FailConnect makes the next Connect return err.
func (t *MemoryTransport) FailConnect(err error) {
	t.connectErr = err
}

func (t *MemoryTransport) Connect(ctx context.Context, url string) error {
	if t.connectErr != nil {
		return t.connectErr
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	t.addr.Store(url)
	t.connected.Store(true)
	return ctx.Err()
}

// Addr is the URL passed to the last Connect.
func (t *MemoryTransport) Addr() string {
	addr, _ := t.addr.Load().(string)
	return addr
}

func (t *MemoryTransport) Send(frame []byte) error {
	if !t.connected.Load() {
		return ErrNotConnected
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	select {
	case t.outbound <- frame:
		return nil
	case <-t.closed:
		return ErrClosed
	}
}

func (t *MemoryTransport) Read() ([]byte, error) {
	select {
	case frame := <-t.inbound:
		return frame, nil
	case err := <-t.failed:
		return nil, err
	case <-t.closed:
		return nil, ErrClosed
	}
}

func (t *MemoryTransport) Close() error {
	t.closes.Add(1)
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// Closes counts calls to Close.
func (t *MemoryTransport) Closes() int {
	return int(t.closes.Load())
}

// Done is closed once the transport is closed.
func (t *MemoryTransport) Done() <-chan struct{} {
	return t.closed
}

// Deliver hands a raw frame to the client.
func (t *MemoryTransport) Deliver(frame []byte) error {
	select {
	case t.inbound <- frame:
		return nil
	case <-t.closed:
		return ErrClosed
	}
}

// DeliverMessage encodes msg as JSON and hands it to the client.
func (t *MemoryTransport) DeliverMessage(event proto.Event, data any) error {
	frame, err := t.codec.Encode(proto.Message{Event: event, Data: data}.Value())
	if err != nil {
		return err
	}
	return t.Deliver(frame)
}

// Fail makes the pending or next Read return err.
func (t *MemoryTransport) Fail(err error) {
	select {
	case t.failed <- err:
	default:
	}
}

// Sent exposes the frames written by the client.
func (t *MemoryTransport) Sent() <-chan []byte {
	return t.outbound
}

// NextMessage waits for the next frame written by the client and decodes it
// as JSON.
func (t *MemoryTransport) NextMessage(timeout time.Duration) (proto.Message, error) {
	select {
	case frame := <-t.outbound:
		v, err := t.codec.Decode(frame)
		if err != nil {
			return proto.Message{}, err
		}
		return proto.FromValue(v)
	case <-time.After(timeout):
		return proto.Message{}, fmt.Errorf("no frame sent within %s", timeout)
	}
}

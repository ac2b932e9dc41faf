package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alivecode/aliot-go/api"
	"github.com/alivecode/aliot-go/config"
	"github.com/alivecode/aliot-go/proto"
)

const waitFor = time.Second

type report struct {
	tier string
	msg  string
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []report
}

func (r *recordingReporter) add(tier, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{tier: tier, msg: msg})
}

func (r *recordingReporter) Success(msg string, _ ...any) { r.add("success", msg) }
func (r *recordingReporter) Info(msg string, _ ...any)    { r.add("info", msg) }
func (r *recordingReporter) Warning(msg string, _ ...any) { r.add("warning", msg) }
func (r *recordingReporter) Failure(msg string, _ ...any) { r.add("failure", msg) }

func (r *recordingReporter) has(tier, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.tier == tier && rep.msg == msg {
			return true
		}
	}
	return false
}

func testConfig() config.Object {
	return config.Object{Name: "thermo", ObjectID: "obj-1", WSURL: "ws://gateway.test/"}
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *MemoryTransport) {
	t.Helper()
	mt := NewMemoryTransport()
	opts = append([]Option{WithTransport(mt)}, opts...)
	c := NewClientWithLogging("thermo", testConfig(), SuppressedLogConfig(), opts...)
	return c, mt
}

// start runs the client and waits for the registration frame.
func start(t *testing.T, c *Client, mt *MemoryTransport) (<-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	msg := expectEvent(t, mt, proto.ConnectObject)
	assert.Equal(t, map[string]any{"id": "obj-1"}, msg.Data)
	t.Cleanup(cancel)
	return errCh, cancel
}

func expectEvent(t *testing.T, mt *MemoryTransport, event proto.Event) proto.Message {
	t.Helper()
	msg, err := mt.NextMessage(waitFor)
	require.NoError(t, err)
	require.Equal(t, event, msg.Event, "unexpected frame %v", msg)
	return msg
}

// barrier delivers a ping and waits for the pong. Inbound frames are handled in
// order, so everything delivered before it has been processed.
func barrier(t *testing.T, mt *MemoryTransport) {
	t.Helper()
	require.NoError(t, mt.DeliverMessage(proto.Ping, nil))
	expectEvent(t, mt, proto.Pong)
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

func handshake(t *testing.T, c *Client, mt *MemoryTransport) {
	t.Helper()
	require.NoError(t, mt.DeliverMessage(proto.ConnectSuccess, nil))
	require.Eventually(t, c.Ready, waitFor, 5*time.Millisecond)
}

func idleLoop(c *Client) error {
	return c.MainLoop(func() {}, WithRepetitions(0))
}

func TestRun_MissingConfig(t *testing.T) {
	mt := NewMemoryTransport()
	c := NewClientWithLogging("thermo", config.Object{WSURL: "ws://x"}, SuppressedLogConfig(), WithTransport(mt))
	require.NoError(t, idleLoop(c))

	err := c.Run(t.Context())
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Empty(t, mt.Addr())
}

func TestRun_NoMainLoop(t *testing.T) {
	c, mt := newTestClient(t)

	err := c.Run(t.Context())
	require.ErrorIs(t, err, ErrNoMainLoop)

	msg := expectEvent(t, mt, proto.ConnectObject)
	assert.Equal(t, map[string]any{"id": "obj-1"}, msg.Data)
	assert.Equal(t, 1, mt.Closes())
	assert.False(t, c.Connected())
}

func TestRun_ConnectFailure(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, idleLoop(c))
	mt.FailConnect(fmt.Errorf("dial: %w", syscall.ECONNRESET))

	err := c.Run(t.Context())
	require.ErrorIs(t, err, syscall.ECONNRESET)
	assert.True(t, rep.has("failure", "Connection error"))
	assert.True(t, rep.has("warning", "If you didn't see the 'CONNECTED' message, verify that you are using the right object id"))
	assert.False(t, c.Ready())
}

func TestRun_CancelClosesOnce(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	errCh, cancel := start(t, c, mt)

	cancel()
	require.NoError(t, waitRun(t, errCh))
	assert.Equal(t, 1, mt.Closes())
	assert.False(t, c.Connected())
	assert.Equal(t, LoopStopped, c.LoopState())
}

func TestRun_ReadFailure(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	errCh, _ := start(t, c, mt)

	boom := errors.New("boom")
	mt.Fail(boom)
	require.ErrorIs(t, waitRun(t, errCh), boom)
	assert.Equal(t, 1, mt.Closes())
}

func TestRun_Discovery(t *testing.T) {
	mt := NewMemoryTransport()
	cfg := testConfig()
	cfg.WSURL = config.DiscoverURL
	c := NewClientWithLogging("thermo", cfg, SuppressedLogConfig(),
		WithTransport(mt),
		WithDiscovery(func(time.Duration) (string, error) { return "ws://10.0.0.5:8888/", nil }),
	)
	require.NoError(t, idleLoop(c))
	_, cancel := start(t, c, mt)
	defer cancel()

	assert.Equal(t, "ws://10.0.0.5:8888/", mt.Addr())
}

func TestRegistration_WhileRunning(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	assert.ErrorIs(t, c.OnAction(1, func(any) any { return nil }), ErrRunning)
	assert.ErrorIs(t, c.Listen([]string{"temp"}, func(map[string]any) {}), ErrRunning)
	assert.ErrorIs(t, c.OnBroadcast(func(any) {}), ErrRunning)
	assert.ErrorIs(t, c.MainLoop(func() {}), ErrRunning)
	assert.ErrorIs(t, c.Run(t.Context()), ErrRunning)
}

func TestListen_RejectsEmptyFields(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Error(t, c.Listen(nil, func(map[string]any) {}))
	assert.Error(t, c.Listen([]string{"temp"}, nil))
}

func TestHandshake_NoListeners(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	assert.True(t, c.Connected())
	assert.False(t, c.Ready())

	handshake(t, c, mt)
	assert.True(t, rep.has("success", "CONNECTED"))
}

func TestHandshake_TwoListeners(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, c.Listen([]string{"temp"}, func(map[string]any) {}))
	require.NoError(t, c.Listen([]string{"hum", "temp"}, func(map[string]any) {}))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ConnectSuccess, nil))
	msg := expectEvent(t, mt, proto.SubscribeListener)
	assert.Equal(t, map[string]any{"fields": []any{"hum", "temp"}}, msg.Data)

	require.NoError(t, mt.DeliverMessage(proto.SubscribeListenerSuccess, nil))
	barrier(t, mt)
	assert.False(t, c.Ready(), "one ack of two must not grant readiness")

	require.NoError(t, mt.DeliverMessage(proto.SubscribeListenerSuccess, nil))
	barrier(t, mt)
	assert.True(t, c.Ready())
}

func TestHandshake_OverlappingListenersWarn(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, c.Listen([]string{"temp"}, func(map[string]any) {}))
	require.NoError(t, c.Listen([]string{"temp"}, func(map[string]any) {}))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ConnectSuccess, nil))
	msg := expectEvent(t, mt, proto.SubscribeListener)
	assert.Equal(t, map[string]any{"fields": []any{"temp"}}, msg.Data)
	assert.True(t, rep.has("warning", "More listeners than subscribed fields, readiness waits for one acknowledgement per listener"))

	require.NoError(t, mt.DeliverMessage(proto.SubscribeListenerSuccess, nil))
	barrier(t, mt)
	assert.False(t, c.Ready())
}

func TestPingPong(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.Ping, nil))
	msg := expectEvent(t, mt, proto.Pong)
	assert.Nil(t, msg.Data)
}

func TestRouter_DropsBadFrames(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.Deliver([]byte("{not json")))
	require.NoError(t, mt.Deliver([]byte(`["no", "event"]`)))
	require.NoError(t, mt.DeliverMessage("made_up_event", map[string]any{"x": 1}))
	require.NoError(t, mt.DeliverMessage(proto.SendActionDone, map[string]any{"actionId": 1}))
	barrier(t, mt)

	assert.True(t, rep.has("warning", "Dropped undecodable frame"))
	assert.True(t, rep.has("warning", "Dropped frame without a valid event"))
	assert.True(t, c.Connected())
}

func TestRouter_ServerError(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.Error, "object not found"))
	barrier(t, mt)
	assert.True(t, rep.has("failure", "Server reported an error"))
}

func TestAction_Acknowledged(t *testing.T) {
	c, mt := newTestClient(t)
	var got any
	require.NoError(t, c.OnAction(7, func(v any) any {
		got = v
		return "on"
	}))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)
	handshake(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": 7, "value": true}))
	msg := expectEvent(t, mt, proto.SendActionDone)
	assert.Equal(t, map[string]any{"actionId": int64(7), "value": "on"}, msg.Data)
	assert.Equal(t, true, got)
}

func TestAction_Batch(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	for _, id := range []int{1, 2} {
		require.NoError(t, c.OnAction(id, func(v any) any { return v }))
	}
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	batch := []any{
		map[string]any{"id": 1, "value": "a"},
		map[string]any{"id": "oops"},
		map[string]any{"id": "2", "value": "b"},
	}
	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, batch))

	first := expectEvent(t, mt, proto.SendActionDone)
	assert.Equal(t, map[string]any{"actionId": int64(1), "value": "a"}, first.Data)
	second := expectEvent(t, mt, proto.SendActionDone)
	assert.Equal(t, map[string]any{"actionId": int64(2), "value": "b"}, second.Data)
	assert.True(t, rep.has("warning", "The action received does not have a valid structure"))
}

func TestAction_DuplicateIDLastWins(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, c.OnAction(3, func(any) any { return "first" }))
	require.NoError(t, c.OnAction(3, func(any) any { return "second" }))
	require.NoError(t, idleLoop(c))
	assert.Equal(t, []int{3}, c.Actions())
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": 3, "value": nil}))
	msg := expectEvent(t, mt, proto.SendActionDone)
	assert.Equal(t, map[string]any{"actionId": int64(3), "value": "second"}, msg.Data)
}

func TestAction_ReceptionLog(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, c.OnAction(1, func(any) any { return nil }))
	require.NoError(t, c.OnAction(2, func(any) any { return nil }, WithoutReceptionLog()))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, []any{
		map[string]any{"id": 1, "value": 0},
		map[string]any{"id": 2, "value": 0},
	}))
	expectEvent(t, mt, proto.SendActionDone)
	expectEvent(t, mt, proto.SendActionDone)

	assert.True(t, rep.has("info", "The action 1 was called"))
	assert.False(t, rep.has("info", "The action 2 was called"))
}

func TestAction_PanicNotAcknowledged(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, c.OnAction(5, func(any) any { panic("motor jammed") }))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": 5, "value": 1}))
	// The pong must be the next frame: no ack for the failed handler
	barrier(t, mt)
	assert.True(t, rep.has("failure", "Action handler failed"))
	assert.True(t, c.Connected())
}

func TestAction_UnknownIDClosesConnection(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	require.NoError(t, c.OnAction(7, func(any) any { return nil }))
	require.NoError(t, idleLoop(c))
	errCh, _ := start(t, c, mt)
	handshake(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": 99, "value": 1}))

	err := waitRun(t, errCh)
	require.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, 1, mt.Closes())
	assert.False(t, c.Ready())
	assert.True(t, rep.has("failure", "The action with the id 99 is not implemented"))

	for {
		select {
		case frame := <-mt.Sent():
			assert.NotContains(t, string(frame), string(proto.SendActionDone))
			continue
		default:
		}
		break
	}
}

func TestAction_FractionalIDClosesConnection(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	var calls atomic.Int32
	require.NoError(t, c.OnAction(7, func(any) any {
		calls.Add(1)
		return "ok"
	}))
	require.NoError(t, idleLoop(c))
	errCh, _ := start(t, c, mt)
	handshake(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, []any{
		map[string]any{"id": 7.9, "value": 1},
		map[string]any{"id": 7, "value": 2},
	}))

	err := waitRun(t, errCh)
	require.ErrorIs(t, err, ErrUnknownAction)
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, mt.Closes())
	assert.False(t, c.Ready())
	assert.True(t, rep.has("failure", "The action with the id 7.9 is not implemented"))

	for {
		select {
		case frame := <-mt.Sent():
			assert.NotContains(t, string(frame), string(proto.SendActionDone))
			continue
		default:
		}
		break
	}
}

func TestAction_BoolIDIsMalformed(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	var calls atomic.Int32
	require.NoError(t, c.OnAction(1, func(any) any {
		calls.Add(1)
		return "ok"
	}))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)
	handshake(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": true, "value": 1}))
	// The pong must be the next frame: nothing ran, nothing acknowledged
	barrier(t, mt)
	assert.Zero(t, calls.Load())
	assert.True(t, rep.has("warning", "The action received does not have a valid structure"))
	assert.True(t, c.Ready())
}

func TestListen_Intersection(t *testing.T) {
	c, mt := newTestClient(t)

	var calls []string
	var got []map[string]any
	record := func(name string) ListenHandler {
		return func(fields map[string]any) {
			calls = append(calls, name)
			got = append(got, fields)
		}
	}
	require.NoError(t, c.Listen([]string{"/doc/temp"}, record("temp")))
	require.NoError(t, c.Listen([]string{"/doc/hum", "/doc/light"}, record("env")))
	require.NoError(t, c.Listen([]string{"/doc/pressure"}, record("pressure")))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveListen, map[string]any{
		"fields": map[string]any{"/doc/temp": 21.5, "/doc/hum": 40, "/doc/other": "x"},
	}))
	barrier(t, mt)

	assert.Equal(t, []string{"temp", "env"}, calls)
	assert.Equal(t, []map[string]any{
		{"/doc/temp": 21.5},
		{"/doc/hum": int64(40)},
	}, got)
}

func TestListen_MalformedUpdate(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	called := false
	require.NoError(t, c.Listen([]string{"temp"}, func(map[string]any) { called = true }))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveListen, map[string]any{"fields": "temp"}))
	barrier(t, mt)

	assert.False(t, called)
	assert.True(t, rep.has("warning", "Dropped listen update without fields"))
}

func TestBroadcast(t *testing.T) {
	c, mt := newTestClient(t)
	var got []any
	require.NoError(t, c.OnBroadcast(func(data any) { got = append(got, data) }))
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveBroadcast, map[string]any{"data": map[string]any{"alarm": true}}))
	barrier(t, mt)

	assert.Equal(t, []any{map[string]any{"alarm": true}}, got)
}

func TestBroadcast_NoHandler(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, mt.DeliverMessage(proto.ReceiveBroadcast, map[string]any{"data": 1}))
	barrier(t, mt)
	assert.True(t, c.Connected())
}

func TestSend_NoopWhenDisconnected(t *testing.T) {
	c, _ := newTestClient(t)

	assert.NoError(t, c.UpdateDoc(map[string]any{"/doc/temp": 1}))
	assert.NoError(t, c.Broadcast("hello"))
	assert.Zero(t, c.SentCount())
}

func TestSend_OutboundEvents(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, idleLoop(c))
	start(t, c, mt)

	require.NoError(t, c.UpdateDoc(map[string]any{"/doc/temp": 20}))
	msg := expectEvent(t, mt, proto.UpdateDoc)
	assert.Equal(t, map[string]any{"fields": map[string]any{"/doc/temp": int64(20)}}, msg.Data)

	require.NoError(t, c.Broadcast([]any{"a"}))
	msg = expectEvent(t, mt, proto.SendBroadcast)
	assert.Equal(t, map[string]any{"data": []any{"a"}}, msg.Data)

	require.NoError(t, c.SendAction("obj-2", 4, "go"))
	msg = expectEvent(t, mt, proto.SendAction)
	assert.Equal(t, map[string]any{"targetId": "obj-2", "actionId": int64(4), "value": "go"}, msg.Data)

	require.NoError(t, c.SendRoute("/alarm", map[string]any{"level": 2}))
	msg = expectEvent(t, mt, proto.SendRoute)
	assert.Equal(t, map[string]any{"routePath": "/alarm", "data": map[string]any{"level": int64(2)}}, msg.Data)

	require.NoError(t, c.UpdateComponent("led", 1))
	msg = expectEvent(t, mt, proto.UpdateComponent)
	assert.Equal(t, map[string]any{"id": "led", "value": int64(1)}, msg.Data)

	// connect_object plus the five above
	assert.Equal(t, uint64(6), c.SentCount())
}

func TestSupervisor_WaitsForReady(t *testing.T) {
	c, mt := newTestClient(t)
	var runs atomic.Int32
	ran := make(chan struct{}, 1)
	require.NoError(t, c.MainLoop(func() {
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
	}, WithRepetitions(1)))
	start(t, c, mt)

	barrier(t, mt)
	assert.Zero(t, runs.Load())
	assert.Eventually(t, func() bool { return c.LoopState() == LoopWaitingForReady }, waitFor, 5*time.Millisecond)

	handshake(t, c, mt)
	select {
	case <-ran:
	case <-time.After(waitFor):
		t.Fatal("main loop did not run")
	}
	assert.Eventually(t, func() bool { return c.LoopState() == LoopStopped }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSupervisor_Bounded(t *testing.T) {
	c, mt := newTestClient(t)
	var runs atomic.Int32
	require.NoError(t, c.MainLoop(func() { runs.Add(1) }, WithRepetitions(3)))
	start(t, c, mt)
	handshake(t, c, mt)

	assert.Eventually(t, func() bool { return c.LoopState() == LoopStopped }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(3), runs.Load())
	assert.True(t, c.Ready(), "an exhausted loop leaves the connection up")
}

func TestSupervisor_StopsWhenReadinessLost(t *testing.T) {
	c, mt := newTestClient(t)
	var runs atomic.Int32
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	require.NoError(t, c.MainLoop(func() {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}, WithRepetitions(3)))
	errCh, _ := start(t, c, mt)
	handshake(t, c, mt)

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("main loop did not start")
	}

	require.NoError(t, mt.DeliverMessage(proto.ReceiveAction, map[string]any{"id": 99, "value": nil}))
	<-mt.Done()
	close(release)

	require.ErrorIs(t, waitRun(t, errCh), ErrUnknownAction)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, LoopStopped, c.LoopState())
}

func TestSupervisor_Unbounded(t *testing.T) {
	c, mt := newTestClient(t)
	var runs atomic.Int32
	require.NoError(t, c.MainLoop(func() {
		runs.Add(1)
		time.Sleep(time.Millisecond)
	}))
	errCh, cancel := start(t, c, mt)
	handshake(t, c, mt)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitRun(t, errCh))
	assert.Equal(t, LoopStopped, c.LoopState())
}

func TestSupervisor_PanicStopsLoop(t *testing.T) {
	rep := &recordingReporter{}
	c, mt := newTestClient(t, WithReporter(rep))
	var runs atomic.Int32
	require.NoError(t, c.MainLoop(func() {
		runs.Add(1)
		panic("sensor unplugged")
	}, WithRepetitions(5)))
	start(t, c, mt)
	handshake(t, c, mt)

	assert.Eventually(t, func() bool { return c.LoopState() == LoopStopped }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, rep.has("failure", "Main loop failed"))
}

func TestStatus(t *testing.T) {
	c, mt := newTestClient(t)
	require.NoError(t, c.OnAction(2, func(any) any { return nil }))
	require.NoError(t, c.OnAction(1, func(any) any { return nil }))
	require.NoError(t, c.Listen([]string{"temp"}, func(map[string]any) {}))
	require.NoError(t, idleLoop(c))

	st := c.Status()
	assert.Equal(t, "obj-1", st.ObjectID)
	assert.Equal(t, []int{1, 2}, st.Actions)
	assert.Equal(t, 1, st.Listeners)
	assert.False(t, st.Connected)
	assert.Empty(t, st.Session)

	start(t, c, mt)
	st = c.Status()
	assert.True(t, st.Connected)
	assert.NotEmpty(t, st.Session)
}

func TestGetDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/iot/aliot/getDoc":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"/document/temp": 3}`))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	rep := &recordingReporter{}
	cfg := testConfig()
	cfg.APIURL = srv.URL + "/api"
	c := NewClientWithLogging("thermo", cfg, SuppressedLogConfig(), WithReporter(rep))

	doc, err := c.GetDoc(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"/document/temp": float64(3)}, doc)

	_, err = c.GetDoc(t.Context(), "/document/temp")
	require.ErrorIs(t, err, api.ErrForbidden)
	assert.True(t, rep.has("failure", "While getting the field /document/temp, request was Forbidden due to permission errors or project missing."))
}

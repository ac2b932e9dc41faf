package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alivecode/aliot-go/api"
	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/config"
)

// ActionHandler runs a remote action. The returned value is sent back to the
// server with the completion event.
type ActionHandler func(value any) any

// ListenHandler receives the subset of an updated document that intersects
// the listener's fields.
type ListenHandler func(fields map[string]any)

// BroadcastHandler receives broadcast payloads unfiltered.
type BroadcastHandler func(data any)

type actionEntry struct {
	handler      ActionHandler
	logReception bool
}

type listenerEntry struct {
	fields  map[string]struct{}
	handler ListenHandler
}

type mainLoop struct {
	task        func()
	repetitions int // < 0 means unbounded
}

// Client connects one object to the coordination server. Register actions,
// listeners and the main loop before calling Run; the registries are not
// safe to change while the client runs.
type Client struct {
	Name   string
	config config.Object

	transport Transport
	encoder   codec.Encoder
	decoder   codec.Decoder
	logger    *slog.Logger
	reporter  Reporter
	metrics   *Metrics
	throttle  *Throttle
	discover  func(timeout time.Duration) (string, error)

	docOnce sync.Once
	doc     *api.Client
	docErr  error

	// Registries
	actions   map[int]actionEntry
	listeners []listenerEntry
	broadcast BroadcastHandler
	loop      *mainLoop

	running   atomic.Bool
	session   atomic.Pointer[session]
	writeMu   sync.Mutex
	sent      atomic.Uint64
	loopState atomic.Int32
}

// session is the state of one Run.
type session struct {
	id    string
	ctx   context.Context
	state *connState

	acks      int // subscribe_listener_success count, read loop only
	closing   atomic.Bool
	closeOnce sync.Once
	loopDone  chan struct{}

	errMu sync.Mutex
	err   error
}

func (s *session) fail(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) cause() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

type Option func(*Client)

func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithCodec replaces both frame transforms.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		c.encoder = cd
		c.decoder = cd
	}
}

func WithEncoder(e codec.Encoder) Option {
	return func(c *Client) { c.encoder = e }
}

func WithDecoder(d codec.Decoder) Option {
	return func(c *Client) { c.decoder = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithLogConfig(lc LogConfig) Option {
	return func(c *Client) { c.logger = lc.NewLogger() }
}

// WithReporter replaces the default slog-backed reporter.
func WithReporter(r Reporter) Option {
	return func(c *Client) { c.reporter = r }
}

// WithMetrics registers the client's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = NewMetrics(reg, c.Name) }
}

// WithDiscovery replaces the mDNS lookup used when ws_url is "mdns".
func WithDiscovery(discover func(timeout time.Duration) (string, error)) Option {
	return func(c *Client) { c.discover = discover }
}

// WithThrottle enables the outbound rate limit.
func WithThrottle(policy ThrottlePolicy) Option {
	return func(c *Client) { c.throttle = NewThrottle(policy) }
}

// NewClient builds a client for the object named name. The object's settings
// come from cfg; the transport defaults to a websocket.
func NewClient(name string, cfg config.Object, opts ...Option) *Client {
	if cfg.Name == "" {
		cfg.Name = name
	}
	c := &Client{
		Name:      name,
		config:    cfg,
		transport: NewWebSocketTransport(),
		encoder:   codec.JSON{},
		decoder:   codec.JSON{},
		logger:    slog.Default(),
		actions:   make(map[int]actionEntry),
		discover:  DiscoverWebSocketURL,
	}
	if cfg.Throttle {
		c.throttle = NewThrottle(DefaultThrottlePolicy())
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil, name)
	}
	if c.reporter == nil {
		c.reporter = NewSlogReporter(c.logger)
	}
	if c.throttle != nil {
		c.throttle.logger = c.logger
		c.throttle.pauses = c.metrics.ThrottlePauses
	}
	return c
}

// NewClientWithLogging builds a client whose logger follows lc.
func NewClientWithLogging(name string, cfg config.Object, lc LogConfig, opts ...Option) *Client {
	return NewClient(name, cfg, append([]Option{WithLogConfig(lc)}, opts...)...)
}

func (c *Client) newSession(ctx context.Context) *session {
	s := &session{
		id:       uuid.NewString(),
		ctx:      ctx,
		state:    newConnState(),
		loopDone: make(chan struct{}),
	}
	c.session.Store(s)
	return s
}

func (c *Client) current() *session {
	return c.session.Load()
}

type ActionOption func(*actionEntry)

// WithoutReceptionLog skips the log line written before the handler runs.
func WithoutReceptionLog() ActionOption {
	return func(e *actionEntry) { e.logReception = false }
}

// OnAction binds handler to an action id. Binding an id twice keeps the last
// handler.
func (c *Client) OnAction(id int, handler ActionHandler, opts ...ActionOption) error {
	if c.running.Load() {
		return ErrRunning
	}
	if handler == nil {
		return fmt.Errorf("action handler must be provided for action %d", id)
	}
	entry := actionEntry{handler: handler, logReception: true}
	for _, opt := range opts {
		opt(&entry)
	}
	if _, exists := c.actions[id]; exists {
		c.logger.Debug("Replacing action handler", "action_id", id)
	}
	c.actions[id] = entry
	return nil
}

// Listen registers handler for updates touching any of fields. Listeners run
// in registration order.
func (c *Client) Listen(fields []string, handler ListenHandler) error {
	if c.running.Load() {
		return ErrRunning
	}
	if handler == nil {
		return errors.New("listen handler must be provided")
	}
	if len(fields) == 0 {
		return errors.New("listener must watch at least one field")
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	c.listeners = append(c.listeners, listenerEntry{fields: set, handler: handler})
	return nil
}

// OnBroadcast sets the broadcast handler, replacing any previous one.
func (c *Client) OnBroadcast(handler BroadcastHandler) error {
	if c.running.Load() {
		return ErrRunning
	}
	c.broadcast = handler
	return nil
}

type LoopOption func(*mainLoop)

// WithRepetitions bounds the main loop to n runs of the task.
func WithRepetitions(n int) LoopOption {
	return func(l *mainLoop) {
		if n >= 0 {
			l.repetitions = n
		}
	}
}

// MainLoop sets the task run repeatedly once the object is connected.
func (c *Client) MainLoop(task func(), opts ...LoopOption) error {
	if c.running.Load() {
		return ErrRunning
	}
	if task == nil {
		return errors.New("main loop task must be provided")
	}
	loop := &mainLoop{task: task, repetitions: -1}
	for _, opt := range opts {
		opt(loop)
	}
	c.loop = loop
	return nil
}

// ObjectID returns the identifier sent with connect_object.
func (c *Client) ObjectID() string {
	return c.config.ObjectID
}

// Actions lists the registered action ids in ascending order.
func (c *Client) Actions() []int {
	return slices.Sorted(maps.Keys(c.actions))
}

// SubscribedFields is the sorted, deduplicated union of listener fields.
func (c *Client) SubscribedFields() []string {
	var fields []string
	for _, l := range c.listeners {
		for f := range l.fields {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)
	return slices.Compact(fields)
}

func (c *Client) Connected() bool {
	s := c.current()
	return s != nil && s.state.isConnected()
}

// Ready reports whether the transport is open and the handshake complete.
func (c *Client) Ready() bool {
	s := c.current()
	return s != nil && s.state.ready()
}

// SentCount is the number of events written since the client was built.
func (c *Client) SentCount() uint64 {
	return c.sent.Load()
}

// Status is a point-in-time snapshot of the client.
type Status struct {
	Name      string `json:"name"`
	ObjectID  string `json:"object_id"`
	Session   string `json:"session,omitempty"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"ready"`
	Loop      string `json:"loop"`
	Sent      uint64 `json:"sent"`
	Actions   []int  `json:"actions"`
	Listeners int    `json:"listeners"`
}

func (c *Client) Status() Status {
	st := Status{
		Name:      c.Name,
		ObjectID:  c.config.ObjectID,
		Connected: c.Connected(),
		Ready:     c.Ready(),
		Loop:      c.LoopState().String(),
		Sent:      c.SentCount(),
		Actions:   c.Actions(),
		Listeners: len(c.listeners),
	}
	if s := c.current(); s != nil {
		st.Session = s.id
	}
	return st
}

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/alivecode/aliot-go/proto"
)

// Run connects to the configured endpoint and serves the connection until it
// closes. Inbound frames are handled one at a time on the calling goroutine;
// the main loop runs on its own goroutine. Cancelling ctx closes the
// connection. Run never reconnects: it returns the transport error, or the
// protocol error that made it drop the connection, and leaves restarting to
// the caller.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)

	if err := c.config.Validate(); err != nil {
		c.reporter.Failure("Invalid configuration", "object", c.Name, "error", err)
		return err
	}

	url := c.config.WSURL
	if c.config.Discover() {
		found, err := c.discover(0)
		if err != nil {
			c.reporter.Failure("Could not discover a server", "object", c.Name, "error", err)
			return fmt.Errorf("discover server: %w", err)
		}
		url = found
	}

	s := c.newSession(ctx)
	c.loopState.Store(int32(LoopIdle))
	c.reporter.Info("CONNECTING", "object", c.Name, "url", url, "session", s.id)

	if err := c.transport.Connect(ctx, url); err != nil {
		s.state.end()
		c.onError(s, err)
		return fmt.Errorf("connect %s: %w", url, err)
	}

	stop := context.AfterFunc(ctx, func() { c.closeTransport(s) })
	defer stop()

	if err := c.onOpen(s); err != nil {
		c.onClose(s)
		return err
	}

	readErr := c.readLoop(s)
	c.onClose(s)
	<-s.loopDone

	if err := s.cause(); err != nil {
		return err
	}
	return readErr
}

func (c *Client) onOpen(s *session) error {
	// Register the object on the server
	s.state.setConnected(true)
	c.send(s, proto.ConnectObject, proto.ConnectObjectPayload{ID: c.config.ObjectID})

	if c.loop == nil {
		c.closeTransport(s)
		c.reporter.Failure("You must define a main loop", "object", c.Name)
		return ErrNoMainLoop
	}

	go c.supervise(s)
	return nil
}

func (c *Client) readLoop(s *session) error {
	for {
		frame, err := c.transport.Read()
		if err != nil {
			if errors.Is(err, ErrClosed) || s.closing.Load() {
				return nil
			}
			c.onError(s, err)
			return err
		}
		c.handleFrame(s, frame)
	}
}

func (c *Client) onError(s *session, err error) {
	c.reporter.Failure("Connection error", "object", c.Name, "session", s.id, "error", err)
	if isConnectionReset(err) {
		c.reporter.Warning("If you didn't see the 'CONNECTED' message, verify that you are using the right object id", "object", c.Name)
	}
}

func (c *Client) onClose(s *session) {
	s.state.end()
	c.metrics.Ready.Set(0)
	c.closeTransport(s)
	c.reporter.Info("Connection CLOSED", "object", c.Name, "session", s.id)
}

// closeTransport closes the session's transport once.
func (c *Client) closeTransport(s *session) {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if err := c.transport.Close(); err != nil {
			c.logger.Debug("Failed to close transport", "session", s.id, "error", err)
		}
	})
}

// setAcknowledged records the handshake outcome. Revoking it while the
// transport is open closes the transport.
func (c *Client) setAcknowledged(s *session, v bool) {
	if s.state.setAcknowledged(v) {
		c.closeTransport(s)
	}
	if v {
		c.metrics.Ready.Set(1)
		c.reporter.Success("CONNECTED", "object", c.Name, "session", s.id)
	} else {
		c.metrics.Ready.Set(0)
	}
}

func (c *Client) onConnectSuccess(s *session) {
	if len(c.listeners) == 0 {
		c.setAcknowledged(s, true)
		return
	}
	// Register listeners on the server; readiness waits for their acks
	s.acks = 0
	fields := c.SubscribedFields()
	if len(fields) < len(c.listeners) {
		c.reporter.Warning("More listeners than subscribed fields, readiness waits for one acknowledgement per listener",
			"session", s.id, "listeners", len(c.listeners), "fields", len(fields))
	}
	c.send(s, proto.SubscribeListener, proto.SubscriptionPayload{Fields: fields})
}

func (c *Client) onSubscribeSuccess(s *session) {
	s.acks++
	if s.acks == len(c.listeners) {
		c.setAcknowledged(s, true)
	}
}

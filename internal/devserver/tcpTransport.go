package devserver

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/proto"
)

// TCPTransport accepts objects speaking newline-delimited frames over raw
// TCP, as serial bridges do.
type TCPTransport struct {
	Addr         string
	listener     net.Listener
	onMessage    func(Conn, proto.Message)
	onConnect    func(Conn) error
	onDisconnect func(Conn)

	decoder    codec.Decoder
	conns      map[string]*TCPConn
	cmu        sync.RWMutex
	maxClients int
	ready      chan struct{}
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{
		Addr:       addr,
		decoder:    codec.JSON{},
		conns:      make(map[string]*TCPConn),
		maxClients: 16,
		ready:      make(chan struct{}),
	}
}

func (t *TCPTransport) OnMessage(fn func(Conn, proto.Message)) { t.onMessage = fn }
func (t *TCPTransport) OnConnect(fn func(Conn) error)          { t.onConnect = fn }
func (t *TCPTransport) OnDisconnect(fn func(Conn))             { t.onDisconnect = fn }

// Listening is closed once the listener is bound.
func (t *TCPTransport) Listening() <-chan struct{} {
	return t.ready
}

// ListenAddr is the bound address, valid after Listening is closed.
func (t *TCPTransport) ListenAddr() net.Addr {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return t.listener.Addr()
}

// Start accepts connections until Shutdown is called.
func (t *TCPTransport) Start() error {
	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("the OnConnect, OnDisconnect or OnMessage function is not defined")
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.cmu.Lock()
	t.listener = l
	t.cmu.Unlock()
	close(t.ready)
	slog.Info("Starting tcp server", "addr", l.Addr().String())
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		t.cmu.RLock()
		clientCount := len(t.conns)
		t.cmu.RUnlock()

		if clientCount >= t.maxClients {
			slog.Warn("Max clients reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *TCPTransport) handleConnection(c net.Conn) {
	ip := c.RemoteAddr().String()
	slog.Info("Object connected", "addr", ip)

	tcpConn := NewTCPConn(c)

	defer func() {
		t.cmu.Lock()
		delete(t.conns, tcpConn.Id)
		t.cmu.Unlock()

		t.onDisconnect(tcpConn)

		c.Close()
		slog.Info("Object disconnected", "addr", ip, "id", tcpConn.Id)
	}()

	if err := t.onConnect(tcpConn); err != nil {
		slog.Error("Failed to register object", "addr", ip, "error", err.Error())
		return
	}
	t.cmu.Lock()
	t.conns[tcpConn.Id] = tcpConn
	t.cmu.Unlock()

	reader := bufio.NewScanner(c)
	reader.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for reader.Scan() {
		line := reader.Bytes()
		if len(line) == 0 {
			continue
		}
		v, err := t.decoder.Decode(line)
		if err != nil {
			slog.Warn("Invalid JSON message received", "error", err, "data", string(line))
			continue
		}
		msg, err := proto.FromValue(v)
		if err != nil {
			slog.Warn("Invalid frame received", "error", err, "data", string(line))
			continue
		}
		slog.Debug("Message received", "event", msg.Event, "conn", tcpConn.Id, "size", len(line))
		t.onMessage(tcpConn, msg)
	}

	if err := reader.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("Connection error", "addr", ip, "error", err)
	}
}

func (t *TCPTransport) Shutdown() error {
	slog.Info("Shutting down tcp server", "addr", t.Addr)
	t.cmu.RLock()
	defer t.cmu.RUnlock()

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	for _, c := range t.conns {
		c.Close()
	}
	return err
}

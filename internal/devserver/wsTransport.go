package devserver

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // objects connect from anywhere on the local network
	},
}

// WSTransport accepts object connections over websocket.
type WSTransport struct {
	onMessage    func(Conn, proto.Message)
	onConnect    func(Conn) error
	onDisconnect func(Conn)

	decoder    codec.Decoder
	conns      map[string]*WSConn
	cmu        sync.RWMutex
	maxClients int
	wg         sync.WaitGroup
}

func NewWSTransport() *WSTransport {
	return &WSTransport{
		decoder:    codec.JSON{},
		conns:      make(map[string]*WSConn),
		maxClients: 64,
	}
}

func (t *WSTransport) OnMessage(fn func(Conn, proto.Message)) { t.onMessage = fn }
func (t *WSTransport) OnConnect(fn func(Conn) error)          { t.onConnect = fn }
func (t *WSTransport) OnDisconnect(fn func(Conn))             { t.onDisconnect = fn }

func (t *WSTransport) SetMaxClients(n int) {
	t.maxClients = n
}

func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	t.cmu.RLock()
	clientCount := len(t.conns)
	t.cmu.RUnlock()

	if clientCount >= t.maxClients {
		slog.Warn("Max clients reached, rejecting connection", "remote_addr", r.RemoteAddr)
		conn.Close()
		return
	}

	t.wg.Add(1)
	go t.handleConnection(conn, r.RemoteAddr)
}

func (t *WSTransport) handleConnection(conn *websocket.Conn, remoteAddr string) {
	defer t.wg.Done()
	slog.Info("WebSocket object connected", "addr", remoteAddr)

	wsConn := NewWSConn(conn, remoteAddr)

	defer func() {
		t.cmu.Lock()
		delete(t.conns, wsConn.Id)
		t.cmu.Unlock()

		t.onDisconnect(wsConn)

		conn.Close()
		slog.Info("WebSocket object disconnected", "addr", remoteAddr, "id", wsConn.Id)
	}()

	if err := t.onConnect(wsConn); err != nil {
		slog.Error("Failed to register WebSocket object", "addr", remoteAddr, "error", err.Error())
		return
	}

	t.cmu.Lock()
	t.conns[wsConn.Id] = wsConn
	t.cmu.Unlock()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket connection error", "addr", remoteAddr, "error", err)
			}
			break
		}

		v, err := t.decoder.Decode(frame)
		if err != nil {
			slog.Warn("Invalid JSON message received", "error", err, "data", string(frame))
			continue
		}
		msg, err := proto.FromValue(v)
		if err != nil {
			slog.Warn("Invalid frame received", "error", err, "data", string(frame))
			continue
		}

		slog.Debug("WebSocket message received", "event", msg.Event, "conn", wsConn.Id, "size", len(frame))
		t.onMessage(wsConn, msg)
	}
}

// Shutdown closes every connection and waits for their handlers to return.
func (t *WSTransport) Shutdown() {
	t.cmu.RLock()
	conns := make([]*WSConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.cmu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
	t.wg.Wait()
}

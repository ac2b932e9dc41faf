package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/proto"
)

type WSConn struct {
	ObjectMetadata
	conn    *websocket.Conn
	encoder codec.Encoder
	writeMu sync.Mutex
}

func NewWSConn(conn *websocket.Conn, remoteAddr string) *WSConn {
	c := &WSConn{conn: conn, encoder: codec.JSON{}}
	c.init("ws", remoteAddr)
	return c
}

func (c *WSConn) Send(msg proto.Message) error {
	data, err := c.encoder.Encode(msg.Value())
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent WebSocket Message", "to", c.Id, "event", msg.Event, "size", len(data))
	return nil
}

func (c *WSConn) Close() error {
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *WSConn) Meta() *ObjectMetadata {
	return &c.ObjectMetadata
}

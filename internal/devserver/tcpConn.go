package devserver

import (
	"log/slog"
	"net"
	"sync"

	"github.com/alivecode/aliot-go/codec"
	"github.com/alivecode/aliot-go/proto"
)

// TCPConn carries newline-delimited frames.
type TCPConn struct {
	ObjectMetadata
	conn    net.Conn
	encoder codec.Encoder
	writeMu sync.Mutex
}

func NewTCPConn(conn net.Conn) *TCPConn {
	c := &TCPConn{conn: conn, encoder: codec.JSON{}}
	c.init("tcp", conn.RemoteAddr().String())
	return c
}

func (c *TCPConn) Send(msg proto.Message) error {
	data, err := c.encoder.Encode(msg.Value())
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()

	slog.Debug("Sent Message", "to", c.Id, "event", msg.Event, "size", len(data))
	return err
}

func (c *TCPConn) Close() error {
	return c.conn.Close()
}

func (c *TCPConn) Meta() *ObjectMetadata {
	return &c.ObjectMetadata
}

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

// TCPTransport exchanges newline-delimited frames over a plain TCP socket,
// for gateways that bridge serial or raw-socket devices.
type TCPTransport struct {
	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
}

func NewTCPTransport() *TCPTransport {
	return &TCPTransport{}
}

func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	addr = strings.TrimPrefix(addr, "tcp://")
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.scanner = bufio.NewScanner(conn)
	t.scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data := make([]byte, 0, len(frame)+1)
	data = append(data, frame...)
	data = append(data, '\n')
	_, err := conn.Write(data)
	return err
}

func (t *TCPTransport) Read() ([]byte, error) {
	t.mu.Lock()
	scanner := t.scanner
	t.mu.Unlock()
	if scanner == nil {
		return nil, ErrNotConnected
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		return frame, nil
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %v", ErrClosed, io.EOF)
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

package client

import "context"

// Transport is the full-duplex connection to the coordination server. Frames
// are already encoded; Read returns one frame at a time and is only ever
// called from the client's read loop.
type Transport interface {
	Connect(ctx context.Context, url string) error
	Send(frame []byte) error
	Read() ([]byte, error)
	Close() error
}

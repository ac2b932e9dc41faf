package client

import (
	"errors"
	"syscall"

	"github.com/alivecode/aliot-go/config"
	"github.com/alivecode/aliot-go/proto"
)

var (
	// Configuration errors, fatal at Run.
	ErrNoMainLoop    = errors.New("no main loop registered")
	ErrMissingConfig = config.ErrMissingConfig

	// Protocol conformance errors.
	ErrUnknownAction   = errors.New("action not implemented")
	ErrMalformedAction = proto.ErrMalformedRecord

	ErrRunning      = errors.New("client is running")
	ErrNotConnected = errors.New("transport is not connected")
	ErrClosed       = errors.New("connection closed")
)

// isConnectionReset reports errors worth the credentials hint: the server
// drops the socket when it refuses the object id.
func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

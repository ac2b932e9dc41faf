package client

import "sync"

// connState holds the two facts that make up readiness. The read loop writes
// them; the supervisor waits on them.
type connState struct {
	mu   sync.Mutex
	cond *sync.Cond

	connected    bool // transport open
	acknowledged bool // handshake complete
	ended        bool // session over, readiness cannot come back
}

func newConnState() *connState {
	s := &connState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *connState) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
	s.cond.Broadcast()
}

// setAcknowledged returns true when the caller must close the transport:
// acknowledgement was revoked while the transport was still open.
func (s *connState) setAcknowledged(v bool) (mustClose bool) {
	s.mu.Lock()
	s.acknowledged = v
	mustClose = !v && s.connected
	s.mu.Unlock()
	s.cond.Broadcast()
	return mustClose
}

func (s *connState) end() {
	s.mu.Lock()
	s.connected = false
	s.acknowledged = false
	s.ended = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *connState) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *connState) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.acknowledged
}

// waitReady blocks until the state is ready or the session ended, and reports
// whether it is ready.
func (s *connState) waitReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !(s.connected && s.acknowledged) && !s.ended {
		s.cond.Wait()
	}
	return s.connected && s.acknowledged
}

package client

import "fmt"

// LoopState is the main loop's position in WaitingForReady → Running →
// Stopped.
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopWaitingForReady
	LoopRunning
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopWaitingForReady:
		return "waiting_for_ready"
	case LoopRunning:
		return "running"
	case LoopStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (c *Client) LoopState() LoopState {
	return LoopState(c.loopState.Load())
}

// supervise runs the main loop for one session. It waits for readiness, then
// runs the task while readiness holds, checking before every repetition.
func (c *Client) supervise(s *session) {
	defer close(s.loopDone)
	defer c.loopState.Store(int32(LoopStopped))

	c.loopState.Store(int32(LoopWaitingForReady))
	if !s.state.waitReady() {
		return
	}
	c.loopState.Store(int32(LoopRunning))

	loop := c.loop
	runs := 0
	for loop.repetitions < 0 || runs < loop.repetitions {
		if !s.state.ready() {
			break
		}
		if err := safeCall(loop.task); err != nil {
			c.reporter.Failure("Main loop failed", "session", s.id, "run", runs+1, "error", fmt.Errorf("main loop: %w", err))
			return
		}
		runs++
	}
	c.logger.Info("Main loop stopped", "session", s.id, "runs", runs)
}

package card

import "time"

// pollInterval is how often get_status is polled when no completion
// signal is bound or interrupts could not be enabled on this card.
const pollInterval = time.Millisecond

// waitIdle blocks until the card becomes idle after a long-running
// command: if a completion signal is bound and interrupts
// are enabled, it blocks on a falling edge; otherwise it polls
// get_status until BUSY deasserts. Either path is bounded by
// s.timeout and fails with a Timeout error if exceeded.
func (s *Session) waitIdle() error {
	if s.hasInterrupt && s.signal != nil {
		if err := s.signal.WaitFallingEdge(s.timeout); err != nil {
			return wrapErr(KindTimeout, "wait for completion signal", err)
		}
		return nil
	}
	deadline := time.Now().Add(s.timeout)
	for {
		status, err := s.GetStatus()
		if err != nil {
			return err
		}
		if status&StatusBusy == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return newErr(KindTimeout, "timed out waiting for BUSY to deassert")
		}
		time.Sleep(pollInterval)
	}
}

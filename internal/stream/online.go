package stream

import (
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/fsm"
)

// Online is a streaming recognition or keyword-spotting stream.
type Online struct {
	core
	endpointed bool
}

func NewOnline(opts Options) *Online {
	return &Online{core: newCore(opts)}
}

// InputFinished declares that no more audio will arrive. Remaining audio,
// including a final partial chunk, is still decoded.
func (s *Online) InputFinished() {
	if s.lifecycle != fsm.StateActive {
		return
	}
	s.transition(fsm.EventInputFinished)
	s.drainIfEmpty()
}

// InputDone reports whether InputFinished has been called since the last reset.
func (s *Online) InputDone() bool {
	return s.lifecycle == fsm.StateDraining || s.lifecycle == fsm.StateFinished
}

// IsFinished reports that input is done and every sample has been consumed.
func (s *Online) IsFinished() bool {
	return s.lifecycle == fsm.StateFinished
}

// Advance marks n samples consumed by a decode step.
func (s *Online) Advance(n int) {
	s.buf.Advance(n)
	s.drainIfEmpty()
}

func (s *Online) drainIfEmpty() {
	if s.lifecycle == fsm.StateDraining && s.buf.PendingLen() == 0 {
		s.transition(fsm.EventDrained)
	}
}

// Endpointed reports the latched endpoint flag.
func (s *Online) Endpointed() bool {
	return s.endpointed
}

// MarkEndpoint latches the endpoint flag until Reset.
func (s *Online) MarkEndpoint() {
	s.endpointed = true
}

// Reset starts a new utterance: consumed audio is dropped, the decoder state
// is replaced by fresh, and the endpoint latch is cleared. Unconsumed audio
// and the stream id are kept. A stream whose input has finished keeps
// draining its tail; only a fully drained stream accepts audio again.
func (s *Online) Reset(fresh engine.DecoderState) {
	if s.lifecycle == fsm.StateClosed {
		return
	}
	s.buf.Compact()
	s.state = fresh
	s.endpointed = false
	s.transition(fsm.EventReset)
	s.drainIfEmpty()
}

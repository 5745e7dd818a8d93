package stream

import (
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/fsm"
)

// Offline is a whole-utterance stream decoded exactly once.
type Offline struct {
	core
}

func NewOffline(opts Options) *Offline {
	return &Offline{core: newCore(opts)}
}

// Decoded reports whether the stream has been decoded.
func (s *Offline) Decoded() bool {
	return s.lifecycle == fsm.StateFinished
}

// MarkDecoded consumes the whole buffer and stores the final state.
func (s *Offline) MarkDecoded(state engine.DecoderState) {
	if s.lifecycle != fsm.StateActive {
		return
	}
	s.buf.Advance(s.buf.PendingLen())
	s.state = state
	s.transition(fsm.EventDecoded)
}

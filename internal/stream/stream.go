// Package stream holds per-request audio and decoder state.
//
// Streams are created by a session and belong to it. A stream is not safe for
// concurrent use: callers must not feed a stream while a Decode that includes
// it is running. The owning session must outlive its streams.
package stream

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/fsm"
)

var (
	ErrClosed       = errors.New("stream is closed")
	ErrNotAccepting = errors.New("stream no longer accepts audio")
)

// Options configures a new stream.
type Options struct {
	// Owner identifies the creating session.
	Owner any
	// SampleRate is the model rate that stored samples are kept at.
	SampleRate int
	Resampler  audio.Resampler
	State      engine.DecoderState
	Bias       *bias.Graph
	// OnClose runs once when the stream is closed.
	OnClose func()
}

type core struct {
	id         string
	owner      any
	sampleRate int
	resampler  audio.Resampler
	buf        audio.Buffer
	state      engine.DecoderState
	bias       *bias.Graph
	lifecycle  fsm.State
	onClose    func()
}

func newCore(opts Options) core {
	resampler := opts.Resampler
	if resampler == nil {
		resampler = audio.LinearResampler{}
	}
	return core{
		id:         uuid.NewString(),
		owner:      opts.Owner,
		sampleRate: opts.SampleRate,
		resampler:  resampler,
		state:      opts.State,
		bias:       opts.Bias,
		lifecycle:  fsm.StateActive,
		onClose:    opts.OnClose,
	}
}

// ID is unique per stream and survives Reset.
func (c *core) ID() string {
	return c.id
}

// Owner returns the session that created the stream.
func (c *core) Owner() any {
	return c.owner
}

// AcceptWaveform appends samples recorded at sampleRate, resampling to the
// model rate when they differ. An empty slice is a no-op.
func (c *core) AcceptWaveform(sampleRate int, samples []float32) error {
	if c.lifecycle == fsm.StateClosed {
		return ErrClosed
	}
	if !fsm.Accepting(c.lifecycle) {
		return fmt.Errorf("%w: stream is %s", ErrNotAccepting, c.lifecycle)
	}
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	if sampleRate != c.sampleRate {
		c.buf.Append(c.resampler.Resample(samples, sampleRate, c.sampleRate))
		return nil
	}
	c.buf.Append(samples)
	return nil
}

// Close releases the stream's audio and state. Later calls are no-ops.
func (c *core) Close() {
	if c.lifecycle == fsm.StateClosed {
		return
	}
	c.lifecycle, _ = fsm.Transition(c.lifecycle, fsm.EventClose)
	c.buf.Release()
	c.state = nil
	c.bias = nil
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *core) Closed() bool {
	return c.lifecycle == fsm.StateClosed
}

// Lifecycle is the current lifecycle state.
func (c *core) Lifecycle() fsm.State {
	return c.lifecycle
}

// Offset is the number of samples consumed since the last reset.
func (c *core) Offset() int {
	return c.buf.Offset()
}

// Position is the absolute number of samples consumed since creation.
func (c *core) Position() int {
	return c.buf.Base() + c.buf.Offset()
}

func (c *core) SampleRate() int {
	return c.sampleRate
}

func (c *core) State() engine.DecoderState {
	return c.state
}

func (c *core) SetState(state engine.DecoderState) {
	c.state = state
}

// Bias is the stream's own compiled bias graph, or nil.
func (c *core) Bias() *bias.Graph {
	return c.bias
}

func (c *core) Pending() []float32 {
	return c.buf.Pending()
}

func (c *core) PendingLen() int {
	return c.buf.PendingLen()
}

func (c *core) transition(event fsm.Event) {
	next, err := fsm.Transition(c.lifecycle, event)
	if err == nil {
		c.lifecycle = next
	}
}

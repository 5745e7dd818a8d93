// Package result turns decoder hypotheses into caller-facing results and
// their canonical JSON form.
package result

import (
	"encoding/json"
	"math"

	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/tokens"
)

// Result is one recognition or keyword-spotting outcome.
type Result struct {
	Text       string
	Tokens     []string
	Timestamps []float32
	Lang       string
	Emotion    string
	Event      string
	// Keyword and StartTime are only set by keyword spotting.
	Keyword   string
	StartTime *float32
}

type wire struct {
	Text       string    `json:"text"`
	Tokens     []string  `json:"tokens"`
	Timestamps []float32 `json:"timestamps,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	Emotion    string    `json:"emotion,omitempty"`
	Event      string    `json:"event,omitempty"`
	Keyword    string    `json:"keyword,omitempty"`
	StartTime  *float32  `json:"start_time,omitempty"`
}

// MarshalJSON emits text and tokens always; every other key only when set.
// NaN and infinite times are written as 0.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wire{
		Text:    r.Text,
		Tokens:  r.Tokens,
		Lang:    r.Lang,
		Emotion: r.Emotion,
		Event:   r.Event,
		Keyword: r.Keyword,
	}
	if w.Tokens == nil {
		w.Tokens = []string{}
	}
	if r.Timestamps != nil {
		w.Timestamps = make([]float32, len(r.Timestamps))
		for i, v := range r.Timestamps {
			w.Timestamps[i] = finite(v)
		}
	}
	if r.StartTime != nil {
		start := finite(*r.StartTime)
		w.StartTime = &start
	}
	return json.Marshal(w)
}

func finite(v float32) float32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	return v
}

// JSON returns the canonical rendering.
func (r Result) JSON() string {
	raw, err := r.MarshalJSON()
	if err != nil {
		// Unreachable: only strings and finite floats reach the encoder.
		return "{}"
	}
	return string(raw)
}

// Empty reports whether nothing was recognized.
func (r Result) Empty() bool {
	return len(r.Tokens) == 0 && r.Keyword == ""
}

// Assembler renders hypotheses with a model's symbol table.
type Assembler struct {
	Symbols *tokens.Table
	// Alignment keeps per-token timestamps in results.
	Alignment bool
}

// Assemble is a pure function of h; calling it twice yields equal results.
func (a Assembler) Assemble(h engine.Hypothesis) Result {
	var syms []string
	var stamps []float32
	for i, id := range h.Tokens {
		sym, ok := a.Symbols.Symbol(id)
		if !ok {
			continue
		}
		syms = append(syms, sym)
		if a.Alignment && i < len(h.Timestamps) {
			stamps = append(stamps, h.Timestamps[i])
		}
	}
	if len(stamps) != len(syms) {
		stamps = nil
	}

	return Result{
		Text:       tokens.Join(syms),
		Tokens:     syms,
		Timestamps: stamps,
		Lang:       h.Lang,
		Emotion:    h.Emotion,
		Event:      h.Event,
	}
}

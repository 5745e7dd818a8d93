// Package endpoint decides when a streaming utterance has ended.
package endpoint

// Rule is one endpoint condition. A threshold of zero or less disables it.
type Rule struct {
	Name               string
	MinTrailingSilence float32
	MinUtteranceLength float32
}

// Config holds the three rules checked in order.
type Config struct {
	// Rule1 fires on trailing silence once something has been recognized.
	Rule1 Rule
	// Rule2 fires on trailing silence before anything has been recognized.
	Rule2 Rule
	// Rule3 fires on utterance length alone.
	Rule3 Rule
}

// DefaultConfig mirrors the thresholds shipped with streaming models.
func DefaultConfig() Config {
	return Config{
		Rule1: Rule{Name: "rule1", MinTrailingSilence: 1.2},
		Rule2: Rule{Name: "rule2", MinTrailingSilence: 2.4},
		Rule3: Rule{Name: "rule3", MinUtteranceLength: 20},
	}
}

// Detector evaluates a Config against decoder progress.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) Detector {
	return Detector{cfg: cfg}
}

func (d Detector) Config() Config {
	return d.cfg
}

// Detect reports the first rule satisfied by the current utterance.
//
// numFrames counts frames decoded since the last reset, trailingSilence counts
// the silent frames at its end, and frameShift is seconds per frame.
func (d Detector) Detect(numFrames, trailingSilence int, hasOutput bool, frameShift float32) (Rule, bool) {
	if frameShift <= 0 || numFrames <= 0 {
		return Rule{}, false
	}
	if trailingSilence > numFrames {
		trailingSilence = numFrames
	}

	silence := float64(trailingSilence) * float64(frameShift)
	length := float64(numFrames) * float64(frameShift)

	if hasOutput && silenceRule(d.cfg.Rule1, silence) {
		return d.cfg.Rule1, true
	}
	if !hasOutput && silenceRule(d.cfg.Rule2, silence) {
		return d.cfg.Rule2, true
	}
	if r := d.cfg.Rule3; r.MinUtteranceLength > 0 && reached(length, r.MinUtteranceLength) {
		return r, true
	}
	return Rule{}, false
}

func silenceRule(r Rule, silence float64) bool {
	return r.MinTrailingSilence > 0 && reached(silence, r.MinTrailingSilence)
}

// reached compares with a tolerance well under one frame so that a whole
// number of frames lands on the configured threshold.
func reached(value float64, threshold float32) bool {
	return value+1e-5 >= float64(threshold)
}

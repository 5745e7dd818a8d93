package audio

// Buffer is an append-only sample store with a consumed offset.
//
// The offset never exceeds the number of stored samples. Compact drops the
// consumed prefix while Base keeps counting samples from the first Append,
// so absolute positions survive resets.
type Buffer struct {
	samples []float32
	offset  int
	base    int
}

// Append stores samples after the existing ones.
func (b *Buffer) Append(samples []float32) {
	b.samples = append(b.samples, samples...)
}

// Pending returns the unconsumed samples. The slice aliases the buffer.
func (b *Buffer) Pending() []float32 {
	return b.samples[b.offset:]
}

// PendingLen is the number of unconsumed samples.
func (b *Buffer) PendingLen() int {
	return len(b.samples) - b.offset
}

// Advance marks n more samples as consumed, clamped to what is stored.
func (b *Buffer) Advance(n int) {
	if n <= 0 {
		return
	}
	b.offset += n
	if b.offset > len(b.samples) {
		b.offset = len(b.samples)
	}
}

// Len is the number of stored samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Offset is the number of consumed samples.
func (b *Buffer) Offset() int {
	return b.offset
}

// Base is the absolute position of the first stored sample.
func (b *Buffer) Base() int {
	return b.base
}

// Compact drops consumed samples and resets the offset to zero.
func (b *Buffer) Compact() {
	if b.offset == 0 {
		return
	}
	rest := make([]float32, len(b.samples)-b.offset)
	copy(rest, b.samples[b.offset:])
	b.base += b.offset
	b.samples = rest
	b.offset = 0
}

// Release drops all samples.
func (b *Buffer) Release() {
	b.base += len(b.samples)
	b.samples = nil
	b.offset = 0
}

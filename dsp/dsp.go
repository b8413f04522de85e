// Package dsp holds small allocation-free building blocks for the render path.
package dsp

import "math"

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32
}

// NewLowpass creates a lowpass biquad filter.
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	b := &Biquad{}
	b.SetLowpass(cutoff, sampleRate, q)
	return b
}

// SetLowpass recomputes lowpass coefficients in place, keeping filter state.
// Cutoff is clamped below Nyquist.
func (b *Biquad) SetLowpass(cutoff, sampleRate, q float32) {
	if sampleRate <= 0 {
		return
	}
	if q <= 0 {
		q = 0.7071
	}
	maxCutoff := 0.45 * sampleRate
	if cutoff > maxCutoff {
		cutoff = maxCutoff
	}
	if cutoff < 10 {
		cutoff = 10
	}
	w0 := 2.0 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * float64(q))
	cosw0 := math.Cos(w0)

	a0 := 1.0 + alpha
	b.b0 = float32((1.0 - cosw0) / 2.0 / a0)
	b.b1 = float32((1.0 - cosw0) / a0)
	b.b2 = b.b0
	b.a1 = float32(-2.0 * cosw0 / a0)
	b.a2 = float32((1.0 - alpha) / a0)
}

// Process filters one sample (Direct Form I).
func (b *Biquad) Process(input float32) float32 {
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output
	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// DelayLine is a circular buffer whose active length can change without
// reallocating, up to the capacity it was created with.
type DelayLine struct {
	buffer   []float32
	writePos int
}

// NewDelayLine creates a delay line able to hold up to capacity samples.
func NewDelayLine(capacity int) *DelayLine {
	if capacity < 2 {
		capacity = 2
	}
	return &DelayLine{buffer: make([]float32, capacity)}
}

// Resize sets the active length (clamped to [2, capacity]) and clears it.
func (d *DelayLine) Resize(size int) {
	if size < 2 {
		size = 2
	}
	if size > cap(d.buffer) {
		size = cap(d.buffer)
	}
	d.buffer = d.buffer[:size]
	d.Reset()
}

// Len returns the active length.
func (d *DelayLine) Len() int {
	return len(d.buffer)
}

// Write pushes a sample.
func (d *DelayLine) Write(sample float32) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos == len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads a sample from the delay line at the given delay (in samples)
func (d *DelayLine) Read(delay int) float32 {
	n := len(d.buffer)
	readPos := ((d.writePos-delay)%n + n) % n
	return d.buffer[readPos]
}

// ReadFractional reads with fractional delay using linear interpolation
func (d *DelayLine) ReadFractional(delay float32) float32 {
	intDelay := int(delay)
	frac := delay - float32(intDelay)
	s1 := d.Read(intDelay)
	s2 := d.Read(intDelay + 1)
	return s1 + frac*(s2-s1)
}

// Add accumulates value at a position relative to the write head.
func (d *DelayLine) Add(offset int, value float32) {
	n := len(d.buffer)
	pos := ((d.writePos+offset)%n + n) % n
	d.buffer[pos] += value
}

// Energy returns the sum of squares of the active buffer.
func (d *DelayLine) Energy() float64 {
	var sum float64
	for _, v := range d.buffer {
		f := float64(v)
		sum += f * f
	}
	return sum
}

// Reset clears the delay line
func (d *DelayLine) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

package piano

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
)

const bodyPartSize = 128

// BodyConvolver applies a mono body impulse response with partitioned
// streaming convolution. Samples are buffered into full partitions, so the
// output lags the input by one partition regardless of the caller's block
// size.
type BodyConvolver struct {
	partSize int
	irLen    int
	ola      *dspconv.StreamingOverlapAddT[float32, complex64]

	in  []float32
	out []float32
	pos int
}

// NewBodyConvolver prepares a convolver for ir.
func NewBodyConvolver(ir []float32) (*BodyConvolver, error) {
	if len(ir) == 0 {
		return nil, fmt.Errorf("empty impulse response")
	}
	ola, err := dspconv.NewStreamingOverlapAdd32(ir, bodyPartSize)
	if err != nil {
		return nil, err
	}
	return &BodyConvolver{
		partSize: bodyPartSize,
		irLen:    len(ir),
		ola:      ola,
		in:       make([]float32, bodyPartSize),
		out:      make([]float32, bodyPartSize),
	}, nil
}

// Process convolves buf in place.
func (c *BodyConvolver) Process(buf []float32) {
	for i, x := range buf {
		buf[i] = c.out[c.pos]
		c.in[c.pos] = x
		c.pos++
		if c.pos == c.partSize {
			if err := c.ola.ProcessBlockTo(c.out, c.in); err != nil {
				// Fallback: pass through for this partition
				copy(c.out, c.in)
			}
			c.pos = 0
		}
	}
}

// Latency returns the fixed delay in samples introduced by Process.
func (c *BodyConvolver) Latency() int {
	return c.partSize
}

// Reset clears convolver history and overlap buffers.
func (c *BodyConvolver) Reset() {
	c.ola.Reset()
	clear(c.in)
	clear(c.out)
	c.pos = 0
}

package piano

import (
	"math"
	"testing"

	"github.com/cwbudde/sf-bridge/bank"
)

const testBankJSON = `{
  "name": "Test Grand",
  "presets": [
    {"bank": 0, "preset": 0, "name": "Concert", "release_seconds": 0.05},
    {"bank": 0, "preset": 5, "name": "Muted", "gain": 0.5, "brightness_hz": 1200, "release_seconds": 0.05}
  ]
}`

func newTestPiano(t *testing.T, polyphony int) *Piano {
	t.Helper()
	b, err := bank.Parse([]byte(testBankJSON))
	if err != nil {
		t.Fatalf("bank.Parse: %v", err)
	}
	p, err := NewPiano(b, 48000, polyphony)
	if err != nil {
		t.Fatalf("NewPiano: %v", err)
	}
	return p
}

// renderFrames renders n frames in blocks of blockSize and returns the left
// channel, failing if the channels ever differ.
func renderFrames(t *testing.T, p *Piano, n, blockSize int) []float32 {
	t.Helper()
	out := make([]float32, 0, n)
	left := make([]float32, blockSize)
	right := make([]float32, blockSize)
	for len(out) < n {
		m := min(blockSize, n-len(out))
		if err := p.Render(left[:m], right[:m]); err != nil {
			t.Fatalf("Render: %v", err)
		}
		for i := 0; i < m; i++ {
			if left[i] != right[i] {
				t.Fatalf("channel mismatch at frame %d: left=%g right=%g", len(out)+i, left[i], right[i])
			}
		}
		out = append(out, left[:m]...)
	}
	return out
}

func firstNonZero(samples []float32) int {
	for i, s := range samples {
		if s != 0 {
			return i
		}
	}
	return -1
}

func windowRMS(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func directConvolve(x, h []float32) []float32 {
	out := make([]float32, len(x)+len(h)-1)
	for i := range x {
		for j := range h {
			out[i+j] += x[i] * h[j]
		}
	}
	return out
}

func maxAbsDiff(a, b []float32) float64 {
	n := min(len(a), len(b))
	maxDiff := 0.0
	for i := 0; i < n; i++ {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}

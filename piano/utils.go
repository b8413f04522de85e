package piano

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

const maxUnison = 3

// midiNoteToFreq converts MIDI note number to frequency in Hz.
func midiNoteToFreq(note int) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * pow2Approx(exponent)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// defaultUnisonForNote returns per-string detune (cents) and gain for a key.
func defaultUnisonForNote(note int) (detunes [maxUnison]float32, gains [maxUnison]float32, n int) {
	switch {
	case note < 40:
		return [maxUnison]float32{0.0}, [maxUnison]float32{1.0}, 1
	case note < 70:
		return [maxUnison]float32{-1.8, 1.8}, [maxUnison]float32{0.52, 0.48}, 2
	default:
		return [maxUnison]float32{-3.0, 0.0, 3.0}, [maxUnison]float32{0.34, 0.33, 0.33}, 3
	}
}

func centsToRatio(cents float32) float32 {
	return pow2Approx(cents / 1200.0)
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

func maxf(a float32, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a float32, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func clampf(x, lo, hi float32) float32 {
	return maxf(lo, minf(x, hi))
}

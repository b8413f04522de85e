package piano

import (
	"math"
	"testing"
)

func TestLosslessStringIsPeriodic(t *testing.T) {
	const sampleRate = 48000
	str := newStringWaveguide(sampleRate, minF0)
	str.Tune(240)
	str.SetLoopLoss(1.0, 0)
	str.InjectForceAtPosition(1.0, 0.3)
	str.InjectForceAtPosition(-0.5, 0.7)

	const period = sampleRate / 240
	samples := make([]float32, period*6)
	for i := range samples {
		samples[i] = str.Process()
	}
	if windowRMS(samples) == 0 {
		t.Fatalf("expected excited string to produce output")
	}
	for i := period; i+period < len(samples); i++ {
		if d := math.Abs(float64(samples[i+period] - samples[i])); d > 1e-6 {
			t.Fatalf("string not periodic at %d: diff=%g", i, d)
		}
	}
}

func TestLoopLossEnergyDecays(t *testing.T) {
	const sampleRate = 48000
	str := newStringWaveguide(sampleRate, minF0)
	str.Tune(220)
	str.SetLoopLoss(0.997, 0.25)
	str.InjectForceAtPosition(0.6, 0.2)

	const numSamples = 24000
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = str.Process()
	}

	window := 2000
	prev := math.MaxFloat64
	for start := window * 2; start+window <= len(samples); start += window {
		energy := windowRMS(samples[start : start+window])
		if energy > prev*1.15 {
			t.Fatalf("energy rose unexpectedly: prev=%.8f curr=%.8f at window %d", prev, energy, start/window)
		}
		prev = energy
	}
}

func TestDamperShortensDecay(t *testing.T) {
	const sampleRate = 48000
	run := func(damped bool) float64 {
		str := newStringWaveguide(sampleRate, minF0)
		str.Tune(220)
		str.SetLoopLoss(0.9995, 0.05)
		str.InjectForceAtPosition(0.6, 0.2)
		str.SetDamper(damped)
		samples := make([]float32, 9600)
		for i := range samples {
			samples[i] = str.Process()
		}
		return windowRMS(samples[4800:])
	}
	open, damped := run(false), run(true)
	if damped >= open {
		t.Fatalf("expected damper to reduce tail energy: damped=%g open=%g", damped, open)
	}
}

func TestTuneClampsToCapacityAndClearsState(t *testing.T) {
	str := newStringWaveguide(48000, minF0)
	str.Tune(1)
	if str.delayLength > float32(str.line.Len()-2) {
		t.Fatalf("delay length exceeds line: delay=%g len=%d", str.delayLength, str.line.Len())
	}
	str.InjectForceAtPosition(1, 0.5)
	str.Tune(440)
	if e := str.line.Energy(); e != 0 {
		t.Fatalf("expected retune to clear line, energy=%g", e)
	}
}

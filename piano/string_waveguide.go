package piano

import (
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cwbudde/sf-bridge/dsp"
)

// StringWaveguide implements the digital waveguide string model.
type StringWaveguide struct {
	sampleRate  float32
	f0          float32
	delayLength float32
	line        *dsp.DelayLine

	reflection       float32
	baseReflection   float32
	damperReflection float32
	damperEngaged    bool

	lowpassCoeff float32
	loopState    float32

	dispersionCoeff float32
	dispersionX1    float32
	dispersionY1    float32
	dispersionX2    float32
	dispersionY2    float32
}

// newStringWaveguide allocates a string able to be tuned down to minF0.
func newStringWaveguide(sampleRate int, minF0 float32) *StringWaveguide {
	capacity := int(float32(sampleRate)/minF0) + 4
	return &StringWaveguide{
		sampleRate:       float32(sampleRate),
		line:             dsp.NewDelayLine(capacity),
		reflection:       0.9999,
		baseReflection:   0.9999,
		damperReflection: 0.92,
	}
}

// Tune sets the fundamental and clears all string state. Frequencies below
// the construction minimum are clamped by the delay line capacity.
func (s *StringWaveguide) Tune(f0 float32) {
	s.f0 = f0
	s.delayLength = s.sampleRate / f0
	intDelay := int(s.delayLength)
	if intDelay < 2 {
		intDelay = 2
	}
	s.line.Resize(intDelay + 4)
	if longest := float32(s.line.Len() - 2); s.delayLength > longest {
		s.delayLength = longest
	}
	s.loopState = 0
	s.dispersionX1, s.dispersionY1 = 0, 0
	s.dispersionX2, s.dispersionY2 = 0, 0
	s.damperEngaged = false
	s.reflection = s.baseReflection
}

// Process renders one sample from the string and advances the simulation.
func (s *StringWaveguide) Process() float32 {
	delayedSample := s.line.ReadFractional(s.delayLength)
	dispersed := s.processDispersion(delayedSample)
	loopSample := s.processLoopLoss(dispersed)
	s.line.Write(loopSample)
	return delayedSample
}

// InjectForceAtPosition injects a single-sample force at a fractional string position.
func (s *StringWaveguide) InjectForceAtPosition(force float32, strikePos float32) {
	strikePos = clampf(strikePos, 0.01, 0.99)
	s.line.Add(int(float32(s.line.Len())*strikePos), force)
}

// SetLoopLoss configures loop loss.
func (s *StringWaveguide) SetLoopLoss(gain float32, highFreqDamping float32) {
	gain = clampf(gain, 0.0001, 1.0)
	s.reflection = gain
	s.baseReflection = gain
	if s.damperEngaged {
		s.reflection = s.damperReflection
	}
	s.lowpassCoeff = clampf(highFreqDamping, 0.0, 0.99)
}

// SetDamper toggles aggressive damping for release behavior.
func (s *StringWaveguide) SetDamper(engaged bool) {
	s.damperEngaged = engaged
	if engaged {
		s.reflection = s.damperReflection
		return
	}
	s.reflection = s.baseReflection
}

// SetDispersion maps a small inharmonicity amount [0,1] to allpass coefficient.
func (s *StringWaveguide) SetDispersion(amount float32) {
	s.dispersionCoeff = -0.85 * clampf(amount, 0.0, 1.0)
}

func (s *StringWaveguide) processLoopLoss(input float32) float32 {
	lp := (1.0-s.lowpassCoeff)*input + s.lowpassCoeff*s.loopState
	lp = float32(dspcore.FlushDenormals(float64(lp)))
	s.loopState = lp
	return float32(dspcore.FlushDenormals(float64(lp * s.reflection)))
}

func (s *StringWaveguide) processDispersion(input float32) float32 {
	a := s.dispersionCoeff
	if a == 0.0 {
		return input
	}
	y := -a*input + s.dispersionX1 + a*s.dispersionY1
	s.dispersionX1 = input
	s.dispersionY1 = y

	z := -a*y + s.dispersionX2 + a*s.dispersionY2
	s.dispersionX2 = y
	s.dispersionY2 = z
	return z
}

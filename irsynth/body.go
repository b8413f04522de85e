// Package irsynth synthesizes soundboard impulse responses for instrument
// banks that ship without a recorded one.
//
// Body modes sit on the eigenfrequencies of a simply supported orthotropic
// plate:
//
//	f_mn / f_11 = sqrt(S m^4 + 2 sqrt(S) m^2 n^2 R^2 + n^4 R^4) / sqrt(S + 2 sqrt(S) R^2 + R^4)
//
// with S the stiffness ratio Dx/Dy and R the aspect ratio Lx/Ly. Modes below
// the crossover ring with the low decay time, modes above it with the high
// one.
package irsynth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

const (
	lowestModeHz = 35.0
	nyquistGuard = 0.47
	dcPole       = 0.995
)

// BodyConfig controls body IR generation.
type BodyConfig struct {
	SampleRate     int
	Seconds        float64 // typically 0.02 to 0.3
	Modes          int     // upper bound, typically 8 to 96
	Seed           uint64
	Brightness     float64
	PlateRatio     float64 // Lx/Ly, about 1 to 3
	StiffnessRatio float64 // Dx/Dy, about 5 to 20 for spruce
	DirectLevel    float64
	LowDecay       float64 // seconds
	HighDecay      float64 // seconds
	CrossoverHz    float64
	FadeOut        float64 // seconds of cosine fade at the end, 0 disables
	Peak           float64 // output is normalized to this absolute peak
}

// DefaultBodyConfig returns a short grand piano soundboard at 48 kHz.
func DefaultBodyConfig() BodyConfig {
	return BodyConfig{
		SampleRate:     48000,
		Seconds:        0.05,
		Modes:          32,
		Seed:           1,
		Brightness:     1.0,
		PlateRatio:     1.6,
		StiffnessRatio: 12.0,
		DirectLevel:    0.6,
		LowDecay:       0.15,
		HighDecay:      0.03,
		CrossoverHz:    800.0,
		FadeOut:        0.005,
		Peak:           0.9,
	}
}

// Validate reports the first invalid field.
func (c *BodyConfig) Validate() error {
	switch {
	case c.SampleRate < 8000:
		return fmt.Errorf("irsynth: sample rate too low: %d", c.SampleRate)
	case c.Seconds <= 0:
		return errors.New("irsynth: duration must be > 0")
	case c.Modes < 1:
		return errors.New("irsynth: modes must be >= 1")
	case c.Brightness <= 0:
		return errors.New("irsynth: brightness must be > 0")
	case c.PlateRatio <= 0 || c.StiffnessRatio <= 0:
		return errors.New("irsynth: plate and stiffness ratios must be > 0")
	case c.DirectLevel < 0:
		return errors.New("irsynth: direct level must be >= 0")
	case c.LowDecay <= 0 || c.HighDecay <= 0:
		return errors.New("irsynth: decay times must be > 0")
	case c.CrossoverHz <= 0:
		return errors.New("irsynth: crossover must be > 0")
	case c.FadeOut < 0:
		return errors.New("irsynth: fade out must be >= 0")
	case c.Peak <= 0:
		return errors.New("irsynth: peak must be > 0")
	}
	return nil
}

// GenerateBody returns a mono body IR. Equal configs give identical output.
func GenerateBody(cfg BodyConfig) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sr := float64(cfg.SampleRate)
	n := max(int(math.Round(cfg.Seconds*sr)), 1)
	acc := make([]float64, n)
	acc[0] = cfg.DirectLevel

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	top := max(nyquistGuard*sr, 500.0)
	exp := 0.7 + 0.9*cfg.Brightness
	logCross := math.Log(cfg.CrossoverHz)
	for _, f := range plateModes(lowestModeHz, top, cfg.Modes, cfg.PlateRatio, cfg.StiffnessRatio) {
		amp := 0.9 / math.Pow(1.0+f/120.0, exp) * (0.7 + 0.6*rng.Float64())
		w := 1.0 / (1.0 + math.Exp(-3.0*(math.Log(f)-logCross)))
		tau := cfg.LowDecay*(1-w) + cfg.HighDecay*w
		ringMode(acc, amp, 2*math.Pi*f/sr, rng.Float64()*2*math.Pi, math.Exp(-1.0/(tau*sr)))
	}

	blockDC(acc)
	fadeTail(acc, int(math.Round(cfg.FadeOut*sr)))
	return normalize(acc, cfg.Peak), nil
}

// plateModes returns up to limit eigenfrequencies in [f11, top], ascending.
func plateModes(f11, top float64, limit int, ratio, stiffness float64) []float64 {
	rs := math.Sqrt(stiffness)
	r2 := ratio * ratio
	norm := math.Sqrt(stiffness + 2*rs*r2 + r2*r2)
	mMax := int(math.Sqrt(top/f11*norm/rs)) + 2
	nMax := int(math.Sqrt(top/f11*norm)) + 2

	var freqs []float64
	for m := 1; m <= mMax; m++ {
		m2 := float64(m * m)
		for k := 1; k <= nMax; k++ {
			k2 := float64(k * k)
			f := f11 * math.Sqrt(stiffness*m2*m2+2*rs*m2*k2*r2+k2*k2*r2*r2) / norm
			if f > top {
				break
			}
			freqs = append(freqs, f)
		}
	}
	slices.Sort(freqs)
	if len(freqs) > limit {
		freqs = freqs[:limit]
	}
	return freqs
}

// ringMode adds an exponentially decaying cosine using the two-term
// oscillator recurrence.
func ringMode(dst []float64, amp, omega, phase, decay float64) {
	c := 2 * math.Cos(omega)
	prev, cur := math.Cos(phase-omega), math.Cos(phase)
	env := amp
	for i := range dst {
		dst[i] += env * cur
		prev, cur = cur, c*cur-prev
		env *= decay
	}
}

func blockDC(x []float64) {
	var xin, yout float64
	for i, v := range x {
		yout = v - xin + dcPole*yout
		xin = v
		x[i] = yout
	}
}

func fadeTail(x []float64, n int) {
	n = min(n, len(x))
	start := len(x) - n
	span := float64(max(n-1, 1))
	for i := range n {
		x[start+i] *= 0.5 * (1 + math.Cos(math.Pi*float64(i)/span))
	}
}

func normalize(x []float64, peak float64) []float32 {
	var m float64
	for _, v := range x {
		m = max(m, math.Abs(v))
	}
	scale := peak / max(m, 1e-12)
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v * scale)
	}
	return out
}

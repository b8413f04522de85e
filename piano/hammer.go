package piano

import "math"

// Nominal felt at full strike.
const (
	feltMass          = 0.010
	feltStiffness     = 1.1e6
	feltExponent      = 2.3
	feltRestGap       = 0.00012
	feltSettleSeconds = 0.00025
)

// Hammer is a power-law felt spring with velocity dependent damping
// (Hunt-Crossley) pressed against the string. Contact ends on rebound or
// when the strike time limit runs out, whichever comes first.
type Hammer struct {
	dt      float32
	invMass float32
	k       float32
	alpha   float32

	gap   float32 // felt position relative to the string rest point
	speed float32

	elapsed int
	settle  int
	limit   int
	active  bool
}

// Strike re-arms the hammer for a key press. hardness scales the felt
// stiffness; harder felt gives a brighter, shorter impulse.
func (h *Hammer) Strike(sampleRate, velocity int, hardness float32) {
	v := float32(min(max(velocity, 1), 127)) / 127
	sr := float32(sampleRate)
	*h = Hammer{
		dt:      1 / sr,
		invMass: 1 / feltMass,
		k:       feltStiffness * (0.5 + 2.5*v) * hardness,
		alpha:   0.10 + 0.20*v,
		gap:     feltRestGap,
		speed:   0.6 + 3.0*v,
		settle:  int(sr * feltSettleSeconds),
		limit:   int(sr * (0.0040 - 0.0030*v)),
		active:  true,
	}
}

// InContact reports whether the felt still touches the string.
func (h *Hammer) InContact() bool {
	return h.active
}

// Step advances one sample against a string displaced by stringDisp and
// returns the force applied to it.
func (h *Hammer) Step(stringDisp float32) float32 {
	if !h.active {
		return 0
	}
	compression := h.gap - stringDisp
	var force float32
	if compression > 0 {
		spring := h.k * float32(math.Pow(float64(compression), feltExponent))
		force = spring * (1 + h.alpha*maxf(h.speed, 0))
	}
	if !isFinite(force) {
		h.active = false
		return 0
	}

	h.speed -= force * h.invMass * h.dt
	h.gap += h.speed * h.dt
	h.elapsed++

	switch {
	case h.elapsed >= h.limit:
		h.active = false
	case h.elapsed > h.settle && compression <= 0 && h.speed <= 0:
		h.active = false
	}
	return force
}

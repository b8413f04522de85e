package piano

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/sf-bridge/bank"
	"github.com/cwbudde/sf-bridge/dsp"
)

// minF0 bounds the delay line capacity; lower keys are clamped to it.
const minF0 = 20.0

// silenceGain ends a released voice once its envelope falls below -80 dB.
const silenceGain = 1e-4

// Voice represents one sounding key. Voices are pooled: all buffers are
// allocated once and re-armed by start.
type Voice struct {
	sampleRate int
	channel    int
	note       int
	velocity   int
	serial     uint64

	f0              float32
	strikePos       float32
	gain            float32
	unisonCrossfeed float32
	hammer          Hammer
	tone            dsp.Biquad

	strings     [maxUnison]*StringWaveguide
	stringGains [maxUnison]float32
	numStrings  int

	active      bool
	released    bool
	env         float32
	releaseStep float32
	releaseSecs float32
}

func newVoice(sampleRate int) *Voice {
	v := &Voice{sampleRate: sampleRate}
	for i := range v.strings {
		v.strings[i] = newStringWaveguide(sampleRate, minF0)
	}
	return v
}

// start re-arms the voice for a key press using preset p.
func (v *Voice) start(channel, note, velocity int, p *bank.Preset, serial uint64) {
	strikePos := p.StrikePosition
	lossGain := p.Loss
	inharmonicity := p.Inharmonicity
	freq := midiNoteToFreq(note)
	if np, ok := p.PerNote[note]; ok && np != nil {
		if np.StrikePosition > 0.0 && np.StrikePosition < 1.0 {
			strikePos = np.StrikePosition
		}
		if np.Loss > 0.0 && np.Loss <= 1.0 {
			lossGain = np.Loss
		}
		if np.Inharmonicity > 0.0 {
			inharmonicity = np.Inharmonicity
		}
		if np.F0 > 0 {
			freq = np.F0
		}
	}
	nyquist := 0.5 * float32(v.sampleRate)
	freq = clampf(freq, minF0, 0.45*nyquist)

	v.channel = channel
	v.note = note
	v.velocity = velocity
	v.serial = serial
	v.f0 = freq
	v.strikePos = strikePos
	v.unisonCrossfeed = 0.0008
	vel := float32(velocity) / 127.0
	v.gain = p.Gain * (0.25 + 0.75*vel)
	v.hammer.Strike(v.sampleRate, velocity, p.HammerHardness)
	v.tone.SetLowpass(p.BrightnessHz*(0.35+0.65*vel), float32(v.sampleRate), 0.7071)
	v.tone.Reset()

	detunes, gains, n := defaultUnisonForNote(note)
	v.numStrings = n
	for i := 0; i < n; i++ {
		str := v.strings[i]
		str.Tune(freq * centsToRatio(detunes[i]*p.UnisonDetuneScale))
		str.SetLoopLoss(lossGain, p.HighFreqDamping)
		str.SetDispersion(inharmonicity)
		v.stringGains[i] = gains[i]
	}

	v.active = true
	v.released = false
	v.env = 1.0
	v.releaseStep = 1.0
	v.releaseSecs = p.ReleaseSeconds
}

// release engages the dampers and starts the -60 dB release ramp.
func (v *Voice) release() {
	if !v.active || v.released {
		return
	}
	v.released = true
	for i := 0; i < v.numStrings; i++ {
		v.strings[i].SetDamper(true)
	}
	samples := v.releaseSecs * float32(v.sampleRate)
	if samples < 1 {
		samples = 1
	}
	v.releaseStep = approx.FastExp(float32(math.Log(0.001)) / samples)
}

func (v *Voice) stop() {
	v.active = false
	v.released = false
}

// renderAdd accumulates len(dst) samples into dst.
func (v *Voice) renderAdd(dst []float32) {
	if !v.active {
		return
	}
	for i := range dst {
		var sample float32
		if v.hammer.InContact() {
			contactForce := v.hammer.Step(0)
			for j := 0; j < v.numStrings; j++ {
				v.strings[j].InjectForceAtPosition(contactForce*0.002, v.strikePos)
			}
		}
		for j := 0; j < v.numStrings; j++ {
			sample += v.strings[j].Process() * v.stringGains[j]
		}
		if v.numStrings > 1 {
			cross := sample * v.unisonCrossfeed
			for j := 0; j < v.numStrings; j++ {
				v.strings[j].InjectForceAtPosition(cross, 0.92)
			}
		}
		if v.released {
			v.env *= v.releaseStep
			if v.env < silenceGain {
				v.stop()
				return
			}
		}
		dst[i] += v.tone.Process(sample) * v.gain * v.env
	}
}

// Package bank parses the instrument bank consumed by the native piano
// engine. A bank is a JSON document with an optional embedded body impulse
// response and a list of presets addressed by (bank, preset) numbers.
package bank

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/wavio"
)

// File is the JSON schema of an instrument bank.
type File struct {
	Name       string       `json:"name"`
	OutputGain *float32     `json:"output_gain"`
	BodyIRWav  []byte       `json:"body_ir_wav,omitempty"`
	Presets    []PresetFile `json:"presets"`
}

// PresetFile is one preset entry. Nil fields keep the built-in voicing.
type PresetFile struct {
	Bank              int                    `json:"bank"`
	Preset            int                    `json:"preset"`
	Name              string                 `json:"name"`
	Gain              *float32               `json:"gain"`
	Loss              *float32               `json:"loss"`
	Inharmonicity     *float32               `json:"inharmonicity"`
	StrikePosition    *float32               `json:"strike_position"`
	HighFreqDamping   *float32               `json:"high_freq_damping"`
	BrightnessHz      *float32               `json:"brightness_hz"`
	UnisonDetuneScale *float32               `json:"unison_detune_scale"`
	ReleaseSeconds    *float32               `json:"release_seconds"`
	HammerHardness    *float32               `json:"hammer_hardness"`
	PerNote           map[string]NoteSetting `json:"per_note"`
}

// NoteSetting is a partial note override entry in a preset.
type NoteSetting struct {
	F0             *float32 `json:"f0"`
	Inharmonicity  *float32 `json:"inharmonicity"`
	Loss           *float32 `json:"loss"`
	StrikePosition *float32 `json:"strike_position"`
}

// Bank is a parsed, validated instrument bank. It is not modified after
// Parse returns.
type Bank struct {
	Name       string
	OutputGain float32
	BodyIR     []float32
	BodyIRRate int
	Presets    []*Preset
}

// Preset holds the voicing of one program.
type Preset struct {
	Bank              int
	Number            int
	Name              string
	Gain              float32
	Loss              float32
	Inharmonicity     float32
	StrikePosition    float32
	HighFreqDamping   float32
	BrightnessHz      float32
	UnisonDetuneScale float32
	ReleaseSeconds    float32
	HammerHardness    float32
	PerNote           map[int]*NoteParams
}

// NoteParams holds parameters for a specific key.
type NoteParams struct {
	F0             float32
	Inharmonicity  float32
	Loss           float32
	StrikePosition float32
}

// Hammer hardness range. 1 is the nominal felt.
const (
	MinHammerHardness = 0.5
	MaxHammerHardness = 1.5
)

// DefaultPreset returns the voicing used when a bank defines no presets.
func DefaultPreset() *Preset {
	return &Preset{
		Name:              "Default Piano",
		Gain:              1.0,
		Loss:              0.9998,
		Inharmonicity:     0.0,
		StrikePosition:    0.18,
		HighFreqDamping:   0.05,
		BrightnessHz:      9000,
		UnisonDetuneScale: 1.0,
		ReleaseSeconds:    0.6,
		HammerHardness:    1.0,
		PerNote:           make(map[int]*NoteParams),
	}
}

// Parse decodes and validates bank bytes. All validation failures wrap
// engine.ErrConfig.
func Parse(data []byte) (*Bank, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instrument bank", engine.ErrConfig)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode instrument bank: %v", engine.ErrConfig, err)
	}
	b, err := FromFile(&f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	return b, nil
}

// FromFile validates a decoded bank file.
func FromFile(f *File) (*Bank, error) {
	if f == nil {
		return nil, fmt.Errorf("nil bank file")
	}
	b := &Bank{
		Name:       strings.TrimSpace(f.Name),
		OutputGain: 1.0,
	}
	if f.OutputGain != nil {
		if *f.OutputGain <= 0 {
			return nil, fmt.Errorf("output_gain must be > 0")
		}
		b.OutputGain = *f.OutputGain
	}
	if len(f.BodyIRWav) > 0 {
		ir, rate, err := wavio.DecodeMono(f.BodyIRWav)
		if err != nil {
			return nil, fmt.Errorf("body_ir_wav: %v", err)
		}
		b.BodyIR = ir
		b.BodyIRRate = rate
	}

	seen := make(map[[2]int]bool, len(f.Presets))
	for i := range f.Presets {
		pf := &f.Presets[i]
		if pf.Bank < 0 || pf.Bank > 0xFFFF || pf.Preset < 0 || pf.Preset > 0xFFFF {
			return nil, fmt.Errorf("presets[%d]: bank/preset out of range (0..65535)", i)
		}
		key := [2]int{pf.Bank, pf.Preset}
		if seen[key] {
			return nil, fmt.Errorf("presets[%d]: duplicate bank %d preset %d", i, pf.Bank, pf.Preset)
		}
		seen[key] = true
		p := DefaultPreset()
		p.Bank = pf.Bank
		p.Number = pf.Preset
		p.Name = strings.TrimSpace(pf.Name)
		if err := applyPreset(p, pf); err != nil {
			return nil, fmt.Errorf("presets[%d]: %v", i, err)
		}
		b.Presets = append(b.Presets, p)
	}
	sort.SliceStable(b.Presets, func(i, j int) bool {
		if b.Presets[i].Bank != b.Presets[j].Bank {
			return b.Presets[i].Bank < b.Presets[j].Bank
		}
		return b.Presets[i].Number < b.Presets[j].Number
	})
	return b, nil
}

// Lookup returns the preset at (bank, number).
func (b *Bank) Lookup(bank, number int) (*Preset, bool) {
	for _, p := range b.Presets {
		if p.Bank == bank && p.Number == number {
			return p, true
		}
	}
	return nil, false
}

// Headers lists the presets in bank order.
func (b *Bank) Headers() []engine.PresetHeader {
	out := make([]engine.PresetHeader, 0, len(b.Presets))
	for _, p := range b.Presets {
		out = append(out, engine.PresetHeader{Name: p.Name, Bank: p.Bank, Preset: p.Number})
	}
	return out
}

func applyPreset(dst *Preset, f *PresetFile) error {
	if f.Gain != nil {
		if *f.Gain <= 0 {
			return fmt.Errorf("gain must be > 0")
		}
		dst.Gain = *f.Gain
	}
	if f.Loss != nil {
		if *f.Loss <= 0 || *f.Loss > 1 {
			return fmt.Errorf("loss must be in (0,1]")
		}
		dst.Loss = *f.Loss
	}
	if f.Inharmonicity != nil {
		if *f.Inharmonicity < 0 || *f.Inharmonicity > 1 {
			return fmt.Errorf("inharmonicity must be in [0,1]")
		}
		dst.Inharmonicity = *f.Inharmonicity
	}
	if f.StrikePosition != nil {
		if *f.StrikePosition <= 0 || *f.StrikePosition >= 1 {
			return fmt.Errorf("strike_position must be in (0,1)")
		}
		dst.StrikePosition = *f.StrikePosition
	}
	if f.HighFreqDamping != nil {
		if *f.HighFreqDamping < 0 || *f.HighFreqDamping >= 1 {
			return fmt.Errorf("high_freq_damping must be in [0,1)")
		}
		dst.HighFreqDamping = *f.HighFreqDamping
	}
	if f.BrightnessHz != nil {
		if *f.BrightnessHz < 20 {
			return fmt.Errorf("brightness_hz must be >= 20")
		}
		dst.BrightnessHz = *f.BrightnessHz
	}
	if f.UnisonDetuneScale != nil {
		if *f.UnisonDetuneScale < 0 {
			return fmt.Errorf("unison_detune_scale must be >= 0")
		}
		dst.UnisonDetuneScale = *f.UnisonDetuneScale
	}
	if f.ReleaseSeconds != nil {
		if *f.ReleaseSeconds <= 0 {
			return fmt.Errorf("release_seconds must be > 0")
		}
		dst.ReleaseSeconds = *f.ReleaseSeconds
	}
	if f.HammerHardness != nil {
		if *f.HammerHardness < MinHammerHardness || *f.HammerHardness > MaxHammerHardness {
			return fmt.Errorf("hammer_hardness must be in [%g,%g]", MinHammerHardness, MaxHammerHardness)
		}
		dst.HammerHardness = *f.HammerHardness
	}

	keys := make([]string, 0, len(f.PerNote))
	for k := range f.PerNote {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		note, err := strconv.Atoi(k)
		if err != nil || note < 0 || note > 127 {
			return fmt.Errorf("invalid per_note key %q (expected 0..127)", k)
		}
		override := f.PerNote[k]
		np := &NoteParams{}
		if override.F0 != nil {
			if *override.F0 <= 0 {
				return fmt.Errorf("per_note[%d].f0 must be > 0", note)
			}
			np.F0 = *override.F0
		}
		if override.Inharmonicity != nil {
			if *override.Inharmonicity < 0 {
				return fmt.Errorf("per_note[%d].inharmonicity must be >= 0", note)
			}
			np.Inharmonicity = *override.Inharmonicity
		}
		if override.Loss != nil {
			if *override.Loss <= 0 || *override.Loss > 1 {
				return fmt.Errorf("per_note[%d].loss must be in (0,1]", note)
			}
			np.Loss = *override.Loss
		}
		if override.StrikePosition != nil {
			if *override.StrikePosition <= 0 || *override.StrikePosition >= 1 {
				return fmt.Errorf("per_note[%d].strike_position must be in (0,1)", note)
			}
			np.StrikePosition = *override.StrikePosition
		}
		dst.PerNote[note] = np
	}
	return nil
}

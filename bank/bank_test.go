package bank

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/wavio"
)

func TestParseAppliesPresetAndPerNote(t *testing.T) {
	content := `{
  "name": "Studio Grand",
  "output_gain": 0.9,
  "presets": [
    {"bank": 0, "preset": 1, "name": "Bright", "brightness_hz": 12000, "hammer_hardness": 1.3},
    {
      "bank": 0, "preset": 0, "name": "Concert",
      "loss": 0.998,
      "inharmonicity": 0.15,
      "strike_position": 0.22,
      "per_note": {"60": {"loss": 0.997, "f0": 262}}
    }
  ]
}`
	b, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Name != "Studio Grand" || b.OutputGain != 0.9 {
		t.Fatalf("bank fields mismatch: %+v", b)
	}
	if len(b.Presets) != 2 {
		t.Fatalf("preset count mismatch: got=%d want=2", len(b.Presets))
	}
	if b.Presets[0].Number != 0 || b.Presets[1].Number != 1 {
		t.Fatalf("expected presets sorted by number, got %d,%d", b.Presets[0].Number, b.Presets[1].Number)
	}
	p, ok := b.Lookup(0, 0)
	if !ok {
		t.Fatalf("missing preset 0:0")
	}
	if p.Loss != 0.998 || p.Inharmonicity != 0.15 || p.StrikePosition != 0.22 || p.HammerHardness != 1 {
		t.Fatalf("preset params mismatch: %+v", p)
	}
	np := p.PerNote[60]
	if np == nil || np.Loss != 0.997 || np.F0 != 262 {
		t.Fatalf("note params mismatch: %+v", np)
	}
	bright, _ := b.Lookup(0, 1)
	if bright.BrightnessHz != 12000 || bright.HammerHardness != 1.3 || bright.Loss != DefaultPreset().Loss {
		t.Fatalf("expected defaults to survive partial preset: %+v", bright)
	}

	headers := b.Headers()
	want := []engine.PresetHeader{
		{Name: "Concert", Bank: 0, Preset: 0},
		{Name: "Bright", Bank: 0, Preset: 1},
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Fatalf("header %d mismatch: got=%+v want=%+v", i, headers[i], want[i])
		}
	}
}

func TestParseEmptyPresetListIsValid(t *testing.T) {
	b, err := Parse([]byte(`{"name": "bare"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Headers()) != 0 {
		t.Fatalf("expected no headers, got %d", len(b.Headers()))
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", ``},
		{"not json", `RIFF....sfbk`},
		{"bad gain", `{"output_gain": 0}`},
		{"bad note key", `{"presets": [{"per_note": {"x": {"loss": 0.99}}}]}`},
		{"bad loss", `{"presets": [{"per_note": {"60": {"loss": 1.2}}}]}`},
		{"duplicate", `{"presets": [{"bank": 0, "preset": 3}, {"bank": 0, "preset": 3}]}`},
		{"range", `{"presets": [{"bank": 70000, "preset": 0}]}`},
		{"soft hammer", `{"presets": [{"hammer_hardness": 0.2}]}`},
		{"bad ir", `{"body_ir_wav": "bm90IGEgd2F2"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, engine.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestParseDecodesEmbeddedImpulseResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.wav")
	if err := wavio.WriteInterleaved(path, []float32{1.0, 0.4, 0.2, 0.1}, 44100, 1); err != nil {
		t.Fatalf("write ir: %v", err)
	}
	irBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ir: %v", err)
	}
	data, err := json.Marshal(File{Name: "with ir", BodyIRWav: irBytes})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.BodyIRRate != 44100 || len(b.BodyIR) != 4 {
		t.Fatalf("ir mismatch: rate=%d len=%d", b.BodyIRRate, len(b.BodyIR))
	}
	if b.BodyIR[0] < 0.9 {
		t.Fatalf("expected leading impulse near 1, got %f", b.BodyIR[0])
	}
}

package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cwbudde/sf-bridge/bridge"
)

func TestParseScriptOrdersByTime(t *testing.T) {
	in := `
# warm-up chord
{"at": 0.5, "msg": {"type": "send-note-off-event", "key": 60}}
{"at": 0, "msg": {"type": "send-note-on-event", "key": 60, "vel": 90}}
{"at": 0, "msg": {"type": "send-note-on-event", "key": 64, "vel": 90, "delayTime": 0.001}}

{"at": 0.25, "msg": {"type": "program-select", "bank_num": 0, "preset_num": 2}}
`
	events, err := parseScript(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	want := []scriptEvent{
		{At: 0, Msg: bridge.NoteOn{Key: 60, Velocity: 90}},
		{At: 0, Msg: bridge.NoteOn{Key: 64, Velocity: 90, Delay: 0.001}},
		{At: 0.25, Msg: bridge.SelectProgram{Bank: 0, Preset: 2}},
		{At: 0.5, Msg: bridge.NoteOff{Key: 60}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events: got=%#v want=%#v", events, want)
	}
	if got := scriptEnd(events); got != 0.5 {
		t.Fatalf("scriptEnd: got=%v want=0.5", got)
	}
}

func TestParseScriptReportsLine(t *testing.T) {
	tests := map[string]string{
		"missing at":   `{"msg": {"type": "get-preset-headers"}}`,
		"negative at":  `{"at": -1, "msg": {"type": "get-preset-headers"}}`,
		"unknown type": `{"at": 0, "msg": {"type": "reset"}}`,
		"syntax":       `{"at": 0,`,
	}
	for name, line := range tests {
		_, err := parseScript(strings.NewReader("\n" + line + "\n"))
		if err == nil || !strings.Contains(err.Error(), "line 2") {
			t.Fatalf("%s: got=%v want error on line 2", name, err)
		}
	}
}

func TestNoteScript(t *testing.T) {
	events := noteScript(69, 100, 1.5)
	if len(events) != 2 || events[0].Msg != (bridge.NoteOn{Key: 69, Velocity: 100}) || events[1].At != 1.5 {
		t.Fatalf("unexpected note script %#v", events)
	}
	if scriptEnd(nil) != 0 {
		t.Fatal("expected empty script to end at 0")
	}
}

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/cwbudde/sf-bridge/bridge"
)

// scriptEvent is one control message and the host time it is sent at.
// Sample-accurate placement inside a block comes from the message's own
// delay field.
type scriptEvent struct {
	At  float64
	Msg bridge.Message
}

type scriptLine struct {
	At  *float64        `json:"at"`
	Msg json.RawMessage `json:"msg"`
}

func loadScript(path string) ([]scriptEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	events, err := parseScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// parseScript reads JSON lines of the form {"at": seconds, "msg": {...}}.
// Blank lines and lines starting with '#' are skipped. Events are returned
// ordered by time, keeping file order for equal times.
func parseScript(r io.Reader) ([]scriptEvent, error) {
	var events []scriptEvent
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var sl scriptLine
		if err := json.Unmarshal(line, &sl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if sl.At == nil || *sl.At < 0 || math.IsInf(*sl.At, 0) {
			return nil, fmt.Errorf("line %d: \"at\" must be a non-negative time in seconds", lineNo)
		}
		msg, err := bridge.DecodeMessage(sl.Msg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, scriptEvent{At: *sl.At, Msg: msg})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return events, nil
}

// noteScript plays one note for hold seconds.
func noteScript(key, velocity int, hold float64) []scriptEvent {
	return []scriptEvent{
		{At: 0, Msg: bridge.NoteOn{Key: key, Velocity: velocity}},
		{At: hold, Msg: bridge.NoteOff{Key: key}},
	}
}

func scriptEnd(events []scriptEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].At
}

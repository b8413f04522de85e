package bridge

import (
	"fmt"
	"math"

	"github.com/cwbudde/sf-bridge/engine"
)

const (
	maxChannel = 15
	maxKey     = 127
	maxProgram = 0xFFFF

	// maxDelayFrames bounds scheduling to roughly a day at 192 kHz.
	maxDelayFrames = 1 << 34
)

type commandKind uint8

const (
	cmdNoteOn commandKind = iota + 1
	cmdNoteOff
	cmdSelectProgram
)

// command is a message bound to an absolute frame of the render clock.
type command struct {
	kind     commandKind
	channel  int
	key      int
	velocity int
	bank     int
	preset   int
	target   int64
}

// scheduler converts musical messages into commands using the sample rate
// fixed at InitSynth.
type scheduler struct {
	sampleRate int
}

func (s scheduler) noteOn(m NoteOn, now int64) (command, error) {
	if err := checkNote(m.Channel, m.Key); err != nil {
		return command{}, err
	}
	if m.Velocity < 0 || m.Velocity > 127 {
		return command{}, fmt.Errorf("%w: velocity %d", ErrInvalidEvent, m.Velocity)
	}
	target, err := s.target(m.Delay, now)
	if err != nil {
		return command{}, err
	}
	return command{kind: cmdNoteOn, channel: m.Channel, key: m.Key, velocity: m.Velocity, target: target}, nil
}

func (s scheduler) noteOff(m NoteOff, now int64) (command, error) {
	if err := checkNote(m.Channel, m.Key); err != nil {
		return command{}, err
	}
	target, err := s.target(m.Delay, now)
	if err != nil {
		return command{}, err
	}
	return command{kind: cmdNoteOff, channel: m.Channel, key: m.Key, target: target}, nil
}

// selectProgram targets the current frame so it stays ordered with notes.
func (s scheduler) selectProgram(m SelectProgram, now int64) (command, error) {
	if m.Channel < 0 || m.Channel > maxChannel {
		return command{}, fmt.Errorf("%w: channel %d", ErrInvalidEvent, m.Channel)
	}
	if m.Bank < 0 || m.Bank > maxProgram || m.Preset < 0 || m.Preset > maxProgram {
		return command{}, fmt.Errorf("%w: program %d:%d", ErrInvalidEvent, m.Bank, m.Preset)
	}
	return command{kind: cmdSelectProgram, channel: m.Channel, bank: m.Bank, preset: m.Preset, target: now}, nil
}

// target returns now + round(delay * sampleRate).
func (s scheduler) target(delay float64, now int64) (int64, error) {
	if math.IsNaN(delay) || math.IsInf(delay, 0) {
		return 0, fmt.Errorf("%w: delay %v", ErrInvalidEvent, delay)
	}
	frames := math.Round(delay * float64(s.sampleRate))
	if math.Abs(frames) > maxDelayFrames {
		return 0, fmt.Errorf("%w: delay %gs out of range", ErrInvalidEvent, delay)
	}
	return now + int64(frames), nil
}

func checkNote(channel, key int) error {
	if channel < 0 || channel > maxChannel {
		return fmt.Errorf("%w: channel %d", ErrInvalidEvent, channel)
	}
	if key < 0 || key > maxKey {
		return fmt.Errorf("%w: key %d", ErrInvalidEvent, key)
	}
	return nil
}

// apply forwards c to e relative to the render clock at now. It reports
// whether a note's target frame had already passed.
func (c command) apply(e engine.Engine, now int64) (late bool) {
	offset := c.target - now
	if offset < 0 {
		offset = 0
		late = c.kind != cmdSelectProgram
	}
	switch c.kind {
	case cmdNoteOn:
		e.NoteOn(c.channel, c.key, c.velocity, int(offset))
	case cmdNoteOff:
		e.NoteOff(c.channel, c.key, int(offset))
	case cmdSelectProgram:
		e.ProgramSelect(c.channel, c.bank, c.preset)
	}
	return late
}

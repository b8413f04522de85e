package bridge

import "fmt"

// State is the lifecycle state of a bridge. States only ever advance.
type State int32

const (
	Uninitialized State = iota
	EngineBytesPending
	EngineLoaded
	SynthReady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case EngineBytesPending:
		return "engine-bytes-pending"
	case EngineLoaded:
		return "engine-loaded"
	case SynthReady:
		return "synth-ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

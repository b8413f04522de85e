package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/bridge"
)

func TestForwardAcksDropsUntilReady(t *testing.T) {
	acks := make(chan bridge.Ack)
	ready := make(chan struct{})
	delivered := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		forwardAcks(acks, ready, func(data []byte) { delivered <- string(data) }, zap.NewNop())
		close(done)
	}()

	// Unbuffered sends only complete once the forwarder has taken them.
	for range 32 {
		acks <- bridge.ModuleLoaded{}
	}
	close(ready)
	acks <- bridge.SynthInitialized{SampleRate: 48000}
	close(acks)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("forwardAcks did not return after acks closed")
	}
	if len(delivered) != 1 {
		t.Fatalf("delivered: got=%d want=1", len(delivered))
	}
	want := `{"type":"synth-initialized","sampleRate":48000}`
	if got := <-delivered; got != want {
		t.Fatalf("ack: got=%s want=%s", got, want)
	}
}

//go:build js && wasm

// Command sfbridge-wasm exposes a bridge to an AudioWorklet.
//
// JavaScript posts JSON control messages with sfbridgePostMessage, pulls
// audio with sfbridgeProcessBlock and receives JSON acknowledgments through
// the callback registered with sfbridgeOnAck. Engine modules resolve to
// native engines compiled into this binary, so send-wasm-module carries the
// engine name (for example "piano").
package main

import (
	"context"
	"syscall/js"
	"unsafe"

	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/bridge"
	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/logging"
	_ "github.com/cwbudde/sf-bridge/piano"
)

const (
	maxBlockFrames = 4096
	inboxSize      = 1024
)

var (
	sfBridge     *bridge.Bridge
	log          *zap.Logger
	inbox        = make(chan bridge.Message, inboxSize)
	ackCallback  js.Value
	ackReady     = make(chan struct{})
	outputBuffer = make([]float32, 2*maxBlockFrames)
	outputs      = make([][]float32, 2)
)

func main() {
	var err error
	log, err = logging.New(logging.Options{Level: "info", Format: "json"})
	if err != nil {
		log = zap.NewNop()
	}
	sfBridge = bridge.New(bridge.Options{Loader: engine.NativeLoader{}, Logger: log})

	ctx := context.Background()
	go func() { _ = sfBridge.Run(ctx) }()
	go forwardMessages(ctx)
	go forwardAcks(sfBridge.Acks(), ackReady, func(data []byte) {
		ackCallback.Invoke(string(data))
	}, log)

	js.Global().Set("sfbridgePostMessage", js.FuncOf(postMessage))
	js.Global().Set("sfbridgeOnAck", js.FuncOf(onAck))
	js.Global().Set("sfbridgeProcessBlock", js.FuncOf(processBlock))
	js.Global().Set("sfbridgeGetMemoryBuffer", js.FuncOf(getMemoryBuffer))

	log.Info("sfbridge wasm module loaded", zap.String("bridge", sfBridge.ID()))
	select {}
}

// forwardMessages keeps posted messages in order. JS callbacks must not
// block, so Send runs here.
func forwardMessages(ctx context.Context) {
	for m := range inbox {
		if err := sfBridge.Send(ctx, m); err != nil {
			log.Error("send failed", zap.String("type", m.Type()), zap.Error(err))
		}
	}
}

// postMessage(json string) returns null, or an error string when the
// message does not decode or the inbox is full.
func postMessage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return "sfbridgePostMessage: missing message"
	}
	m, err := bridge.DecodeMessage([]byte(args[0].String()))
	if err != nil {
		return err.Error()
	}
	select {
	case inbox <- m:
		return nil
	default:
		return "sfbridgePostMessage: inbox full"
	}
}

func onAck(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return nil
	}
	select {
	case <-ackReady:
		return nil
	default:
	}
	ackCallback = args[0]
	close(ackReady)
	return nil
}

// processBlock(frames) renders one block and returns the offset of the
// planar output in linear memory: frames left samples, then frames right.
func processBlock(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return 0
	}
	n := min(max(args[0].Int(), 0), maxBlockFrames)
	outputs[0] = outputBuffer[:n]
	outputs[1] = outputBuffer[n : 2*n]
	clear(outputBuffer[:2*n])
	sfBridge.Process(outputs)
	return js.ValueOf(uintptr(unsafe.Pointer(&outputBuffer[0])))
}

func getMemoryBuffer(this js.Value, args []js.Value) any {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}

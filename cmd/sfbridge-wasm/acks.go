package main

import (
	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/bridge"
)

// forwardAcks hands encoded acknowledgments to deliver once ready is closed.
// Until then acknowledgments are dropped so the bridge never blocks on a
// worklet that has not registered a callback. It returns when acks closes.
func forwardAcks(acks <-chan bridge.Ack, ready <-chan struct{}, deliver func([]byte), log *zap.Logger) {
	for a := range acks {
		select {
		case <-ready:
		default:
			log.Warn("acknowledgment dropped, no callback registered", zap.String("type", a.Type()))
			continue
		}
		data, err := bridge.EncodeAck(a)
		if err != nil {
			log.Error("encode acknowledgment", zap.Error(err))
			continue
		}
		deliver(data)
	}
}

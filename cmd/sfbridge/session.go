package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/bridge"
	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/config"
)

const ackTimeout = 30 * time.Second

// session owns a running bridge and speaks the host side of the control
// protocol.
type session struct {
	bridge *bridge.Bridge
	log    *zap.Logger
	cancel context.CancelFunc
	runErr chan error
}

// startSession runs a bridge and takes it to SynthReady.
func startSession(ctx context.Context, cfg config.Config, log *zap.Logger) (*session, error) {
	module, err := moduleBytes(cfg)
	if err != nil {
		return nil, err
	}
	bank, err := bankBytes(cfg)
	if err != nil {
		return nil, err
	}

	b := bridge.New(bridge.Options{
		Loader:       newLoader(log),
		Logger:       log,
		CommandQueue: cfg.Bridge.CommandQueue,
		AckQueue:     cfg.Bridge.AckQueue,
	})
	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{bridge: b, log: log, cancel: cancel, runErr: make(chan error, 1)}
	go func() { s.runErr <- b.Run(runCtx) }()

	if err := s.boot(ctx, module, bank, cfg.Audio.SampleRate); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) boot(ctx context.Context, module, bank []byte, sampleRate int) error {
	if err := s.bridge.Send(ctx, bridge.LoadEngineModule{Module: module, Bank: bank}); err != nil {
		return err
	}
	ack, err := s.waitAck(ctx)
	if err != nil {
		return err
	}
	switch a := ack.(type) {
	case bridge.ModuleLoaded:
	case bridge.ModuleLoadFailed:
		return fmt.Errorf("load engine module: %w", a.Err)
	default:
		return fmt.Errorf("load engine module: unexpected %s", a.Type())
	}

	if err := s.bridge.Send(ctx, bridge.InitSynth{SampleRate: sampleRate}); err != nil {
		return err
	}
	ack, err = s.waitAck(ctx)
	if err != nil {
		return err
	}
	switch a := ack.(type) {
	case bridge.SynthInitialized:
		return nil
	case bridge.SynthInitFailed:
		return fmt.Errorf("init synth: %w", a.Err)
	default:
		return fmt.Errorf("init synth: unexpected %s", a.Type())
	}
}

func (s *session) waitAck(ctx context.Context) (bridge.Ack, error) {
	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case a := <-s.bridge.Acks():
		return a, nil
	case <-timer.C:
		return nil, fmt.Errorf("no acknowledgment after %s", ackTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) presetHeaders(ctx context.Context) ([]engine.PresetHeader, error) {
	if err := s.bridge.Send(ctx, bridge.QueryPresetHeaders{}); err != nil {
		return nil, err
	}
	ack, err := s.waitAck(ctx)
	if err != nil {
		return nil, err
	}
	got, ok := ack.(bridge.PresetHeadersGot)
	if !ok {
		return nil, fmt.Errorf("query preset headers: unexpected %s", ack.Type())
	}
	return got.Headers, nil
}

// drainAcks logs acknowledgments until the session closes so that scripted
// queries cannot stall the control loop.
func (s *session) drainAcks(done <-chan struct{}) {
	go func() {
		for {
			select {
			case a := <-s.bridge.Acks():
				s.log.Debug("acknowledgment", zap.String("type", a.Type()))
			case <-done:
				return
			}
		}
	}()
}

func (s *session) close() {
	s.cancel()
	<-s.runErr
}

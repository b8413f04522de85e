//go:build !headless

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sf-bridge/bridge"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		ef          engineFlags
		scriptPath  string
		note        int
		velocity    int
		hold        float64
		tail        float64
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a note, an event script or the keyboard through the audio device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolve(&ef)
			if err != nil {
				return err
			}
			log, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			s, err := startSession(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			headers, err := s.presetHeaders(cmd.Context())
			if err != nil {
				return err
			}
			done := make(chan struct{})
			defer close(done)
			s.drainAcks(done)

			out, err := newAudioOutput(s.bridge, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.BlockSize)
			if err != nil {
				return err
			}
			defer out.Close()
			out.Start()

			if interactive {
				return runKeyboard(cmd.Context(), s.bridge, headers)
			}

			events := noteScript(note, velocity, hold)
			if scriptPath != "" {
				if events, err = loadScript(scriptPath); err != nil {
					return err
				}
			}
			return playScript(cmd.Context(), s.bridge, events, scriptEnd(events)+tail)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringVar(&scriptPath, "script", "", "Event script (JSON lines) to play instead of a single note")
	cmd.Flags().IntVar(&note, "note", 69, "MIDI key for single-note playback")
	cmd.Flags().IntVar(&velocity, "velocity", 100, "MIDI velocity for single-note playback")
	cmd.Flags().Float64Var(&hold, "hold", 1.0, "Seconds before the single note is released")
	cmd.Flags().Float64Var(&tail, "tail", 1.5, "Seconds to keep playing after the last event")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Play from the computer keyboard")
	return cmd
}

// playScript sends events on the wall clock and returns after total
// seconds.
func playScript(ctx context.Context, b *bridge.Bridge, events []scriptEvent, total float64) error {
	start := time.Now()
	for _, ev := range events {
		if err := sleepUntil(ctx, start.Add(seconds(ev.At))); err != nil {
			return err
		}
		if err := b.Send(ctx, ev.Msg); err != nil {
			return err
		}
	}
	return sleepUntil(ctx, start.Add(seconds(total)))
}

func sleepUntil(ctx context.Context, t time.Time) error {
	wait := time.Until(t)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

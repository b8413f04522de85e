package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sf-bridge/analysis"
	"github.com/cwbudde/sf-bridge/bridge"
	"github.com/cwbudde/sf-bridge/internal/wavio"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		ef         engineFlags
		scriptPath string
		note       int
		velocity   int
		hold       float64
		duration   float64
		tail       float64
		output     string
		report     bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a note or an event script to a WAV file",
		Long: "Render drives the bridge offline one tick at a time. Script lines are\n" +
			"JSON objects {\"at\": seconds, \"msg\": <control message>}; each message is\n" +
			"sent at the first block boundary at or after its time.",
		Args: cobra.NoArgs,
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

			var events []scriptEvent
			if scriptPath != "" {
				events, err = loadScript(scriptPath)
				if err != nil {
					return err
				}
			} else {
				events = noteScript(note, velocity, hold)
			}

			total := duration
			if total <= 0 {
				total = scriptEnd(events) + tail
			}
			sr := cfg.Audio.SampleRate
			frames := int(math.Round(total * float64(sr)))
			if frames < 1 {
				return errors.New("render: duration must cover at least one frame")
			}

			s, err := startSession(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.close()
			done := make(chan struct{})
			defer close(done)
			s.drainAcks(done)

			channels := cfg.Audio.Channels
			block := cfg.Audio.BlockSize
			h := newOfflineHost(s.bridge, sr, channels, block, events)
			interleaved := make([]float32, 0, frames*channels)
			scratch := make([]float32, block*channels)
			for rendered := 0; rendered < frames; {
				n := min(block, frames-rendered)
				if err := h.dispatch(cmd.Context(), int64(rendered)); err != nil {
					return err
				}
				planes := h.render(n)
				wavio.Interleave(scratch[:n*channels], planes...)
				interleaved = append(interleaved, scratch[:n*channels]...)
				rendered += n
			}

			if err := wavio.WriteInterleaved(output, interleaved, sr, channels); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s (%d frames, %d Hz, %d ch)\n", output, frames, sr, channels)
			if report {
				return printReport(out, interleaved, channels, sr, s.bridge.Stats())
			}
			return nil
		},
	}

	ef.register(cmd)
	cmd.Flags().StringVar(&scriptPath, "script", "", "Event script (JSON lines) to render instead of a single note")
	cmd.Flags().IntVar(&note, "note", 69, "MIDI key for single-note renders (69 = A4)")
	cmd.Flags().IntVar(&velocity, "velocity", 100, "MIDI velocity for single-note renders")
	cmd.Flags().Float64Var(&hold, "hold", 1.0, "Seconds before the single note is released")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Total render length in seconds (0 = script end plus --tail)")
	cmd.Flags().Float64Var(&tail, "tail", 1.5, "Seconds rendered after the last event when --duration is 0")
	cmd.Flags().StringVarP(&output, "output", "o", "output.wav", "Output WAV path")
	cmd.Flags().BoolVar(&report, "report", false, "Print signal and bridge statistics")
	return cmd
}

func printReport(w io.Writer, interleaved []float32, channels, sampleRate int, st bridge.Stats) error {
	left := make([]float32, len(interleaved)/channels)
	for i := range left {
		left[i] = interleaved[i*channels]
	}
	sum, err := analysis.Summarize(left, sampleRate)
	if err != nil {
		return err
	}

	onset := "-"
	if sum.OnsetFrame >= 0 {
		onset = fmt.Sprintf("%d (%.3f s)", sum.OnsetFrame, float64(sum.OnsetFrame)/float64(sampleRate))
	}
	rows := [][]string{
		{"onset", onset},
		{"rms", fmt.Sprintf("%.1f dB", sum.RMSDB)},
		{"peak", fmt.Sprintf("%.1f dBFS", sum.PeakDBFS)},
		{"dominant", fmt.Sprintf("%.1f Hz", sum.DominantHz)},
		{"centroid", fmt.Sprintf("%.1f Hz", sum.CentroidHz)},
		{"decay", formatDecay(sum.DecayDBPerS)},
		{"ticks", strconv.FormatUint(st.Ticks, 10)},
		{"frames", strconv.FormatUint(st.Frames, 10)},
		{"late commands", strconv.FormatUint(st.LateCommands, 10)},
		{"invalid events", strconv.FormatUint(st.InvalidEvents, 10)},
		{"dropped not ready", strconv.FormatUint(st.DroppedNotReady, 10)},
		{"rejected transitions", strconv.FormatUint(st.RejectedTransitions, 10)},
		{"render faults", strconv.FormatUint(st.RenderFaults, 10)},
	}
	_, err = fmt.Fprintln(w, formatTable([]column{{title: "Metric"}, {title: "Value", numeric: true}}, rows))
	return err
}

func formatDecay(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f dB/s", v)
}

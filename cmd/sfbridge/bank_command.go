package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sf-bridge/bank"
	"github.com/cwbudde/sf-bridge/internal/wavio"
	"github.com/cwbudde/sf-bridge/irsynth"
)

func newBankCommand(ctx *commandContext) *cobra.Command {
	bankCmd := &cobra.Command{
		Use:   "bank",
		Short: "Instrument bank helpers",
	}
	bankCmd.AddCommand(newBankIRCommand(ctx))
	return bankCmd
}

func newBankIRCommand(ctx *commandContext) *cobra.Command {
	var (
		source  string
		output  string
		wavPath string
	)
	body := irsynth.DefaultBodyConfig()

	cmd := &cobra.Command{
		Use:   "ir",
		Short: "Embed a body impulse response into an instrument bank",
		Long: "Embed a body impulse response into an instrument bank. Without --wav a\n" +
			"soundboard response is synthesized from plate modes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("bank ir: --output is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src := *cfg
			if source != "" {
				src.Engine.Bank = source
			}
			data, err := bankBytes(src)
			if err != nil {
				return err
			}
			var f bank.File
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("decode instrument bank: %w", err)
			}

			var ir []byte
			var frames, rate int
			if wavPath != "" {
				if ir, err = os.ReadFile(wavPath); err != nil {
					return fmt.Errorf("read impulse response: %w", err)
				}
				samples, r, err := wavio.DecodeMono(ir)
				if err != nil {
					return fmt.Errorf("%s: %w", wavPath, err)
				}
				frames, rate = len(samples), r
			} else {
				samples, err := irsynth.GenerateBody(body)
				if err != nil {
					return err
				}
				if ir, err = wavio.EncodeMono(samples, body.SampleRate); err != nil {
					return err
				}
				frames, rate = len(samples), body.SampleRate
			}
			f.BodyIRWav = ir

			out, err := json.MarshalIndent(&f, "", "  ")
			if err != nil {
				return err
			}
			if _, err := bank.Parse(out); err != nil {
				return err
			}
			if err := os.WriteFile(output, append(out, '\n'), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (body IR %d frames at %d Hz)\n", output, frames, rate)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "bank", "", "Source bank (defaults to engine.bank or the built-in bank)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output bank path")
	cmd.Flags().StringVar(&wavPath, "wav", "", "Recorded impulse response to embed instead of synthesizing one")
	cmd.Flags().IntVar(&body.SampleRate, "ir-sample-rate", body.SampleRate, "Sample rate of the synthesized response")
	cmd.Flags().Float64Var(&body.Seconds, "ir-seconds", body.Seconds, "Length of the synthesized response")
	cmd.Flags().IntVar(&body.Modes, "modes", body.Modes, "Maximum number of plate modes")
	cmd.Flags().Uint64Var(&body.Seed, "seed", body.Seed, "Seed for amplitude and phase jitter")
	cmd.Flags().Float64Var(&body.Brightness, "brightness", body.Brightness, "Spectral tilt, higher is darker")
	cmd.Flags().Float64Var(&body.CrossoverHz, "crossover", body.CrossoverHz, "Frequency between the low and high decay regimes")
	return cmd
}

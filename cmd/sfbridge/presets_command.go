package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	var ef engineFlags
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Initialize the synth and list the presets of its instrument bank",
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
			out := cmd.OutOrStdout()
			if len(headers) == 0 {
				fmt.Fprintln(out, "No presets")
				return nil
			}
			rows := make([][]string, 0, len(headers))
			for _, h := range headers {
				rows = append(rows, []string{strconv.Itoa(h.Bank), strconv.Itoa(h.Preset), h.Name})
			}
			fmt.Fprintln(out, formatTable(presetColumns, rows))
			return nil
		},
	}
	ef.register(cmd)
	return cmd
}

var presetColumns = []column{
	{title: "Bank", numeric: true},
	{title: "Preset", numeric: true},
	{title: "Name"},
}

//go:build headless

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newPlayCommand(*commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Not available: built with the headless tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("play: built with the headless tag, no audio output")
		},
	}
}

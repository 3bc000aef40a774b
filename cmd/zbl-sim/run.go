// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/zbl/bootmenu"
	"github.com/canonical/zbl/firmware"
	"github.com/canonical/zbl/hosted"
)

var flagShowRoots bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive menu in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		backend, self, err := buildBackend(log)
		if err != nil {
			return err
		}
		backend.SleepOnStall = true

		console, err := hosted.NewTerminalConsole()
		if err != nil {
			return err
		}

		app := &bootmenu.App{
			BS:        backend,
			RS:        backend,
			In:        console,
			Out:       console,
			Self:      backend.NewSelf(self),
			ShowRoots: flagShowRoots,
			Log:       log,
		}
		err = app.Main()
		console.Close()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, start := range backend.Starts {
			fmt.Fprintf(out, "chain-load %s\n", start.Path)
			if start.Args != "" {
				fmt.Fprintf(out, "  args: %s\n", start.Args)
			}
		}
		for _, reset := range backend.Resets {
			switch reset {
			case firmware.ResetCold:
				fmt.Fprintln(out, "cold reset requested")
			case firmware.ResetShutdown:
				fmt.Fprintln(out, "shutdown requested")
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagShowRoots, "show-roots", false, "add the root-map debugging entry")
}

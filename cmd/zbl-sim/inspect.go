// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/canonical/zbl/bootmenu"
	"github.com/canonical/zbl/gpt"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the loaders discovery would offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		backend, _, err := buildBackend(log)
		if err != nil {
			return err
		}

		roots := gpt.FindRoots(backend, log)
		loaders := bootmenu.Discover(backend, roots, log)

		out := cmd.OutOrStdout()
		for _, l := range loaders {
			fmt.Fprintln(out, l.Describe())
			switch {
			case l.NeedsRoot:
				fmt.Fprintf(out, "  root pick, initrd=%s\n", l.Initrd)
			case l.Args != "":
				fmt.Fprintf(out, "  args: %s\n", l.Args)
			}
		}
		if len(loaders) == 0 {
			fmt.Fprintln(out, "no loaders found")
		}
		return nil
	},
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List GPT partition GUIDs and names",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		backend, _, err := buildBackend(log)
		if err != nil {
			return err
		}

		roots := gpt.FindRoots(backend, log)

		var lines []string
		for guid, name := range roots {
			lines = append(lines, fmt.Sprintf("%s  %s", guid, name))
		}
		sort.Strings(lines)

		out := cmd.OutOrStdout()
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		if len(lines) == 0 {
			fmt.Fprintln(out, "no GPT roots found")
		}
		return nil
	},
}

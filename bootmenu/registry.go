// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootmenu

import (
	"sort"

	efi "github.com/canonical/go-efilib"

	"github.com/canonical/zbl/gpt"
	"github.com/canonical/zbl/menu"
)

// Describe returns the loader's menu description.
func (l *Loader) Describe() string {
	return l.Disk.Label + ": " + l.FileName
}

// buildEntries materializes the discovered loaders into menu entries and
// appends the fixed tail entries.
func (a *App) buildEntries(chain *ChainLoader, roots gpt.RootMap, loaders []*Loader) []menu.Entry {
	var entries []menu.Entry
	for _, l := range loaders {
		entries = append(entries, a.loaderEntry(chain, roots, l))
	}

	entries = append(entries,
		menu.Entry{Description: "Reboot into firmware", Action: menu.Run{Func: a.rebootToFirmware}},
		menu.Entry{Description: "Exit", Action: menu.Back{}},
	)
	if a.ShowRoots {
		entries = append(entries, menu.Entry{Description: "Print roots", Action: menu.Run{Func: a.printRoots(roots)}})
	}
	return entries
}

// loaderEntry builds the entry for one loader. Kernels that still need a
// root partition get a nested menu, built here so it lives as long as the
// parent entry.
func (a *App) loaderEntry(chain *ChainLoader, roots gpt.RootMap, l *Loader) menu.Entry {
	if !l.NeedsRoot {
		return menu.Entry{
			Description: l.Describe(),
			Action:      menu.Run{Func: func() error { return chain.Boot(l) }},
		}
	}
	sub := a.rootPickMenu(chain, roots, l)
	return menu.Entry{Description: l.Describe(), Action: menu.Run{Func: sub.Run}}
}

// rootPickMenu builds the submenu offering every known root partition for
// a kernel without sidecar arguments. Selecting a row synthesizes a
// root=PARTUUID= command line and chain-loads the kernel.
func (a *App) rootPickMenu(chain *ChainLoader, roots gpt.RootMap, l *Loader) *menu.Menu {
	var entries []menu.Entry
	for _, root := range sortedRoots(roots) {
		partuuid := root.GUID.String()
		entries = append(entries, menu.Entry{
			Description: root.Name + ": " + partuuid,
			Action: menu.Run{Func: func() error {
				boot := *l
				boot.NeedsRoot = false
				boot.Args = "ro root=PARTUUID=" + partuuid + " initrd=" + l.Initrd
				return chain.Boot(&boot)
			}},
		})
	}
	entries = append(entries, menu.Entry{Description: "Back", Action: menu.Back{}})

	return &menu.Menu{
		In:       a.In,
		Out:      a.Out,
		Entries:  entries,
		PowerOff: a.powerOff,
		Stall:    a.BS.Stall,
	}
}

type namedRoot struct {
	GUID efi.GUID
	Name string
}

// sortedRoots flattens the root map into a stable display order.
func sortedRoots(roots gpt.RootMap) []namedRoot {
	out := make([]namedRoot, 0, len(roots))
	for guid, name := range roots {
		out = append(out, namedRoot{guid, name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].GUID.String() < out[j].GUID.String()
	})
	return out
}

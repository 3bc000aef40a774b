// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package menu implements the full-screen selection menu drawn on the
// firmware console. Entries carry a closed set of actions; nesting is
// expressed by an action that runs another menu.
package menu

import (
	"fmt"
	"time"

	"github.com/canonical/zbl/firmware"
)

// Action is what selecting an entry does.
type Action interface {
	isAction()
}

// Back leaves the menu loop and returns control to the caller.
type Back struct{}

// Run invokes a callback. A callback that returns an error has it shown
// for a moment; either way the menu is redrawn and resumes.
type Run struct {
	Func func() error
}

func (Back) isAction() {}
func (Run) isAction()  {}

// Entry is one selectable row.
type Entry struct {
	Description string
	Action      Action
}

// Menu is one interactive menu over the firmware console.
type Menu struct {
	In      firmware.TextInput
	Out     firmware.TextOutput
	Entries []Entry

	// PowerOff is invoked when Escape is pressed. On real firmware it
	// does not return.
	PowerOff func() error

	// Stall pauses so an error stays readable before the redraw.
	Stall func(d time.Duration)

	highlighted int
}

// errorPause keeps a callback failure on screen before resuming.
const errorPause = time.Second

// Run drives the menu until an entry with a Back action is selected. Every
// handled key triggers a redraw; unrecognized keys are ignored.
func (m *Menu) Run() error {
	if len(m.Entries) == 0 {
		return fmt.Errorf("menu has no entries")
	}

	for {
		if err := m.draw(); err != nil {
			return err
		}

		key, err := m.In.ReadKey()
		if err != nil {
			return fmt.Errorf("cannot read key: %w", err)
		}

		switch {
		case key.Scan == firmware.ScanUp:
			m.highlighted = (m.highlighted + len(m.Entries) - 1) % len(m.Entries)
		case key.Scan == firmware.ScanDown:
			m.highlighted = (m.highlighted + 1) % len(m.Entries)
		case key.Scan == firmware.ScanEscape:
			return m.PowerOff()
		case key.Rune == firmware.CharCarriageReturn:
			switch action := m.Entries[m.highlighted].Action.(type) {
			case Back:
				return nil
			case Run:
				if err := action.Func(); err != nil {
					m.showError(err)
				}
			}
		}
	}
}

// draw renders all entries centered on screen, the highlighted one with
// inverted attributes.
func (m *Menu) draw() error {
	if err := m.Out.ClearScreen(); err != nil {
		return err
	}
	cols, rows, err := m.Out.Mode()
	if err != nil {
		return err
	}
	centerX, centerY := cols/2, rows/2

	for i, entry := range m.Entries {
		col := centerX - len(entry.Description)/2
		if col < 0 {
			col = 0
		}
		if err := m.Out.SetCursorPosition(col, centerY-len(m.Entries)/2+i); err != nil {
			return err
		}
		if i == m.highlighted {
			err = m.Out.SetAttributes(firmware.Black, firmware.LightGray)
		} else {
			err = m.Out.SetAttributes(firmware.White, firmware.Black)
		}
		if err != nil {
			return err
		}
		if err := m.Out.WriteString(entry.Description); err != nil {
			return err
		}
	}
	return m.Out.SetAttributes(firmware.White, firmware.Black)
}

// showError prints a callback failure below the entries and pauses.
func (m *Menu) showError(callbackErr error) {
	_, rows, err := m.Out.Mode()
	if err != nil {
		rows = 1
	}
	m.Out.SetCursorPosition(0, rows-1)
	m.Out.SetAttributes(firmware.LightRed, firmware.Black)
	m.Out.WriteString(callbackErr.Error())
	m.Out.SetAttributes(firmware.White, firmware.Black)
	if m.Stall != nil {
		m.Stall(errorPause)
	}
}

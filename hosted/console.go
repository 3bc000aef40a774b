// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package hosted

import (
	"fmt"

	"github.com/gdamore/tcell"

	"github.com/canonical/zbl/firmware"
)

// attributeColors maps the sixteen UEFI text colours onto terminal
// colours.
var attributeColors = map[firmware.Attribute]tcell.Color{
	firmware.Black:        tcell.ColorBlack,
	firmware.Blue:         tcell.ColorNavy,
	firmware.Green:        tcell.ColorGreen,
	firmware.Cyan:         tcell.ColorTeal,
	firmware.Red:          tcell.ColorMaroon,
	firmware.Magenta:      tcell.ColorPurple,
	firmware.Brown:        tcell.ColorOlive,
	firmware.LightGray:    tcell.ColorSilver,
	firmware.DarkGray:     tcell.ColorGray,
	firmware.LightBlue:    tcell.ColorBlue,
	firmware.LightGreen:   tcell.ColorLime,
	firmware.LightCyan:    tcell.ColorAqua,
	firmware.LightRed:     tcell.ColorRed,
	firmware.LightMagenta: tcell.ColorFuchsia,
	firmware.Yellow:       tcell.ColorYellow,
	firmware.White:        tcell.ColorWhite,
}

// TerminalConsole implements the console contracts on a terminal screen.
type TerminalConsole struct {
	screen   tcell.Screen
	style    tcell.Style
	col, row int
}

// NewTerminalConsole initializes the terminal.
func NewTerminalConsole() (*TerminalConsole, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("cannot create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("cannot initialize screen: %w", err)
	}
	c := &TerminalConsole{screen: screen}
	c.SetAttributes(firmware.White, firmware.Black)
	return c, nil
}

// Close restores the terminal.
func (c *TerminalConsole) Close() {
	c.screen.Fini()
}

func (c *TerminalConsole) Reset() error {
	c.SetAttributes(firmware.White, firmware.Black)
	return c.ClearScreen()
}

func (c *TerminalConsole) WriteString(s string) error {
	for _, r := range s {
		switch r {
		case '\r':
			c.col = 0
		case '\n':
			c.row++
		default:
			c.screen.SetContent(c.col, c.row, r, nil, c.style)
			c.col++
		}
	}
	c.screen.Show()
	return nil
}

func (c *TerminalConsole) SetCursorPosition(col, row int) error {
	c.col, c.row = col, row
	return nil
}

func (c *TerminalConsole) SetAttributes(fg, bg firmware.Attribute) error {
	c.style = tcell.StyleDefault.
		Foreground(attributeColors[fg]).
		Background(attributeColors[bg])
	return nil
}

func (c *TerminalConsole) Mode() (int, int, error) {
	cols, rows := c.screen.Size()
	return cols, rows, nil
}

func (c *TerminalConsole) ClearScreen() error {
	c.screen.Fill(' ', c.style)
	c.col, c.row = 0, 0
	c.screen.Show()
	return nil
}

func (c *TerminalConsole) ReadKey() (firmware.Key, error) {
	for {
		ev := c.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyUp:
				return firmware.Key{Scan: firmware.ScanUp}, nil
			case tcell.KeyDown:
				return firmware.Key{Scan: firmware.ScanDown}, nil
			case tcell.KeyRight:
				return firmware.Key{Scan: firmware.ScanRight}, nil
			case tcell.KeyLeft:
				return firmware.Key{Scan: firmware.ScanLeft}, nil
			case tcell.KeyEscape:
				return firmware.Key{Scan: firmware.ScanEscape}, nil
			case tcell.KeyEnter:
				return firmware.Key{Rune: firmware.CharCarriageReturn}, nil
			case tcell.KeyRune:
				return firmware.Key{Rune: ev.Rune()}, nil
			}
		case *tcell.EventResize:
			c.screen.Sync()
		}
	}
}

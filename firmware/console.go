// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package firmware

// Attribute is a UEFI text-mode colour.
type Attribute uint8

const (
	Black Attribute = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

// Scan codes for keys that produce no character.
const (
	ScanNull   uint16 = 0x00
	ScanUp     uint16 = 0x01
	ScanDown   uint16 = 0x02
	ScanRight  uint16 = 0x03
	ScanLeft   uint16 = 0x04
	ScanEscape uint16 = 0x17
)

// CharCarriageReturn is the character reported for the Enter key.
const CharCarriageReturn rune = 0x0d

// Key is one keystroke: a scan code for special keys, or a character.
// Exactly one of the two is meaningful; the other is zero.
type Key struct {
	Scan uint16
	Rune rune
}

// TextOutput is the firmware's active console output.
type TextOutput interface {
	// Reset clears the device and restores its default mode.
	Reset() error

	// WriteString writes a string at the cursor. The backend performs
	// any UTF-16 conversion the device needs.
	WriteString(s string) error

	// SetCursorPosition moves the cursor to a zero-based column and row.
	SetCursorPosition(col, row int) error

	// SetAttributes sets the colours used by subsequent writes.
	SetAttributes(fg, bg Attribute) error

	// Mode returns the console resolution in character cells.
	Mode() (cols, rows int, err error)

	// ClearScreen blanks the console using the current attributes and
	// homes the cursor.
	ClearScreen() error
}

// TextInput is the firmware's active console input. ReadKey blocks on the
// device's wait-for-key event and then drains the keystroke, which is the
// only blocking wait the application performs.
type TextInput interface {
	ReadKey() (Key, error)
}

// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package menu

import (
	"errors"
	"testing"
	"time"

	"github.com/canonical/zbl/firmware"
)

type scriptIn struct {
	keys []firmware.Key
}

func (s *scriptIn) ReadKey() (firmware.Key, error) {
	if len(s.keys) == 0 {
		return firmware.Key{}, errors.New("script exhausted")
	}
	key := s.keys[0]
	s.keys = s.keys[1:]
	return key, nil
}

func up() firmware.Key    { return firmware.Key{Scan: firmware.ScanUp} }
func down() firmware.Key  { return firmware.Key{Scan: firmware.ScanDown} }
func esc() firmware.Key   { return firmware.Key{Scan: firmware.ScanEscape} }
func enter() firmware.Key { return firmware.Key{Rune: firmware.CharCarriageReturn} }

type drawOp struct {
	col, row int
	fg, bg   firmware.Attribute
	text     string
}

// recordOut records the draw operations of the most recent frame.
type recordOut struct {
	cols, rows int
	col, row   int
	fg, bg     firmware.Attribute
	frame      []drawOp
}

func (o *recordOut) Reset() error { return nil }
func (o *recordOut) WriteString(s string) error {
	o.frame = append(o.frame, drawOp{o.col, o.row, o.fg, o.bg, s})
	return nil
}
func (o *recordOut) SetCursorPosition(col, row int) error {
	o.col, o.row = col, row
	return nil
}
func (o *recordOut) SetAttributes(fg, bg firmware.Attribute) error {
	o.fg, o.bg = fg, bg
	return nil
}
func (o *recordOut) Mode() (int, int, error) { return o.cols, o.rows, nil }
func (o *recordOut) ClearScreen() error {
	o.frame = nil
	return nil
}

func newTestMenu(entries []Entry, keys ...firmware.Key) (*Menu, *recordOut) {
	out := &recordOut{cols: 80, rows: 25}
	return &Menu{
		In:       &scriptIn{keys: keys},
		Out:      out,
		Entries:  entries,
		PowerOff: func() error { return nil },
	}, out
}

func TestRunDispatchesThirdEntry(t *testing.T) {
	var runs int
	entries := []Entry{
		{"Exit", Back{}},
		{"second", Run{func() error { return nil }}},
		{"third", Run{func() error { runs++; return nil }}},
	}
	// Down, Down, Enter runs the third entry; Down wraps to the Exit
	// entry and Enter leaves.
	m, _ := newTestMenu(entries, down(), down(), enter(), down(), enter())

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs != 1 {
		t.Errorf("expected the callback to run once, ran %d times", runs)
	}
}

func TestUpWrapsToLastEntry(t *testing.T) {
	var selected string
	record := func(name string) Run {
		return Run{func() error { selected = name; return nil }}
	}
	entries := []Entry{
		{"first", record("first")},
		{"Exit", Back{}},
		{"last", record("last")},
	}
	m, _ := newTestMenu(entries, up(), enter(), down(), down(), enter())

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected != "last" {
		t.Errorf("Up from the first entry selected %q, expected %q", selected, "last")
	}
}

func TestEscapePowersOff(t *testing.T) {
	var powered bool
	entries := []Entry{{"Exit", Back{}}}
	m, _ := newTestMenu(entries, esc())
	m.PowerOff = func() error { powered = true; return nil }

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !powered {
		t.Error("Escape did not power off")
	}
}

func TestCallbackErrorResumesMenu(t *testing.T) {
	var stalled time.Duration
	entries := []Entry{
		{"boot", Run{func() error { return errors.New("image refused to load") }}},
		{"Exit", Back{}},
	}
	m, out := newTestMenu(entries, enter(), down(), enter())
	m.Stall = func(d time.Duration) { stalled = d }

	if err := m.Run(); err != nil {
		t.Fatalf("callback error must not end the menu, got: %v", err)
	}
	if stalled != time.Second {
		t.Errorf("expected a 1s stall, got %v", stalled)
	}
	// The menu was redrawn after the error: the last frame highlights
	// the Exit entry.
	if len(out.frame) == 0 {
		t.Fatal("nothing drawn after the error")
	}
	if last := out.frame[len(out.frame)-1]; last.text != "Exit" || last.fg != firmware.Black || last.bg != firmware.LightGray {
		t.Errorf("last frame does not highlight the Exit entry: %+v", out.frame)
	}
}

func TestIgnoresOtherKeys(t *testing.T) {
	var runs int
	entries := []Entry{
		{"boot", Run{func() error { runs++; return nil }}},
		{"Exit", Back{}},
	}
	m, _ := newTestMenu(entries,
		firmware.Key{Rune: 'x'},
		firmware.Key{Scan: firmware.ScanLeft},
		enter(), down(), enter())

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs != 1 {
		t.Errorf("expected one run, got %d", runs)
	}
}

func TestDrawCentersAndHighlights(t *testing.T) {
	entries := []Entry{
		{"aaaa", Back{}},
		{"bb", Back{}},
	}
	m, out := newTestMenu(entries, esc())
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.frame) != 2 {
		t.Fatalf("expected 2 draw operations, got %d", len(out.frame))
	}
	first, second := out.frame[0], out.frame[1]

	// 80x25 console: centre column 40, centre row 12, two entries start
	// at row 11.
	if first.col != 38 || first.row != 11 {
		t.Errorf("first entry at (%d,%d), expected (38,11)", first.col, first.row)
	}
	if second.col != 39 || second.row != 12 {
		t.Errorf("second entry at (%d,%d), expected (39,12)", second.col, second.row)
	}
	if first.fg != firmware.Black || first.bg != firmware.LightGray {
		t.Errorf("highlighted entry drawn with %v on %v", first.fg, first.bg)
	}
	if second.fg != firmware.White || second.bg != firmware.Black {
		t.Errorf("plain entry drawn with %v on %v", second.fg, second.bg)
	}
}

func TestDrawClampsLongDescriptions(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	entries := []Entry{{string(long), Back{}}}
	m, out := newTestMenu(entries, esc())
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.frame) != 1 || out.frame[0].col != 0 {
		t.Errorf("expected the entry clamped to column 0, got %+v", out.frame)
	}
}

func TestEmptyMenu(t *testing.T) {
	m, _ := newTestMenu(nil)
	if err := m.Run(); err == nil {
		t.Fatal("expected an error for an empty menu")
	}
}

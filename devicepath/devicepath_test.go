// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package devicepath

import (
	"bytes"
	"testing"

	efi "github.com/canonical/go-efilib"
)

func examplePath() []byte {
	var b Builder
	b.Append(TypeACPI, 0x01, []byte{0x41, 0xd0, 0x0a, 0x03, 0x00, 0x00, 0x00, 0x00})
	b.Append(TypeHardware, SubTypeHWPCI, []byte{0x00, 0x1f})
	b.HardDrive(&HardDriveRecord{
		PartitionNumber: 1,
		PartitionStart:  2048,
		PartitionSize:   1048576,
		Signature:       [16]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		MBRType:         0x02,
		SignatureType:   SignatureTypeGPT,
	})
	return b.Finish()
}

func TestWalk(t *testing.T) {
	path := examplePath()

	var types []Type
	var total int
	w := Walk(path)
	for {
		rec, ok := w.Next()
		if !ok {
			break
		}
		if rec.Len() < 4 {
			t.Fatalf("record of length %d", rec.Len())
		}
		types = append(types, rec.Type)
		total += rec.Len()
	}
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected walk error: %v", err)
	}

	wantTypes := []Type{TypeACPI, TypeHardware, TypeMedia, TypeEnd}
	if len(types) != len(wantTypes) {
		t.Fatalf("expected %d records, got %d", len(wantTypes), len(types))
	}
	for i, want := range wantTypes {
		if types[i] != want {
			t.Errorf("record %d: expected type %#x, got %#x", i, want, types[i])
		}
	}
	if total != len(path) {
		t.Errorf("record lengths sum to %d, path is %d bytes", total, len(path))
	}
}

func TestWalkMalformed(t *testing.T) {
	tests := []struct {
		label string
		path  []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{0x04, 0x04, 0x08}},
		{"undersized length", []byte{0x04, 0x04, 0x02, 0x00}},
		{"overrunning length", []byte{0x04, 0x04, 0x20, 0x00, 0x00, 0x00}},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			w := Walk(tc.path)
			for {
				if _, ok := w.Next(); !ok {
					break
				}
			}
			if w.Err() == nil {
				t.Fatal("expected a walk error")
			}
			if _, err := Size(tc.path); err == nil {
				t.Fatal("expected a size error")
			}
		})
	}
}

func TestSizeMissingEnd(t *testing.T) {
	path := examplePath()
	// Strip the end record; the walk runs off the buffer.
	if _, err := Size(path[:len(path)-4]); err == nil {
		t.Fatal("expected an error for a path without an end record")
	}
}

func TestAppendFilePath(t *testing.T) {
	path := examplePath()
	const name = `EFI\ubuntu\shimx64.efi`

	out, err := AppendFilePath(path, name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	size, err := Size(out)
	if err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if size != len(out) {
		t.Errorf("record lengths sum to %d, allocated %d", size, len(out))
	}

	// The result is the original records, then the file path, then a
	// fresh end record.
	var recs []Record
	w := Walk(out)
	for {
		rec, ok := w.Next()
		if !ok {
			break
		}
		recs = append(recs, rec)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected walk error: %v", err)
	}
	if want := 5; len(recs) != want {
		t.Fatalf("expected %d records, got %d", want, len(recs))
	}
	got, ok := recs[3].FilePathName()
	if !ok {
		t.Fatalf("record 3 is not a file path: %+v", recs[3])
	}
	if got != name {
		t.Errorf("expected file name %q, got %q", name, got)
	}
	last := recs[4]
	if !last.End() || last.Len() != 4 {
		t.Errorf("path not terminated by a 4-byte end record: %+v", last)
	}
	if !bytes.Equal(out[:len(path)-4], path[:len(path)-4]) {
		t.Error("leading records were not copied verbatim")
	}
}

func TestAppendFilePathMalformed(t *testing.T) {
	if _, err := AppendFilePath([]byte{0x04, 0x01, 0x03, 0x00}, "a.efi"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDisplay(t *testing.T) {
	var b Builder
	b.Append(TypeACPI, 0x01, make([]byte, 8))
	b.Append(TypeHardware, SubTypeHWPCI, []byte{0x00, 0x1f})
	b.Append(TypeMessaging, SubTypeMsgSATA, make([]byte, 6))
	b.Append(Type(0x6e), SubType(0x01), nil)
	b.FilePath(`EFI\Boot\bootx64.efi`)
	path := b.Finish()

	want := `Acpi\Pci\Sata\?\EFI\Boot\bootx64.efi`
	if got := Display(path); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGPTPartitionGUID(t *testing.T) {
	path := examplePath()

	guid, ok := GPTPartitionGUID(path)
	if !ok {
		t.Fatal("expected a GPT partition GUID")
	}
	want := efi.MakeGUID(0x11111111, 0x1111, 0x1111, 0x1111, [...]uint8{0x11, 0x11, 0x11, 0x11, 0x11, 0x11})
	if guid != want {
		t.Errorf("expected %v, got %v", want, guid)
	}

	var b Builder
	b.HardDrive(&HardDriveRecord{PartitionNumber: 1, SignatureType: SignatureTypeMBR})
	if _, ok := GPTPartitionGUID(b.Finish()); ok {
		t.Error("MBR-signed record must not produce a GUID")
	}
	if _, ok := GPTPartitionGUID((&Builder{}).Finish()); ok {
		t.Error("empty path must not produce a GUID")
	}
}

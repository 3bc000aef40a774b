// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package devicepath reads and builds raw UEFI device paths: chains of
// variable-length records terminated by an end record. The package works
// on the wire representation directly, so paths obtained from firmware
// handles can be extended and handed back without an intermediate model.
package devicepath

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Type is a device-path record type.
type Type uint8

const (
	TypeHardware  Type = 0x01
	TypeACPI      Type = 0x02
	TypeMessaging Type = 0x03
	TypeMedia     Type = 0x04
	TypeBBS       Type = 0x05
	TypeEnd       Type = 0x7f
)

// SubType is a record subtype; its meaning depends on the type.
type SubType uint8

// Hardware subtypes.
const (
	SubTypeHWPCI        SubType = 0x01
	SubTypeHWPCCard     SubType = 0x02
	SubTypeHWMemoryMap  SubType = 0x03
	SubTypeHWVendor     SubType = 0x04
	SubTypeHWController SubType = 0x05
)

// Messaging subtypes.
const (
	SubTypeMsgATAPI SubType = 0x01
	SubTypeMsgSCSI  SubType = 0x02
	SubTypeMsgUSB   SubType = 0x05
	SubTypeMsgMAC   SubType = 0x0b
	SubTypeMsgIPv4  SubType = 0x0c
	SubTypeMsgIPv6  SubType = 0x0d
	SubTypeMsgSATA  SubType = 0x12
	SubTypeMsgNVMe  SubType = 0x17
)

// Media subtypes.
const (
	SubTypeMediaHardDrive SubType = 0x01
	SubTypeMediaCDROM     SubType = 0x02
	SubTypeMediaVendor    SubType = 0x03
	SubTypeMediaFilePath  SubType = 0x04
	SubTypeMediaProtocol  SubType = 0x05
)

// End subtypes.
const (
	SubTypeEndInstance SubType = 0x01
	SubTypeEndEntire   SubType = 0xff
)

// headerSize is the fixed prefix of every record: type, subtype and a
// 16-bit little-endian total length that includes the prefix itself.
const headerSize = 4

// Record is one decoded record. Data borrows the payload bytes from the
// walked path and excludes the four header bytes.
type Record struct {
	Type    Type
	SubType SubType
	Data    []byte
}

// Len returns the record's on-wire length.
func (r Record) Len() int { return headerSize + len(r.Data) }

// End reports whether this record terminates the whole path.
func (r Record) End() bool { return r.Type == TypeEnd && r.SubType == SubTypeEndEntire }

// Walker steps through the records of a raw device path, validating the
// length field of every record against the remaining bytes.
type Walker struct {
	buf  []byte
	off  int
	err  error
	done bool
}

// Walk returns a Walker positioned at the first record of path.
func Walk(path []byte) *Walker {
	return &Walker{buf: path}
}

// Next returns the next record. It returns false once the end record has
// been produced or a malformed record was hit; Err distinguishes the two.
// The end record itself is returned (with true) before iteration stops.
func (w *Walker) Next() (Record, bool) {
	if w.done || w.err != nil {
		return Record{}, false
	}
	if len(w.buf)-w.off < headerSize {
		w.err = fmt.Errorf("truncated device path record at offset %d", w.off)
		return Record{}, false
	}
	length := int(binary.LittleEndian.Uint16(w.buf[w.off+2 : w.off+4]))
	if length < headerSize {
		w.err = fmt.Errorf("device path record at offset %d claims length %d", w.off, length)
		return Record{}, false
	}
	if w.off+length > len(w.buf) {
		w.err = fmt.Errorf("device path record at offset %d overruns buffer", w.off)
		return Record{}, false
	}
	rec := Record{
		Type:    Type(w.buf[w.off]),
		SubType: SubType(w.buf[w.off+1]),
		Data:    w.buf[w.off+headerSize : w.off+length],
	}
	w.off += length
	if rec.End() {
		w.done = true
	}
	return rec, true
}

// Err returns the malformed-record error, if any.
func (w *Walker) Err() error { return w.err }

// Size returns the total byte length of path up to and including its end
// record.
func Size(path []byte) (int, error) {
	w := Walk(path)
	for {
		rec, ok := w.Next()
		if !ok {
			if w.err != nil {
				return 0, w.err
			}
			return 0, fmt.Errorf("device path has no end record")
		}
		if rec.End() {
			return w.off, nil
		}
	}
}

// FilePathName decodes the record's payload as the NUL-terminated UTF-16LE
// string of a media file-path record. It returns false for other records.
func (r Record) FilePathName() (string, bool) {
	if r.Type != TypeMedia || r.SubType != SubTypeMediaFilePath {
		return "", false
	}
	return decodeUTF16(r.Data), true
}

// AppendFilePath builds a new device path naming the file on the device
// described by path: a copy of path with a media file-path record holding
// name spliced in before a fresh end record.
func AppendFilePath(path []byte, name string) ([]byte, error) {
	w := Walk(path)
	prefix := 0
	for {
		rec, ok := w.Next()
		if !ok {
			if err := w.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("device path has no end record")
		}
		if rec.End() {
			break
		}
		prefix += rec.Len()
	}

	units := utf16.Encode([]rune(name))
	fileLen := headerSize + 2*(len(units)+1)

	out := make([]byte, 0, prefix+fileLen+headerSize)
	out = append(out, path[:prefix]...)

	out = append(out, byte(TypeMedia), byte(SubTypeMediaFilePath))
	out = binary.LittleEndian.AppendUint16(out, uint16(fileLen))
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	out = binary.LittleEndian.AppendUint16(out, 0)

	out = append(out, byte(TypeEnd), byte(SubTypeEndEntire), headerSize, 0)
	return out, nil
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

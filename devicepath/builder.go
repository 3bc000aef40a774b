// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package devicepath

import (
	"encoding/binary"
	"unicode/utf16"
)

// Builder assembles a raw device path record by record. The zero value is
// an empty path; Finish terminates it.
type Builder struct {
	buf []byte
}

// Append adds one record with the given payload.
func (b *Builder) Append(t Type, st SubType, payload []byte) *Builder {
	b.buf = append(b.buf, byte(t), byte(st))
	b.buf = binary.LittleEndian.AppendUint16(b.buf, uint16(headerSize+len(payload)))
	b.buf = append(b.buf, payload...)
	return b
}

// HardDrive adds a media hard-drive record.
func (b *Builder) HardDrive(hd *HardDriveRecord) *Builder {
	payload := make([]byte, hardDrivePayloadSize)
	binary.LittleEndian.PutUint32(payload[0:], hd.PartitionNumber)
	binary.LittleEndian.PutUint64(payload[4:], hd.PartitionStart)
	binary.LittleEndian.PutUint64(payload[12:], hd.PartitionSize)
	copy(payload[20:36], hd.Signature[:])
	payload[36] = hd.MBRType
	payload[37] = hd.SignatureType
	return b.Append(TypeMedia, SubTypeMediaHardDrive, payload)
}

// FilePath adds a media file-path record holding name.
func (b *Builder) FilePath(name string) *Builder {
	units := utf16.Encode([]rune(name))
	payload := make([]byte, 0, 2*(len(units)+1))
	for _, u := range units {
		payload = binary.LittleEndian.AppendUint16(payload, u)
	}
	payload = binary.LittleEndian.AppendUint16(payload, 0)
	return b.Append(TypeMedia, SubTypeMediaFilePath, payload)
}

// Finish appends the end record and returns the wire form.
func (b *Builder) Finish() []byte {
	out := append(b.buf, byte(TypeEnd), byte(SubTypeEndEntire), headerSize, 0)
	b.buf = nil
	return out
}

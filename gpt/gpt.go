// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package gpt parses GUID partition tables read raw from block devices,
// enough to map partition unique GUIDs to display names. Writing and CRC
// repair are out of scope; a reader that only feeds a boot menu treats
// every malformed table as an empty one.
package gpt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	efi "github.com/canonical/go-efilib"
)

const (
	mbrSignature     uint16 = 0xaa55
	protectiveOSType uint8  = 0xee

	// "EFI PART" read as a little-endian 64-bit integer.
	headerSignature uint64 = 0x5452415020494645

	sectorSize     = 512
	maxEntries     = 128
	entryNameUnits = 36
)

// MBRPartitionRecord is one of the four legacy partition records.
type MBRPartitionRecord struct {
	BootIndicator uint8
	StartCHS      [3]byte
	OSIndicator   uint8
	EndCHS        [3]byte
	StartingLBA   uint32
	SizeInLBA     uint32
}

// ProtectiveMBR is sector 0 of a GPT disk.
type ProtectiveMBR struct {
	BootCode   [440]byte
	DiskSig    [4]byte
	Reserved   uint16
	Partitions [4]MBRPartitionRecord
	Signature  uint16
}

// Header is the GPT header at sector 1.
type Header struct {
	Signature                uint64
	Revision                 uint32
	HeaderSize               uint32
	HeaderCRC32              uint32
	Reserved                 uint32
	MyLBA                    uint64
	AlternateLBA             uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 efi.GUID
	PartitionEntryLBA        uint64
	NumberOfPartitionEntries uint32
	SizeOfPartitionEntry     uint32
	PartitionEntryArrayCRC32 uint32
}

// Entry is one partition entry.
type Entry struct {
	PartitionTypeGUID   efi.GUID
	UniquePartitionGUID efi.GUID
	StartingLBA         uint64
	EndingLBA           uint64
	Attributes          uint64
	PartitionName       [entryNameUnits]uint16
}

// entrySize is the on-disk size of Entry, the minimum legal entry stride.
const entrySize = 128

// Unused reports whether the entry slot is unused.
func (e *Entry) Unused() bool {
	return e.PartitionTypeGUID == efi.GUID{}
}

// Name returns the partition name trimmed at the first NUL.
func (e *Entry) Name() string {
	units := e.PartitionName[:]
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// SizeLabel synthesizes a label for a nameless partition from its extent.
func (e *Entry) SizeLabel(blockSize int) string {
	if e.EndingLBA < e.StartingLBA {
		return "unknown volume"
	}
	bytes := (e.EndingLBA - e.StartingLBA) * uint64(blockSize)
	switch {
	case bytes < 1<<20:
		return fmt.Sprintf("unknown %dKiB volume", bytes>>10)
	case bytes < 1<<30:
		return fmt.Sprintf("unknown %dMiB volume", bytes>>20)
	default:
		return fmt.Sprintf("unknown %dGiB volume", bytes>>30)
	}
}

// ParseProtectiveMBR reads sector 0 and checks that it declares a GPT
// disk: the boot signature is present and the first partition record is
// the protective 0xEE entry.
func ParseProtectiveMBR(sector []byte) (*ProtectiveMBR, error) {
	if len(sector) < sectorSize {
		return nil, fmt.Errorf("sector 0 is %d bytes", len(sector))
	}
	var mbr ProtectiveMBR
	if err := binary.Read(bytes.NewReader(sector[:sectorSize]), binary.LittleEndian, &mbr); err != nil {
		return nil, err
	}
	if mbr.Signature != mbrSignature {
		return nil, fmt.Errorf("MBR signature is %#04x", mbr.Signature)
	}
	if mbr.Partitions[0].OSIndicator != protectiveOSType {
		return nil, fmt.Errorf("first partition record is type %#02x, not protective", mbr.Partitions[0].OSIndicator)
	}
	return &mbr, nil
}

// ParseHeader reads the GPT header from the start of sector 1.
func ParseHeader(sector []byte) (*Header, error) {
	var hdr Header
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("truncated GPT header: %w", err)
	}
	if hdr.Signature != headerSignature {
		return nil, fmt.Errorf("GPT header signature is %#016x", hdr.Signature)
	}
	if hdr.SizeOfPartitionEntry < entrySize {
		return nil, fmt.Errorf("partition entry size is %d", hdr.SizeOfPartitionEntry)
	}
	return &hdr, nil
}

// ParseEntry reads one partition entry.
func ParseEntry(b []byte) (*Entry, error) {
	var entry Entry
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &entry); err != nil {
		return nil, fmt.Errorf("truncated partition entry: %w", err)
	}
	return &entry, nil
}

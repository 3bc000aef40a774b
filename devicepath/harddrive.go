// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package devicepath

import (
	"encoding/binary"
	"fmt"

	efi "github.com/canonical/go-efilib"
)

// Partition signature types carried by a hard-drive media record.
const (
	SignatureTypeNone uint8 = 0x00
	SignatureTypeMBR  uint8 = 0x01
	SignatureTypeGPT  uint8 = 0x02
)

const hardDrivePayloadSize = 38

// HardDriveRecord is the decoded payload of a media hard-drive record.
type HardDriveRecord struct {
	PartitionNumber uint32
	PartitionStart  uint64
	PartitionSize   uint64
	Signature       [16]byte
	MBRType         uint8
	SignatureType   uint8
}

// HardDrive decodes the record as a media hard-drive record.
func (r Record) HardDrive() (*HardDriveRecord, error) {
	if r.Type != TypeMedia || r.SubType != SubTypeMediaHardDrive {
		return nil, fmt.Errorf("not a hard-drive record")
	}
	if len(r.Data) < hardDrivePayloadSize {
		return nil, fmt.Errorf("hard-drive record payload is %d bytes", len(r.Data))
	}
	hd := &HardDriveRecord{
		PartitionNumber: binary.LittleEndian.Uint32(r.Data[0:]),
		PartitionStart:  binary.LittleEndian.Uint64(r.Data[4:]),
		PartitionSize:   binary.LittleEndian.Uint64(r.Data[12:]),
		MBRType:         r.Data[36],
		SignatureType:   r.Data[37],
	}
	copy(hd.Signature[:], r.Data[20:36])
	return hd, nil
}

// GPTPartitionGUID walks path for a hard-drive record with a GPT
// signature and returns the partition's unique GUID. It reports false
// when the path carries no such record.
func GPTPartitionGUID(path []byte) (efi.GUID, bool) {
	w := Walk(path)
	for {
		rec, ok := w.Next()
		if !ok || rec.End() {
			return efi.GUID{}, false
		}
		if rec.Type != TypeMedia || rec.SubType != SubTypeMediaHardDrive {
			continue
		}
		hd, err := rec.HardDrive()
		if err != nil || hd.SignatureType != SignatureTypeGPT {
			continue
		}
		return efi.GUID(hd.Signature), true
	}
}

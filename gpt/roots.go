// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package gpt

import (
	"fmt"

	efi "github.com/canonical/go-efilib"
	"go.uber.org/zap"

	"github.com/canonical/zbl/firmware"
)

// RootMap maps partition unique GUIDs to display names, across every GPT
// disk the firmware exposes.
type RootMap map[efi.GUID]string

// probeSize covers sector 0, the header and the first chunk of the entry
// array on 512-byte-sector disks in a single read.
const probeSize = 2048

// FindRoots scans every block-I/O handle for a GPT and collects the
// partition GUIDs and names of the used entries before the first unused
// slot; entries after that slot are not read. Devices that fail to
// open, read or parse are skipped; the map may be empty.
func FindRoots(bs firmware.BootServices, log *zap.SugaredLogger) RootMap {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	roots := make(RootMap)

	handles, err := bs.HandlesFor(firmware.BlockIOProtocol)
	if err != nil {
		log.Debugf("no block devices: %v", err)
		return roots
	}

	for _, h := range handles {
		bio, err := bs.OpenBlockIO(h)
		if err != nil {
			log.Debugf("skipping handle without block I/O: %v", err)
			continue
		}
		if err := readRoots(bio, roots); err != nil {
			log.Debugf("skipping block device: %v", err)
		}
	}
	return roots
}

// readRoots reads one device's table into roots.
func readRoots(bio firmware.BlockIO, roots RootMap) error {
	blockSize := bio.BlockSize()
	if blockSize <= 0 {
		return fmt.Errorf("block size %d", blockSize)
	}

	blocks := probeSize / blockSize
	if blocks < 2 {
		blocks = 2
	}
	buf := make([]byte, blocks*blockSize)
	if err := bio.ReadBlocks(0, buf); err != nil {
		return fmt.Errorf("cannot read device start: %w", err)
	}

	if _, err := ParseProtectiveMBR(buf); err != nil {
		return err
	}
	hdr, err := ParseHeader(buf[blockSize:])
	if err != nil {
		return err
	}

	count := int(hdr.NumberOfPartitionEntries)
	if count > maxEntries {
		count = maxEntries
	}
	stride := int(hdr.SizeOfPartitionEntry)

	// The entry array usually sits inside the probe buffer already; when
	// it does not, read it separately in full.
	var entries []byte
	offset := hdr.PartitionEntryLBA * uint64(blockSize)
	if end := offset + uint64(count*stride); end >= offset && end <= uint64(len(buf)) {
		entries = buf[offset:end]
	} else {
		length := (count*stride + blockSize - 1) / blockSize * blockSize
		entries = make([]byte, length)
		if err := bio.ReadBlocks(hdr.PartitionEntryLBA, entries); err != nil {
			return fmt.Errorf("cannot read partition entries: %w", err)
		}
	}

	for i := 0; i < count; i++ {
		entry, err := ParseEntry(entries[i*stride : i*stride+entrySize])
		if err != nil {
			return err
		}
		if entry.Unused() {
			break
		}
		if (entry.UniquePartitionGUID == efi.GUID{}) {
			continue
		}
		name := entry.Name()
		if name == "" {
			name = entry.SizeLabel(blockSize)
		}
		roots[entry.UniquePartitionGUID] = name
	}
	return nil
}

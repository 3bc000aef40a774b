// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package hosted

import (
	"fmt"
	"io"

	"github.com/canonical/zbl/firmware"
)

// BlockDevice adapts any io.ReaderAt into the block-I/O contract.
type BlockDevice struct {
	R    io.ReaderAt
	Size int // block size in bytes; 0 means 512
}

func (d *BlockDevice) BlockSize() int {
	if d.Size <= 0 {
		return 512
	}
	return d.Size
}

func (d *BlockDevice) ReadBlocks(lba uint64, buf []byte) error {
	bs := d.BlockSize()
	if len(buf)%bs != 0 {
		return fmt.Errorf("read of %d bytes: %w", len(buf), firmware.ErrInvalidParameter)
	}
	if _, err := d.R.ReadAt(buf, int64(lba)*int64(bs)); err != nil {
		return fmt.Errorf("read at LBA %d: %w", lba, firmware.ErrDeviceError)
	}
	return nil
}

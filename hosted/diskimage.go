// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package hosted

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	efi "github.com/canonical/go-efilib"
	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/uuid"

	"github.com/canonical/zbl/devicepath"
	"github.com/canonical/zbl/firmware"
)

// DiskImage exposes one raw GPT disk image as a hosted block device plus
// a volume per readable file system.
type DiskImage struct {
	file *os.File
	disk *disk.Disk
}

// OpenDiskImage opens a raw image file.
func OpenDiskImage(path string) (*DiskImage, error) {
	d, err := diskfs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image %s: %w", path, err)
	}
	return &DiskImage{file: f, disk: d}, nil
}

func (d *DiskImage) Close() error {
	return d.file.Close()
}

// BlockDevice returns the whole image as a block device.
func (d *DiskImage) BlockDevice() firmware.BlockIO {
	return &BlockDevice{R: d.file, Size: int(d.disk.LogicalBlocksize)}
}

// Register adds the image's block device and every file-system-bearing
// GPT partition to the backend. It returns the volume handles in
// partition order.
func (d *DiskImage) Register(b *Backend) ([]firmware.Handle, error) {
	b.AddBlockDevice(d.BlockDevice())

	pt, err := d.disk.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("cannot read partition table: %w", err)
	}
	table, ok := pt.(*gpt.Table)
	if !ok {
		return nil, fmt.Errorf("image has no GPT")
	}

	var handles []firmware.Handle
	for i, p := range table.Partitions {
		if p.Start == 0 && p.End == 0 {
			continue
		}
		fs, err := d.disk.GetFilesystem(i + 1)
		if err != nil || fs == nil {
			continue // partition without a readable file system
		}
		guid, err := ParseGUID(p.GUID)
		if err != nil {
			b.Log.Debugf("partition %d has GUID %q: %v", i+1, p.GUID, err)
			continue
		}
		path := partitionDevicePath(uint32(i+1), p.Start, p.End, guid)
		handles = append(handles, b.AddVolume(&ImageVolume{FS: fs}, path))
	}
	return handles, nil
}

// partitionDevicePath synthesizes the device path firmware would bind to
// a partition's file-system handle.
func partitionDevicePath(number uint32, start, end uint64, guid efi.GUID) []byte {
	var b devicepath.Builder
	b.Append(devicepath.TypeACPI, 0x01, make([]byte, 8))
	b.Append(devicepath.TypeHardware, devicepath.SubTypeHWPCI, []byte{0x02, 0x1f})
	b.HardDrive(&devicepath.HardDriveRecord{
		PartitionNumber: number,
		PartitionStart:  start,
		PartitionSize:   end - start + 1,
		Signature:       [16]byte(guid),
		MBRType:         0x02,
		SignatureType:   devicepath.SignatureTypeGPT,
	})
	return b.Finish()
}

// ParseGUID converts RFC 4122 GUID text into the EFI wire form, with the
// first three groups little-endian.
func ParseGUID(s string) (efi.GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return efi.GUID{}, err
	}
	var g efi.GUID
	g[0], g[1], g[2], g[3] = u[3], u[2], u[1], u[0]
	g[4], g[5] = u[5], u[4]
	g[6], g[7] = u[7], u[6]
	copy(g[8:], u[8:])
	return g, nil
}

// ImageVolume is one file system inside a disk image.
type ImageVolume struct {
	FS filesystem.FileSystem
}

func (v *ImageVolume) Label() (string, error) {
	return strings.TrimRight(strings.TrimSpace(v.FS.Label()), "\x00"), nil
}

func (v *ImageVolume) Open(path string) (firmware.File, error) {
	name := "/" + strings.ReplaceAll(strings.Trim(path, `\`), `\`, "/")

	// The file-system API distinguishes files from directories by which
	// call succeeds.
	if infos, err := v.FS.ReadDir(name); err == nil {
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
		return &imageDir{infos: infos}, nil
	}
	f, err := v.FS.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, firmware.ErrNotFound)
	}
	return &imageFile{f: f}, nil
}

type imageDir struct {
	infos []os.FileInfo
	pos   int
}

func (d *imageDir) Read([]byte) (int, error) { return 0, firmware.ErrUnsupported }
func (d *imageDir) Close() error             { return nil }

func (d *imageDir) ReadEntry() (*firmware.DirInfo, error) {
	if d.pos >= len(d.infos) {
		return nil, io.EOF
	}
	fi := d.infos[d.pos]
	d.pos++
	return &firmware.DirInfo{
		Name:      fi.Name(),
		Directory: fi.IsDir(),
		Size:      uint64(fi.Size()),
	}, nil
}

func (d *imageDir) Rewind() error {
	d.pos = 0
	return nil
}

type imageFile struct {
	f filesystem.File
}

func (r *imageFile) Read(p []byte) (int, error) { return r.f.Read(p) }
func (r *imageFile) Close() error               { return nil }

func (r *imageFile) ReadEntry() (*firmware.DirInfo, error) {
	return nil, firmware.ErrUnsupported
}

func (r *imageFile) Rewind() error {
	_, err := r.f.Seek(0, io.SeekStart)
	return err
}

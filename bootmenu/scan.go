// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package bootmenu discovers operating-system loaders on the firmware's
// file systems and drives the boot menu over them.
package bootmenu

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/canonical/zbl/devicepath"
	"github.com/canonical/zbl/firmware"
	"github.com/canonical/zbl/gpt"
)

// DiskInfo describes one scanned volume. Many loaders share one DiskInfo.
type DiskInfo struct {
	Path  []byte // the volume handle's raw device path
	Label string // display label, composed from volume label and root map
}

// Loader is one candidate bootable image.
type Loader struct {
	FileName string // path within the volume, backslash separated
	Disk     *DiskInfo
	Args     string // load options; empty means none

	// NeedsRoot marks a Linux kernel found without a sidecar config:
	// the user picks a root partition when booting it, and the
	// arguments are synthesized from Initrd and the chosen PARTUUID.
	NeedsRoot bool
	Initrd    string
}

// Windows and macOS install their loaders at fixed paths probed on every
// volume.
var wellKnownLoaders = []string{
	`EFI\Microsoft\Boot\bootmgfw.efi`,
	`System\Library\CoreServices\boot.efi`,
}

// Scanner walks volumes for bootable images.
type Scanner struct {
	Roots gpt.RootMap
	Log   *zap.SugaredLogger
}

// ScanVolume scans one volume, identified by the raw device path of its
// handle, and returns the loaders found on it. Volumes whose device path
// carries no GPT partition record are rejected; I/O failures inside the
// volume skip the affected directory and keep the rest of the scan.
func (s *Scanner) ScanVolume(vol firmware.Volume, path []byte) ([]*Loader, error) {
	if s.Log == nil {
		s.Log = zap.NewNop().Sugar()
	}

	guid, ok := devicepath.GPTPartitionGUID(path)
	if !ok {
		return nil, fmt.Errorf("volume has no GPT partition record")
	}

	label, err := vol.Label()
	if err != nil {
		s.Log.Debugf("cannot read volume label: %v", err)
		label = ""
	}
	if label == "" {
		label = guid.String()
	}
	if name, ok := s.Roots[guid]; ok {
		label = label + " - " + name
	}

	disk := &DiskInfo{Path: append([]byte(nil), path...), Label: label}

	var loaders []*Loader
	add := func(ls []*Loader, err error) {
		if err != nil {
			s.Log.Debugf("partial scan of %s: %v", disk.Label, err)
		}
		loaders = append(loaders, ls...)
	}

	root, err := vol.Open("")
	if err != nil {
		return nil, fmt.Errorf("cannot open root directory: %w", err)
	}
	defer root.Close()

	add(s.scanRootLoaders(root, disk))

	if err := root.Rewind(); err != nil {
		return loaders, fmt.Errorf("cannot rewind root directory: %w", err)
	}
	add(s.scanKernels(vol, root, disk, ""))

	add(s.scanEFIDirectories(vol, disk))
	add(s.scanBootDirectory(vol, disk))
	loaders = append(loaders, s.probeWellKnown(vol, disk)...)

	return loaders, nil
}

// scanRootLoaders emits a loader for every *.efi file in the root
// directory, skipping macOS extended-attribute sidecars.
func (s *Scanner) scanRootLoaders(root firmware.File, disk *DiskInfo) ([]*Loader, error) {
	var out []*Loader
	err := eachEntry(root, func(e *firmware.DirInfo) {
		if e.Directory || !isEFIName(e.Name) || strings.HasPrefix(e.Name, "._") {
			return
		}
		out = append(out, &Loader{FileName: e.Name, Disk: disk})
	})
	return out, err
}

// scanEFIDirectories emits a loader for every *.efi file one level below
// EFI\.
func (s *Scanner) scanEFIDirectories(vol firmware.Volume, disk *DiskInfo) ([]*Loader, error) {
	efiDir, err := vol.Open("EFI")
	if err != nil {
		return nil, nil // no EFI directory on this volume
	}
	defer efiDir.Close()

	var subdirs []string
	if err := eachEntry(efiDir, func(e *firmware.DirInfo) {
		if e.Directory {
			subdirs = append(subdirs, e.Name)
		}
	}); err != nil {
		return nil, err
	}

	var out []*Loader
	for _, sub := range subdirs {
		dir, err := vol.Open(`EFI\` + sub)
		if err != nil {
			s.Log.Debugf("cannot open EFI\\%s: %v", sub, err)
			continue
		}
		err = eachEntry(dir, func(e *firmware.DirInfo) {
			if e.Directory || !isEFIName(e.Name) {
				return
			}
			out = append(out, &Loader{FileName: `EFI\` + sub + `\` + e.Name, Disk: disk})
		})
		dir.Close()
		if err != nil {
			s.Log.Debugf("partial read of EFI\\%s: %v", sub, err)
		}
	}
	return out, nil
}

// scanBootDirectory repeats the kernel scan inside \boot, when present.
func (s *Scanner) scanBootDirectory(vol firmware.Volume, disk *DiskInfo) ([]*Loader, error) {
	dir, err := vol.Open("boot")
	if err != nil {
		return nil, nil
	}
	defer dir.Close()
	return s.scanKernels(vol, dir, disk, `boot\`)
}

// probeWellKnown records the fixed-path Windows and macOS loaders.
func (s *Scanner) probeWellKnown(vol firmware.Volume, disk *DiskInfo) []*Loader {
	var out []*Loader
	for _, path := range wellKnownLoaders {
		f, err := vol.Open(path)
		if err != nil {
			continue
		}
		f.Close()
		out = append(out, &Loader{FileName: path, Disk: disk})
	}
	return out
}

// eachEntry iterates a directory, skipping the dot entries.
func eachEntry(dir firmware.File, fn func(*firmware.DirInfo)) error {
	for {
		e, err := dir.ReadEntry()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		fn(e)
	}
}

func isEFIName(name string) bool {
	return strings.HasSuffix(name, ".efi") || strings.HasSuffix(name, ".EFI")
}

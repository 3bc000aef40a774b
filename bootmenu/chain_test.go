// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootmenu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/canonical/zbl/firmware"
	"github.com/canonical/zbl/hosted"
)

func TestChainBoot(t *testing.T) {
	backend := hosted.NewBackend(nil)
	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(nil)}

	disk := &DiskInfo{Path: volumePath(testRootGUID), Label: "ESP"}
	l := &Loader{FileName: `EFI\ubuntu\grubx64.efi`, Disk: disk, Args: "quiet"}

	if err := chain.Boot(l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.Starts) != 1 {
		t.Fatalf("expected one started image, got %d", len(backend.Starts))
	}
	start := backend.Starts[0]
	if !strings.HasSuffix(start.Path, `\EFI\ubuntu\grubx64.efi`) {
		t.Errorf("unexpected image path %q", start.Path)
	}
	if start.Args != "quiet" {
		t.Errorf("expected args %q, got %q", "quiet", start.Args)
	}
}

func TestChainBootNoArgs(t *testing.T) {
	backend := hosted.NewBackend(nil)
	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(nil)}

	disk := &DiskInfo{Path: volumePath(testRootGUID), Label: "ESP"}
	if err := chain.Boot(&Loader{FileName: "boot.efi", Disk: disk}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := backend.Starts[0].Args; got != "" {
		t.Errorf("expected empty args, got %q", got)
	}
}

func TestChainBootTreatsAbortAsDone(t *testing.T) {
	backend := hosted.NewBackend(nil)
	backend.OnStart = func(hosted.StartRecord) error { return firmware.ErrAborted }
	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(nil)}

	disk := &DiskInfo{Path: volumePath(testRootGUID), Label: "ESP"}
	if err := chain.Boot(&Loader{FileName: "driver.efi", Disk: disk}); err != nil {
		t.Fatalf("abort must read as completion, got: %v", err)
	}
}

func TestChainBootSurfacesStartFailure(t *testing.T) {
	backend := hosted.NewBackend(nil)
	backend.OnStart = func(hosted.StartRecord) error { return firmware.ErrLoadError }
	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(nil)}

	disk := &DiskInfo{Path: volumePath(testRootGUID), Label: "ESP"}
	err := chain.Boot(&Loader{FileName: "bad.efi", Disk: disk})
	if !errors.Is(err, firmware.ErrLoadError) {
		t.Fatalf("expected a load error, got: %v", err)
	}
}

func TestChainBootMalformedDiskPath(t *testing.T) {
	backend := hosted.NewBackend(nil)
	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(nil)}

	disk := &DiskInfo{Path: []byte{0x04, 0x01, 0x02, 0x00}, Label: "bad"}
	if err := chain.Boot(&Loader{FileName: "boot.efi", Disk: disk}); err == nil {
		t.Fatal("expected an error for a malformed device path")
	}
}

func TestLoadDrivers(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/EFI/zbl/drivers/ext4.efi", []byte("d"), 0644)
	afero.WriteFile(fs, "/EFI/zbl/drivers/btrfs.efi", []byte("d"), 0644)
	afero.WriteFile(fs, "/EFI/zbl/drivers/notes.txt", []byte("n"), 0644)

	backend := hosted.NewBackend(nil)
	vol := &hosted.DirVolume{FS: fs, VolumeLabel: "ESP"}
	dev := backend.AddVolume(vol, volumePath(testRootGUID))

	// Every driver aborts after registering itself; the pre-load must
	// still visit all of them and succeed.
	backend.OnStart = func(hosted.StartRecord) error { return firmware.ErrAborted }

	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(dev)}
	if err := chain.LoadDrivers(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.Starts) != 2 {
		t.Fatalf("expected 2 drivers started, got %d", len(backend.Starts))
	}
	for _, start := range backend.Starts {
		if !strings.Contains(start.Path, `EFI\zbl\drivers\`) {
			t.Errorf("unexpected driver path %q", start.Path)
		}
	}
}

func TestLoadDriversNoDirectory(t *testing.T) {
	backend := hosted.NewBackend(nil)
	vol := &hosted.DirVolume{FS: afero.NewMemMapFs(), VolumeLabel: "ESP"}
	dev := backend.AddVolume(vol, volumePath(testRootGUID))

	chain := &ChainLoader{BS: backend, Self: backend.NewSelf(dev)}
	if err := chain.LoadDrivers(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.Starts) != 0 {
		t.Errorf("expected no starts, got %d", len(backend.Starts))
	}
}

func TestEncodeLoadOptions(t *testing.T) {
	opts, err := encodeLoadOptions("ro")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{'r', 0, 'o', 0, 0, 0}
	if !bytes.Equal(opts, want) {
		t.Errorf("expected % x, got % x", want, opts)
	}
}

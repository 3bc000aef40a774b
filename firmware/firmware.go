// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package firmware defines the contracts under which the rest of the
// application consumes UEFI services. The native build satisfies them with
// thin wrappers over the system table; the hosted backend satisfies them
// from disk images and a terminal. Everything above this package is
// backend-agnostic.
package firmware

import (
	"time"

	efi "github.com/canonical/go-efilib"
)

// Handle is an opaque reference to a firmware object carrying protocols.
type Handle any

// Protocol GUIDs used with BootServices.HandlesFor.
var (
	BlockIOProtocol          = efi.MakeGUID(0x964e5b21, 0x6459, 0x11d2, 0x8e39, [...]uint8{0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	SimpleFileSystemProtocol = efi.MakeGUID(0x964e5b22, 0x6459, 0x11d2, 0x8e39, [...]uint8{0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	DevicePathProtocol       = efi.MakeGUID(0x09576e91, 0x6d3f, 0x11d2, 0x8e39, [...]uint8{0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	LoadedImageProtocol      = efi.MakeGUID(0x5b1b31a1, 0x9562, 0x11d2, 0x8e3f, [...]uint8{0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
)

// OSIndicationBootToFWUI requests the firmware setup UI on the next boot
// when set in the OsIndications global variable.
const OSIndicationBootToFWUI uint64 = 0x1

// BootServices is the subset of the firmware's boot services the
// application uses.
type BootServices interface {
	// HandlesFor returns every handle carrying the given protocol.
	HandlesFor(protocol efi.GUID) ([]Handle, error)

	// OpenBlockIO opens the block-I/O protocol on a handle.
	OpenBlockIO(h Handle) (BlockIO, error)

	// OpenVolume opens the simple-file-system protocol on a handle and
	// returns its root volume.
	OpenVolume(h Handle) (Volume, error)

	// DevicePath returns the raw device path bound to a handle.
	DevicePath(h Handle) ([]byte, error)

	// OpenLoadedImage opens the loaded-image protocol on an image handle.
	OpenLoadedImage(h Handle) (LoadedImage, error)

	// LoadImage loads the image named by the device path and returns the
	// new image handle.
	LoadImage(parent Handle, path []byte) (Handle, error)

	// StartImage transfers control to a loaded image and returns its
	// exit status. ErrAborted is commonly returned by drivers that
	// register themselves and bail out.
	StartImage(h Handle) error

	// Stall blocks the calling thread for the given duration.
	Stall(d time.Duration)
}

// LoadedImage is the loaded-image protocol of one image handle.
type LoadedImage interface {
	// DeviceHandle returns the handle of the device the image was
	// loaded from.
	DeviceHandle() Handle

	// SetLoadOptions points the image's load options at the given
	// buffer. The buffer must stay live until the image exits; nil
	// clears the options.
	SetLoadOptions(opts []byte)
}

// ResetType selects the flavour of RuntimeServices.ResetSystem.
type ResetType int

const (
	ResetCold ResetType = iota
	ResetShutdown
)

// RuntimeServices is the subset of the firmware's runtime services the
// application uses.
type RuntimeServices interface {
	// GetVariable reads a variable. Absence is reported as ErrNotFound.
	GetVariable(guid efi.GUID, name string) (data []byte, attrs efi.VariableAttributes, err error)

	// SetVariable writes a variable with the given attributes.
	SetVariable(guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error

	// ResetSystem resets or powers off the machine. On real firmware it
	// does not return; hosted backends return to the caller instead.
	ResetSystem(t ResetType) error
}

// BlockIO reads whole blocks from one block device.
type BlockIO interface {
	// BlockSize returns the device's block size in bytes.
	BlockSize() int

	// ReadBlocks reads len(buf) bytes starting at the given LBA. The
	// buffer length must be a multiple of the block size.
	ReadBlocks(lba uint64, buf []byte) error
}

// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package hosted implements the firmware contracts on a development
// machine: volumes come from directory trees or raw disk images, the
// console from a terminal, and chain-load requests are recorded instead
// of started. The simulator command and the end-to-end tests run the real
// application on this backend.
package hosted

import (
	"time"

	efi "github.com/canonical/go-efilib"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/canonical/zbl/devicepath"
	"github.com/canonical/zbl/firmware"
)

// StartRecord is one chain-load observed by the backend.
type StartRecord struct {
	Path string // display form of the image's device path
	Args string // decoded load options
}

type volumeHandle struct {
	vol  firmware.Volume
	path []byte
}

type blockHandle struct {
	bio firmware.BlockIO
}

type imageHandle struct {
	path []byte
	opts []byte
	dev  firmware.Handle
}

type variable struct {
	data  []byte
	attrs efi.VariableAttributes
}

// Backend satisfies BootServices and RuntimeServices from registered
// hosted devices.
type Backend struct {
	Log *zap.SugaredLogger

	// OnStart, when set, decides the outcome of every StartImage call;
	// otherwise starts succeed silently. Either way they are recorded.
	OnStart func(StartRecord) error

	// Starts and Resets record what the application asked for.
	Starts []StartRecord
	Resets []firmware.ResetType

	// SleepOnStall makes Stall actually sleep, for interactive runs.
	SleepOnStall bool

	volumes []*volumeHandle
	blocks  []*blockHandle
	vars    map[efi.VariableDescriptor]variable
}

// NewBackend returns an empty backend.
func NewBackend(log *zap.SugaredLogger) *Backend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Backend{Log: log, vars: make(map[efi.VariableDescriptor]variable)}
}

// AddVolume registers a volume under the given raw device path and
// returns its handle.
func (b *Backend) AddVolume(vol firmware.Volume, path []byte) firmware.Handle {
	h := &volumeHandle{vol: vol, path: path}
	b.volumes = append(b.volumes, h)
	return h
}

// AddBlockDevice registers a block device.
func (b *Backend) AddBlockDevice(bio firmware.BlockIO) {
	b.blocks = append(b.blocks, &blockHandle{bio: bio})
}

// NewSelf returns an image handle for the application itself, loaded from
// the given device handle.
func (b *Backend) NewSelf(dev firmware.Handle) firmware.Handle {
	return &imageHandle{dev: dev}
}

// SetVariableData seeds a variable, for tests.
func (b *Backend) SetVariableData(guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) {
	b.vars[efi.VariableDescriptor{Name: name, GUID: guid}] = variable{data: data, attrs: attrs}
}

// VariableData returns a variable's current content.
func (b *Backend) VariableData(guid efi.GUID, name string) ([]byte, efi.VariableAttributes, bool) {
	v, ok := b.vars[efi.VariableDescriptor{Name: name, GUID: guid}]
	return v.data, v.attrs, ok
}

// --- BootServices ---

func (b *Backend) HandlesFor(protocol efi.GUID) ([]firmware.Handle, error) {
	var out []firmware.Handle
	switch protocol {
	case firmware.BlockIOProtocol:
		for _, h := range b.blocks {
			out = append(out, h)
		}
	case firmware.SimpleFileSystemProtocol:
		for _, h := range b.volumes {
			out = append(out, h)
		}
	default:
		return nil, firmware.ErrNotFound
	}
	return out, nil
}

func (b *Backend) OpenBlockIO(h firmware.Handle) (firmware.BlockIO, error) {
	if bh, ok := h.(*blockHandle); ok {
		return bh.bio, nil
	}
	return nil, firmware.ErrUnsupported
}

func (b *Backend) OpenVolume(h firmware.Handle) (firmware.Volume, error) {
	if vh, ok := h.(*volumeHandle); ok {
		return vh.vol, nil
	}
	return nil, firmware.ErrUnsupported
}

func (b *Backend) DevicePath(h firmware.Handle) ([]byte, error) {
	if vh, ok := h.(*volumeHandle); ok {
		return vh.path, nil
	}
	return nil, firmware.ErrUnsupported
}

func (b *Backend) OpenLoadedImage(h firmware.Handle) (firmware.LoadedImage, error) {
	if ih, ok := h.(*imageHandle); ok {
		return (*loadedImage)(ih), nil
	}
	return nil, firmware.ErrUnsupported
}

func (b *Backend) LoadImage(parent firmware.Handle, path []byte) (firmware.Handle, error) {
	return &imageHandle{path: append([]byte(nil), path...)}, nil
}

func (b *Backend) StartImage(h firmware.Handle) error {
	ih, ok := h.(*imageHandle)
	if !ok {
		return firmware.ErrInvalidParameter
	}
	rec := StartRecord{
		Path: devicepath.Display(ih.path),
		Args: decodeLoadOptions(ih.opts),
	}
	b.Starts = append(b.Starts, rec)
	b.Log.Debugf("start image %s args %q", rec.Path, rec.Args)
	if b.OnStart != nil {
		return b.OnStart(rec)
	}
	return nil
}

func (b *Backend) Stall(d time.Duration) {
	if b.SleepOnStall {
		time.Sleep(d)
	}
}

// --- RuntimeServices ---

func (b *Backend) GetVariable(guid efi.GUID, name string) ([]byte, efi.VariableAttributes, error) {
	v, ok := b.vars[efi.VariableDescriptor{Name: name, GUID: guid}]
	if !ok {
		return nil, 0, firmware.ErrNotFound
	}
	return append([]byte(nil), v.data...), v.attrs, nil
}

func (b *Backend) SetVariable(guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error {
	b.vars[efi.VariableDescriptor{Name: name, GUID: guid}] = variable{data: append([]byte(nil), data...), attrs: attrs}
	return nil
}

func (b *Backend) ResetSystem(t firmware.ResetType) error {
	b.Resets = append(b.Resets, t)
	b.Log.Debugf("reset system: %v", t)
	return nil
}

type loadedImage imageHandle

func (li *loadedImage) DeviceHandle() firmware.Handle { return li.dev }

func (li *loadedImage) SetLoadOptions(opts []byte) { li.opts = opts }

func decodeLoadOptions(opts []byte) string {
	if len(opts) == 0 {
		return ""
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, opts)
	if err != nil {
		return ""
	}
	for i, c := range out {
		if c == 0 {
			return string(out[:i])
		}
	}
	return string(out)
}

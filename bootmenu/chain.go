// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootmenu

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/canonical/zbl/devicepath"
	"github.com/canonical/zbl/firmware"
)

// driverDir is scanned on the application's own volume for UEFI drivers
// to load before discovery.
const driverDir = `EFI\zbl\drivers`

// ChainLoader starts UEFI images from discovered loaders.
type ChainLoader struct {
	BS   firmware.BootServices
	Self firmware.Handle // this application's image handle
	Log  *zap.SugaredLogger
}

// Boot loads and starts the loader's image, passing its arguments as load
// options. An image that exits with an abort is treated as done: drivers
// conventionally register themselves and abort.
func (c *ChainLoader) Boot(l *Loader) error {
	path, err := devicepath.AppendFilePath(l.Disk.Path, l.FileName)
	if err != nil {
		return fmt.Errorf("cannot build device path for %s: %w", l.FileName, err)
	}

	img, err := c.BS.LoadImage(c.Self, path)
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", l.FileName, err)
	}

	li, err := c.BS.OpenLoadedImage(img)
	if err != nil {
		return fmt.Errorf("no loaded-image protocol on %s: %w", l.FileName, err)
	}
	if l.Args != "" {
		opts, err := encodeLoadOptions(l.Args)
		if err != nil {
			return fmt.Errorf("cannot encode arguments for %s: %w", l.FileName, err)
		}
		li.SetLoadOptions(opts)
	} else {
		li.SetLoadOptions(nil)
	}

	if err := c.BS.StartImage(img); err != nil && !errors.Is(err, firmware.ErrAborted) {
		return fmt.Errorf("cannot start %s: %w", l.FileName, err)
	}
	return nil
}

// LoadDrivers chain-loads every *.efi below the driver directory of the
// volume this application was loaded from. Individual driver failures are
// logged and skipped.
func (c *ChainLoader) LoadDrivers() error {
	if c.Log == nil {
		c.Log = zap.NewNop().Sugar()
	}

	li, err := c.BS.OpenLoadedImage(c.Self)
	if err != nil {
		return fmt.Errorf("no loaded-image protocol on own handle: %w", err)
	}
	dev := li.DeviceHandle()

	vol, err := c.BS.OpenVolume(dev)
	if err != nil {
		return fmt.Errorf("cannot open own volume: %w", err)
	}
	path, err := c.BS.DevicePath(dev)
	if err != nil {
		return fmt.Errorf("cannot read own device path: %w", err)
	}

	dir, err := vol.Open(driverDir)
	if err != nil {
		return nil // no driver directory
	}
	defer dir.Close()

	disk := &DiskInfo{Path: path, Label: "drivers"}
	return eachEntry(dir, func(e *firmware.DirInfo) {
		if e.Directory || !isEFIName(e.Name) {
			return
		}
		l := &Loader{FileName: driverDir + `\` + e.Name, Disk: disk}
		if err := c.Boot(l); err != nil {
			c.Log.Debugf("driver %s: %v", e.Name, err)
		}
	})
}

// encodeLoadOptions renders kernel arguments the way started images
// expect them: UTF-16LE with a terminating NUL.
func encodeLoadOptions(args string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, _, err := transform.Bytes(enc, []byte(args+"\x00"))
	return out, err
}

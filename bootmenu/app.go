// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootmenu

import (
	"encoding/binary"
	"fmt"
	"time"

	efi "github.com/canonical/go-efilib"
	"go.uber.org/zap"

	"github.com/canonical/zbl/firmware"
	"github.com/canonical/zbl/gpt"
	"github.com/canonical/zbl/menu"
)

const osIndicationsName = "OsIndications"

// panicPause keeps a panic message on screen before waiting for a key.
const panicPause = 3 * time.Second

// App is the top-level discovery and menu pipeline.
type App struct {
	BS   firmware.BootServices
	RS   firmware.RuntimeServices
	In   firmware.TextInput
	Out  firmware.TextOutput
	Self firmware.Handle // this application's image handle

	// Halt stops the CPU after a panic inside the panic handler. Nil
	// blocks forever instead.
	Halt func()

	// ShowRoots appends the root-map debugging entry.
	ShowRoots bool

	Log *zap.SugaredLogger
}

// Main runs driver loading, discovery and the menu until the user exits.
// A panic anywhere below lands on the red screen and powers off.
func (a *App) Main() (err error) {
	if a.Log == nil {
		a.Log = zap.NewNop().Sugar()
	}
	defer func() {
		if v := recover(); v != nil {
			a.panicScreen(v)
		}
	}()
	return a.run()
}

func (a *App) run() error {
	chain := &ChainLoader{BS: a.BS, Self: a.Self, Log: a.Log}
	if err := chain.LoadDrivers(); err != nil {
		a.Log.Debugf("driver pre-load: %v", err)
	}

	roots := gpt.FindRoots(a.BS, a.Log)
	loaders := Discover(a.BS, roots, a.Log)
	a.Log.Debugf("discovered %d loaders across %d roots", len(loaders), len(roots))

	m := &menu.Menu{
		In:       a.In,
		Out:      a.Out,
		Entries:  a.buildEntries(chain, roots, loaders),
		PowerOff: a.powerOff,
		Stall:    a.BS.Stall,
	}
	return m.Run()
}

// Discover scans every file-system handle for loaders. Any per-volume
// failure skips that volume.
func Discover(bs firmware.BootServices, roots gpt.RootMap, log *zap.SugaredLogger) []*Loader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	scanner := &Scanner{Roots: roots, Log: log}

	handles, err := bs.HandlesFor(firmware.SimpleFileSystemProtocol)
	if err != nil {
		log.Debugf("no file systems: %v", err)
		return nil
	}

	var loaders []*Loader
	for _, h := range handles {
		path, err := bs.DevicePath(h)
		if err != nil {
			log.Debugf("skipping volume without device path: %v", err)
			continue
		}
		vol, err := bs.OpenVolume(h)
		if err != nil {
			log.Debugf("skipping unopenable volume: %v", err)
			continue
		}
		found, err := scanner.ScanVolume(vol, path)
		if err != nil {
			log.Debugf("volume scan: %v", err)
		}
		loaders = append(loaders, found...)
	}
	return loaders
}

func (a *App) powerOff() error {
	return a.RS.ResetSystem(firmware.ResetShutdown)
}

// rebootToFirmware requests the firmware setup UI for the next boot and
// cold-resets. A missing OsIndications variable reads as zero; a write
// failure is surfaced to the menu.
func (a *App) rebootToFirmware() error {
	var indications uint64
	data, _, err := a.RS.GetVariable(efi.GlobalVariable, osIndicationsName)
	if err == nil && len(data) >= 8 {
		indications = binary.LittleEndian.Uint64(data)
	}
	indications |= firmware.OSIndicationBootToFWUI

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], indications)
	attrs := efi.AttributeNonVolatile | efi.AttributeBootserviceAccess | efi.AttributeRuntimeAccess
	if err := a.RS.SetVariable(efi.GlobalVariable, osIndicationsName, buf[:], attrs); err != nil {
		return fmt.Errorf("cannot request firmware setup: %w", err)
	}
	return a.RS.ResetSystem(firmware.ResetCold)
}

// printRoots returns the debugging callback listing the root map and
// waiting for a key.
func (a *App) printRoots(roots gpt.RootMap) func() error {
	return func() error {
		if err := a.Out.ClearScreen(); err != nil {
			return err
		}
		for _, root := range sortedRoots(roots) {
			if err := a.Out.WriteString(root.GUID.String() + "  " + root.Name + "\r\n"); err != nil {
				return err
			}
		}
		_, err := a.In.ReadKey()
		return err
	}
}

// panicScreen is the last stop for a panic: red screen, message, pause,
// key, shutdown. A panic inside firmware console routines must not
// re-enter them, so a nested panic halts immediately.
func (a *App) panicScreen(v any) {
	defer func() {
		if recover() != nil {
			a.halt()
		}
	}()
	a.Out.SetAttributes(firmware.White, firmware.Red)
	a.Out.ClearScreen()
	a.Out.WriteString(fmt.Sprintf("panic: %v", v))
	a.BS.Stall(panicPause)
	a.In.ReadKey()
	a.RS.ResetSystem(firmware.ResetShutdown)
}

func (a *App) halt() {
	if a.Halt != nil {
		a.Halt()
	}
	select {}
}

// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package devicepath

import "strings"

// Display renders a device path for the menu: one token per record,
// joined with backslashes. File-path records contribute their embedded
// name, everything else its tag name, unknown records a question mark.
func Display(path []byte) string {
	var tokens []string
	w := Walk(path)
	for {
		rec, ok := w.Next()
		if !ok || rec.End() {
			break
		}
		tokens = append(tokens, rec.displayToken())
	}
	return strings.Join(tokens, "\\")
}

func (r Record) displayToken() string {
	switch r.Type {
	case TypeHardware:
		switch r.SubType {
		case SubTypeHWPCI:
			return "Pci"
		case SubTypeHWPCCard:
			return "PcCard"
		case SubTypeHWMemoryMap:
			return "MemoryMapped"
		case SubTypeHWVendor:
			return "VenHw"
		case SubTypeHWController:
			return "Ctrl"
		}
	case TypeACPI:
		return "Acpi"
	case TypeMessaging:
		switch r.SubType {
		case SubTypeMsgATAPI:
			return "Ata"
		case SubTypeMsgSCSI:
			return "Scsi"
		case SubTypeMsgUSB:
			return "Usb"
		case SubTypeMsgMAC:
			return "MAC"
		case SubTypeMsgIPv4:
			return "IPv4"
		case SubTypeMsgIPv6:
			return "IPv6"
		case SubTypeMsgSATA:
			return "Sata"
		case SubTypeMsgNVMe:
			return "NVMe"
		}
		return "Msg"
	case TypeMedia:
		switch r.SubType {
		case SubTypeMediaHardDrive:
			return "HD"
		case SubTypeMediaCDROM:
			return "CdRom"
		case SubTypeMediaVendor:
			return "VenMedia"
		case SubTypeMediaFilePath:
			name, _ := r.FilePathName()
			return name
		case SubTypeMediaProtocol:
			return "Protocol"
		}
	case TypeBBS:
		return "BBS"
	}
	return "?"
}

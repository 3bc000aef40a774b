// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootmenu

import (
	"fmt"
	"io"
	"sort"
	"strings"

	debversion "github.com/knqyf263/go-deb-version"

	"github.com/canonical/zbl/firmware"
)

// Kernel file names start with one of these; the first match determines
// the version suffix.
var kernelPrefixes = []string{"vmlinuz-", "vmlinuz"}

// initrdPatterns are tried in order against the kernel's version suffix;
// the first file that exists wins.
var initrdPatterns = []string{"initramfs-%s.img", "initrd-%s.img", "init-%s.img", "init%s.img"}

// scanKernels walks one directory for Linux kernels and pairs each with
// an initrd and optional sidecar arguments. Kernels without an initrd
// are skipped. prefix is prepended to produced file paths (`boot\` for
// the fallback scan) and must end with a backslash when non-empty.
func (s *Scanner) scanKernels(vol firmware.Volume, dir firmware.File, disk *DiskInfo, prefix string) ([]*Loader, error) {
	var found []*Loader
	err := eachEntry(dir, func(e *firmware.DirInfo) {
		if e.Directory {
			return
		}
		suffix, ok := kernelVersionSuffix(e.Name)
		if !ok {
			return
		}

		initrd := s.findInitrd(vol, prefix, suffix)
		if initrd == "" {
			s.Log.Debugf("kernel %s%s has no initrd, skipping", prefix, e.Name)
			return
		}

		loader := &Loader{FileName: prefix + e.Name, Disk: disk}
		args, ok := s.readKernelConf(vol, prefix+e.Name+".conf")
		if ok {
			loader.Args = args + " initrd=" + initrd
		} else {
			loader.NeedsRoot = true
			loader.Initrd = initrd
		}
		found = append(found, loader)
	})

	sortKernels(found)
	return found, err
}

// kernelVersionSuffix matches name against the kernel prefixes and
// returns the version suffix of the first match. Sidecar configuration
// files share the prefix and are not kernels.
func kernelVersionSuffix(name string) (string, bool) {
	if strings.HasSuffix(name, ".conf") {
		return "", false
	}
	for _, prefix := range kernelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):], true
		}
	}
	return "", false
}

// findInitrd probes the initrd naming patterns and returns the path of
// the first file present, or "".
func (s *Scanner) findInitrd(vol firmware.Volume, prefix, suffix string) string {
	for _, pattern := range initrdPatterns {
		path := prefix + fmt.Sprintf(pattern, suffix)
		f, err := vol.Open(path)
		if err != nil {
			continue
		}
		f.Close()
		return path
	}
	return ""
}

// readKernelConf reads a kernel's sidecar arguments file and strips one
// trailing line terminator. The second return is false when there is no
// such file.
func (s *Scanner) readKernelConf(vol firmware.Volume, path string) (string, bool) {
	f, err := vol.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.Log.Debugf("cannot read %s: %v", path, err)
		return "", false
	}

	args := string(data)
	if strings.HasSuffix(args, "\r\n") {
		args = args[:len(args)-2]
	} else if strings.HasSuffix(args, "\n") {
		args = args[:len(args)-1]
	}
	return args, true
}

// sortKernels orders kernels newest first by Debian version comparison of
// their version suffixes. Loaders whose suffix does not parse keep their
// discovery order after the parsed ones.
func sortKernels(loaders []*Loader) {
	type keyed struct {
		loader  *Loader
		version debversion.Version
		ok      bool
	}
	keys := make([]keyed, len(loaders))
	for i, l := range loaders {
		name := l.FileName
		if i := strings.LastIndexByte(name, '\\'); i >= 0 {
			name = name[i+1:]
		}
		suffix, _ := kernelVersionSuffix(name)
		k := keyed{loader: l}
		if suffix != "" {
			if v, err := debversion.NewVersion(suffix); err == nil {
				k.version, k.ok = v, true
			}
		}
		keys[i] = k
	}
	sort.SliceStable(keys, func(i, j int) bool {
		switch {
		case keys[i].ok && keys[j].ok:
			return keys[i].version.GreaterThan(keys[j].version)
		case keys[i].ok:
			return true
		default:
			return false
		}
	})
	for i, k := range keys {
		loaders[i] = k.loader
	}
}

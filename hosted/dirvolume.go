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

	"github.com/spf13/afero"

	"github.com/canonical/zbl/firmware"
)

// DirVolume serves a volume from an afero file system, so a directory
// tree (or an in-memory tree in tests) can stand in for an ESP.
type DirVolume struct {
	FS          afero.Fs
	VolumeLabel string
}

func (v *DirVolume) Label() (string, error) { return v.VolumeLabel, nil }

func (v *DirVolume) Open(path string) (firmware.File, error) {
	name := "/" + strings.ReplaceAll(strings.Trim(path, `\`), `\`, "/")

	fi, err := v.FS.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, firmware.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if fi.IsDir() {
		infos, err := afero.ReadDir(v.FS, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// afero sorts by name already; keep it explicit so iteration
		// order is stable across implementations.
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
		return &dirFile{infos: infos}, nil
	}

	f, err := v.FS.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &regularFile{f: f}, nil
}

// dirFile iterates a snapshot of a directory. Every DirInfo is a fresh
// value, safe to hold across further reads.
type dirFile struct {
	infos []os.FileInfo
	pos   int
}

func (d *dirFile) Read([]byte) (int, error) { return 0, firmware.ErrUnsupported }
func (d *dirFile) Close() error             { return nil }

func (d *dirFile) ReadEntry() (*firmware.DirInfo, error) {
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

func (d *dirFile) Rewind() error {
	d.pos = 0
	return nil
}

type regularFile struct {
	f afero.File
}

func (r *regularFile) Read(p []byte) (int, error) { return r.f.Read(p) }
func (r *regularFile) Close() error               { return r.f.Close() }

func (r *regularFile) ReadEntry() (*firmware.DirInfo, error) {
	return nil, firmware.ErrUnsupported
}

func (r *regularFile) Rewind() error {
	_, err := r.f.Seek(0, io.SeekStart)
	return err
}

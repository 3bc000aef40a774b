// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// zbl-sim runs the boot menu against disk images and directory
// trees on a development machine instead of real firmware.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/canonical/zbl/devicepath"
	"github.com/canonical/zbl/firmware"
	"github.com/canonical/zbl/hosted"
)

var (
	flagImages  []string
	flagDirs    []string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zbl-sim",
	Short: "Run the boot menu against hosted disk images",
	Long: `zbl-sim implements the firmware services the boot menu needs on a
development machine. Volumes come from raw GPT disk images (--image) or
plain directory trees (--dir label=path); chain-load requests are printed
instead of started.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringArrayVar(&flagImages, "image", nil, "raw GPT disk image to attach (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&flagDirs, "dir", nil, "directory tree to attach as a volume, label=path (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log discovery details to stderr")

	rootCmd.AddCommand(runCmd, scanCmd, rootsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.SugaredLogger, error) {
	if !flagVerbose {
		return zap.NewNop().Sugar(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

// buildBackend attaches every --image and --dir to a fresh backend and
// returns the handle of the first volume, which stands in for the device
// the application was loaded from.
func buildBackend(log *zap.SugaredLogger) (*hosted.Backend, firmware.Handle, error) {
	backend := hosted.NewBackend(log)
	var self firmware.Handle

	for _, image := range flagImages {
		img, err := hosted.OpenDiskImage(image)
		if err != nil {
			return nil, nil, err
		}
		handles, err := img.Register(backend)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", image, err)
		}
		if self == nil && len(handles) > 0 {
			self = handles[0]
		}
	}

	for _, arg := range flagDirs {
		label, dir, ok := strings.Cut(arg, "=")
		if !ok {
			label, dir = filepath.Base(arg), arg
		}
		if _, err := os.Stat(dir); err != nil {
			return nil, nil, fmt.Errorf("--dir %s: %w", arg, err)
		}
		vol := &hosted.DirVolume{
			FS:          afero.NewBasePathFs(afero.NewOsFs(), dir),
			VolumeLabel: label,
		}
		h := backend.AddVolume(vol, dirDevicePath(dir))
		if self == nil {
			self = h
		}
	}

	if len(flagImages) == 0 && len(flagDirs) == 0 {
		return nil, nil, fmt.Errorf("attach at least one --image or --dir")
	}
	return backend, self, nil
}

// dirDevicePath gives a directory volume a stable GPT-flavoured device
// path so discovery treats it like a partition.
func dirDevicePath(dir string) []byte {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte("zbl-sim:"+dir))
	guid, _ := hosted.ParseGUID(u.String())

	var b devicepath.Builder
	b.Append(devicepath.TypeACPI, 0x01, make([]byte, 8))
	b.HardDrive(&devicepath.HardDriveRecord{
		PartitionNumber: 1,
		PartitionStart:  2048,
		PartitionSize:   1 << 21,
		Signature:       [16]byte(guid),
		MBRType:         0x02,
		SignatureType:   devicepath.SignatureTypeGPT,
	})
	return b.Finish()
}

// This file is part of zbl
// Copyright 2022 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package firmware

import "errors"

// Sentinel errors mirroring the UEFI status codes the application cares
// about. Backends translate their native failures into these so callers
// can test with errors.Is.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnsupported      = errors.New("unsupported")
	ErrDeviceError      = errors.New("device error")
	ErrLoadError        = errors.New("load error")
	ErrNotFound         = errors.New("not found")
	ErrNoMedia          = errors.New("no media")
	ErrBufferTooSmall   = errors.New("buffer too small")
	ErrOutOfResources   = errors.New("out of resources")
	ErrAborted          = errors.New("aborted")
)

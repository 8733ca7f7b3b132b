// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux && !tamago
// +build linux,!tamago

package main

import (
	"io"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// openHardware maps the PMC registers and the DMA window through the
// physical memory device at path.
func openHardware(path string, base uint64, size int) (bus reg.Bus, m mem.Memory, closer io.Closer, err error) {
	dev, err := reg.OpenDevMem(path, hw.PMC_GLOBAL_BASE, hw.PMC_DMA0_BASE, hw.PMC_DMA1_BASE, hw.AES_BASE, hw.SHA_BASE, hw.EFUSE_CACHE)

	if err != nil {
		return
	}

	buf, err := dev.Map(base, size)

	if err != nil {
		dev.Close()
		return
	}

	return dev, mem.NewRegion(base, buf), dev, nil
}

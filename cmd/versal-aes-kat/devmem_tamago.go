// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago
// +build tamago

package main

import (
	"io"

	"github.com/f-secure-foundry/versal-secure/internal/mem"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// openHardware accesses the PMC registers directly, the DMA window is handed
// to the global tamago DMA allocator. The path is ignored.
func openHardware(_ string, base uint64, size int) (bus reg.Bus, m mem.Memory, closer io.Closer, err error) {
	mem.Init(uint32(base), size)

	return reg.MMIO{}, mem.DMA{}, nopCloser{}, nil
}

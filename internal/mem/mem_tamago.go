// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago
// +build tamago

package mem

import (
	"github.com/f-secure-foundry/tamago/dma"
)

// DMA is the global tamago DMA region, it must be initialized with Init
// before use.
type DMA struct{}

// Init initializes the global DMA region, the PMC RAM secure window is
// typically used as the CSU DMA cannot reach cached DDR consistently during
// boot.
func Init(start uint32, size int) {
	dma.Init(start, size)
}

func (DMA) Reserve(size int, align int) (addr uint64, err error) {
	a, _ := dma.Reserve(size, align)

	if a == 0 {
		return 0, ErrNoSpace
	}

	return uint64(a), nil
}

func (DMA) Release(addr uint64) {
	dma.Release(uint32(addr))
}

func (DMA) Read(addr uint64, buf []byte) error {
	dma.Read(uint32(addr), 0, buf)
	return nil
}

func (DMA) Write(addr uint64, buf []byte) error {
	dma.Write(uint32(addr), 0, buf)
	return nil
}

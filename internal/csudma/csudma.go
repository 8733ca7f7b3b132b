// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package csudma implements a driver for the Versal PMC CSU DMA controllers.
//
// Each controller has a source channel, reading memory into the secure
// stream switch, and a destination channel, writing switch output to
// memory. Transfers are expressed in 32-bit words.
package csudma

import (
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// Channel represents a CSU DMA channel.
type Channel int

// CSU DMA channels
const (
	SRC Channel = iota
	DST
)

func (ch Channel) String() string {
	switch ch {
	case SRC:
		return "SRC"
	case DST:
		return "DST"
	default:
		return fmt.Sprintf("Channel(%d)", int(ch))
	}
}

// DMA represents a CSU DMA controller instance.
type DMA struct {
	// Index is the controller index (0 or 1)
	Index int
	// Base is the controller register base, derived from Index when zero
	Base uint32
	// Bus is the register space
	Bus reg.Bus
	// Timeout is the done poll budget, defaults to hw.TIMEOUT_MAX
	Timeout int
}

// Init initializes the CSU DMA controller driver.
func (d *DMA) Init() (err error) {
	if d.Base == 0 {
		switch d.Index {
		case 0:
			d.Base = hw.PMC_DMA0_BASE
		case 1:
			d.Base = hw.PMC_DMA1_BASE
		default:
			return fmt.Errorf("invalid CSU DMA index %d", d.Index)
		}
	}

	if d.Timeout <= 0 {
		d.Timeout = hw.TIMEOUT_MAX
	}

	d.ClearDone(SRC)
	d.ClearDone(DST)

	return
}

func (d *DMA) register(ch Channel, off uint32) uint32 {
	if ch == DST {
		off += hw.DMA_DST_OFFSET
	}

	return d.Base + off
}

// Transfer programs a transfer of words 32-bit words at physical address
// addr on channel ch. The last flag marks the end of the stream for the
// engine fed by the source channel.
func (d *DMA) Transfer(ch Channel, addr uint64, words uint32, last bool) {
	size := words << hw.SIZE_SHIFT

	if last {
		size |= 1 << hw.SIZE_LAST
	}

	d.Bus.Write(d.register(ch, hw.DMA_ADDR), uint32(addr))
	d.Bus.Write(d.register(ch, hw.DMA_ADDR_MSB), uint32(addr>>32)&hw.DMA_ADDR_MSB_MASK)
	// writing the size starts the transfer
	d.Bus.Write(d.register(ch, hw.DMA_SIZE), size)
}

// WaitForDone waits for the completion of the last transfer on channel ch,
// and acknowledges it.
func (d *DMA) WaitForDone(ch Channel) (err error) {
	if err = reg.Wait(d.Bus, d.register(ch, hw.DMA_I_STS), hw.I_STS_DONE, 1, 1, d.Timeout); err != nil {
		return fmt.Errorf("DMA%d %s: %w", d.Index, ch, err)
	}

	d.ClearDone(ch)

	return
}

// ClearDone acknowledges the done interrupt status of channel ch.
func (d *DMA) ClearDone(ch Channel) {
	d.Bus.Write(d.register(ch, hw.DMA_I_STS), 1<<hw.I_STS_DONE)
}

// SetByteSwap enables or disables the swapping of bytes within each word
// transferred on channel ch.
func (d *DMA) SetByteSwap(ch Channel, enable bool) {
	reg.SetTo(d.Bus, d.register(ch, hw.DMA_CTRL), hw.CTRL_ENDIANNESS, enable)
}

// ByteSwap returns whether byte swapping is enabled on channel ch.
func (d *DMA) ByteSwap(ch Channel) bool {
	return reg.IsSet(d.Bus, d.register(ch, hw.DMA_CTRL), hw.CTRL_ENDIANNESS)
}

// Busy returns whether channel ch has a transfer in progress.
func (d *DMA) Busy(ch Channel) bool {
	return reg.IsSet(d.Bus, d.register(ch, hw.DMA_STS), hw.STS_BUSY)
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"github.com/f-secure-foundry/tamago/bits"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

type channel struct {
	regs map[uint32]uint32

	// destination transfer in progress
	addr    uint64
	size    int
	written int
}

type dmaCtrl struct {
	pmc   *PMC
	index int
	ch    [2]channel
}

func (d *dmaCtrl) channel(off uint32) (*channel, uint32) {
	n := 0

	if off >= hw.DMA_DST_OFFSET {
		n = 1
		off -= hw.DMA_DST_OFFSET
	}

	if d.ch[n].regs == nil {
		d.ch[n].regs = make(map[uint32]uint32)
	}

	return &d.ch[n], off
}

func (d *dmaCtrl) read(off uint32) uint32 {
	ch, off := d.channel(off)

	switch off {
	case hw.DMA_STS:
		// transfers complete synchronously
		return 0
	case hw.DMA_SIZE:
		return 0
	}

	return ch.regs[off]
}

func (d *dmaCtrl) write(off uint32, val uint32) {
	dst := off >= hw.DMA_DST_OFFSET
	ch, off := d.channel(off)

	switch off {
	case hw.DMA_I_STS:
		// write one to clear
		ch.regs[off] &^= val
		return
	case hw.DMA_SIZE:
		addr := uint64(ch.regs[hw.DMA_ADDR_MSB]&hw.DMA_ADDR_MSB_MASK)<<32 | uint64(ch.regs[hw.DMA_ADDR])
		size := int(val>>hw.SIZE_SHIFT) * hw.WORD_SIZE
		last := bits.Get(&val, hw.SIZE_LAST, 1) == 1

		if dst {
			d.arm(ch, addr, size)
		} else {
			d.send(ch, addr, size, last)
		}

		return
	}

	ch.regs[off] = val
}

func (ch *channel) swap() bool {
	ctrl := ch.regs[hw.DMA_CTRL]
	return bits.Get(&ctrl, hw.CTRL_ENDIANNESS, 1) == 1
}

func (ch *channel) complete() {
	ch.regs[hw.DMA_I_STS] |= 1 << hw.I_STS_DONE
}

func (d *dmaCtrl) endpoint() sss.Endpoint {
	return sss.DMA0 + sss.Endpoint(d.index)
}

// send reads a source transfer from memory and pushes it to the switch
// port fed by this controller. Transfers without a route never complete.
func (d *dmaCtrl) send(ch *channel, addr uint64, size int, last bool) {
	buf := make([]byte, size)

	if err := d.pmc.Mem.Read(addr, buf); err != nil {
		return
	}

	if ch.swap() {
		buf = swapWords(buf)
	}

	switch d.pmc.sinkOf(d.endpoint()) {
	case sss.AES:
		d.pmc.aes.feed(swapWords(buf), last)
	case sss.SHA:
		d.pmc.sha.feed(buf, last)
	case d.endpoint():
		d.deliver(buf)
	default:
		return
	}

	ch.complete()
}

// arm starts a destination transfer, output held by the AES engine is
// delivered immediately.
func (d *dmaCtrl) arm(ch *channel, addr uint64, size int) {
	ch.addr = addr
	ch.size = size
	ch.written = 0

	if size == 0 {
		ch.complete()
		return
	}

	if d.pmc.inputOf(d.endpoint()) == sss.AES && len(d.pmc.aes.pending) > 0 {
		pending := d.pmc.aes.pending
		d.pmc.aes.pending = nil
		d.pmc.aesOutput(pending, true)
	}
}

// deliver writes switch output to the destination transfer in progress and
// returns the data which did not fit.
func (d *dmaCtrl) deliver(buf []byte) []byte {
	ch := &d.ch[1]

	if ch.regs == nil {
		ch.regs = make(map[uint32]uint32)
	}

	n := ch.size - ch.written

	if n <= 0 {
		return buf
	}

	if n > len(buf) {
		n = len(buf)
	}

	out := buf[:n]

	if ch.swap() {
		out = swapWords(out)
	}

	if err := d.pmc.Mem.Write(ch.addr+uint64(ch.written), out); err != nil {
		ch.size = 0
		return buf[n:]
	}

	ch.written += n

	if ch.written == ch.size {
		ch.size = 0
		ch.written = 0
		ch.complete()
	}

	return buf[n:]
}

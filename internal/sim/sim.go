// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sim implements a software model of the Versal PMC security blocks.
//
// The model exposes the register map of the AES-GCM engine, the secure
// stream switch, both CSU DMA controllers, the SHA3 engine and the eFUSE
// cache security word through the same reg.Bus interface used on hardware,
// with DMA transfers served from a mem.Region. Drivers therefore run
// unmodified against it.
//
// Stream byte lanes follow the hardware: the CSU DMA reads little-endian
// words, optionally byte swapped, and the AES engine interprets each word
// as big-endian. With byte swapping enabled the AES engine therefore sees
// data in memory order.
package sim

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/f-secure-foundry/crucible/util"
	"golang.org/x/crypto/hkdf"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

// DefaultRegion is the physical address of the model DMA window, it matches
// the PMC RAM.
const DefaultRegion = 0xf2000000

// Provisioned lists the key sources derived by Provision.
var Provisioned = []keys.Source{
	keys.BBRAM_KEY,
	keys.EFUSE_KEY,
	keys.EFUSE_USER_KEY_0,
	keys.EFUSE_USER_KEY_1,
	keys.FAMILY_KEY,
	keys.PUF_KEY,
}

// PMC represents a model of the PMC security blocks.
type PMC struct {
	sync.Mutex

	// Mem is the DMA capable memory reachable by the CSU DMA controllers
	Mem *mem.Region
	// Rand is the mask source of split (DPA countermeasure) operations,
	// defaults to crypto/rand
	Rand io.Reader

	// StallKeyLoad prevents key loads from completing
	StallKeyLoad bool
	// StallDone prevents AES operations from completing
	StallDone bool
	// StallKeyClear prevents key zeroization from completing
	StallKeyClear bool
	// StallKeyDecrypt prevents key unwrap from completing
	StallKeyDecrypt bool
	// DpaCmDisabled models the DPA countermeasure eFUSE disable bits
	DpaCmDisabled bool

	sssCfg uint32
	aes    *aesCore
	dma    [2]*dmaCtrl
	sha    *shaCore
	regs   map[uint32]uint32
}

// New returns a PMC model with a DMA window of size bytes.
func New(size int) *PMC {
	p := &PMC{
		Mem:  mem.NewRegion(DefaultRegion, make([]byte, size)),
		regs: make(map[uint32]uint32),
	}

	p.aes = newAesCore(p)
	p.sha = newShaCore()

	for i := range p.dma {
		p.dma[i] = &dmaCtrl{pmc: p, index: i}
	}

	return p
}

func (p *PMC) random(buf []byte) {
	r := p.Rand

	if r == nil {
		r = rand.Reader
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		panic(err)
	}
}

// Read implements reg.Bus.
func (p *PMC) Read(addr uint32) uint32 {
	p.Lock()
	defer p.Unlock()

	switch {
	case addr == hw.SSS_CFG:
		return p.sssCfg
	case addr == hw.EFUSE_SECURITY_MISC_1:
		if p.DpaCmDisabled {
			return hw.EFUSE_DPA_CM_DIS_MASK
		}
		return 0
	case addr >= hw.AES_BASE && addr < hw.AES_BASE+hw.AES_REGISTER_SIZE:
		return p.aes.read(addr - hw.AES_BASE)
	case addr >= hw.SHA_BASE && addr < hw.SHA_BASE+0x100:
		return p.sha.read(addr - hw.SHA_BASE)
	}

	if d, off, ok := p.dmaAt(addr); ok {
		return d.read(off)
	}

	return p.regs[addr]
}

// Write implements reg.Bus.
func (p *PMC) Write(addr uint32, val uint32) {
	p.Lock()
	defer p.Unlock()

	switch {
	case addr == hw.SSS_CFG:
		p.sssCfg = val
		return
	case addr >= hw.AES_BASE && addr < hw.AES_BASE+hw.AES_REGISTER_SIZE:
		p.aes.write(addr-hw.AES_BASE, val)
		return
	case addr >= hw.SHA_BASE && addr < hw.SHA_BASE+0x100:
		p.sha.write(addr-hw.SHA_BASE, val)
		return
	}

	if d, off, ok := p.dmaAt(addr); ok {
		d.write(off, val)
		return
	}

	p.regs[addr] = val
}

func (p *PMC) dmaAt(addr uint32) (d *dmaCtrl, off uint32, ok bool) {
	for i, base := range []uint32{hw.PMC_DMA0_BASE, hw.PMC_DMA1_BASE} {
		if addr >= base && addr < base+0x1000 {
			return p.dma[i], addr - base, true
		}
	}

	return
}

// inputOf returns the switch port currently feeding sink.
func (p *PMC) inputOf(sink sss.Endpoint) sss.Endpoint {
	return sss.Decode(p.sssCfg)[sink]
}

// sinkOf returns the switch port currently fed by input.
func (p *PMC) sinkOf(input sss.Endpoint) sss.Endpoint {
	inputs := sss.Decode(p.sssCfg)

	for sink, in := range inputs {
		if in == input && sss.Endpoint(sink) != sss.INVALID {
			return sss.Endpoint(sink)
		}
	}

	return sss.INVALID
}

// aesOutput delivers AES engine output to the CSU DMA destination channel
// routed from the engine. Data which does not fit is dropped, unless keep
// is set in which case it is held until the next destination transfer.
func (p *PMC) aesOutput(buf []byte, keep bool) {
	sink := p.sinkOf(sss.AES)

	if sink == sss.DMA0 || sink == sss.DMA1 {
		buf = p.dma[sink].deliver(buf)
	}

	if keep && len(buf) > 0 {
		p.aes.pending = append(p.aes.pending, buf...)
	}
}

// SetKey provisions the key material of key source src, user writable
// sources are written to their key registers as the driver would.
func (p *PMC) SetKey(src keys.Source, key []byte) (err error) {
	if len(key) != 16 && len(key) != 32 {
		return fmt.Errorf("invalid key length %d", len(key))
	}

	p.Lock()
	defer p.Unlock()

	d := keys.Lookup(src)

	if d.Select == keys.None {
		return fmt.Errorf("key source %s cannot hold key material", src)
	}

	p.aes.store(src, key)

	return
}

// Key returns a copy of the 256-bit key material held by key source src.
func (p *PMC) Key(src keys.Source) []byte {
	p.Lock()
	defer p.Unlock()

	return p.aes.fetch(keys.Lookup(src), 32)
}

// Provision derives the device unique keys of all non volatile key sources
// from seed.
func (p *PMC) Provision(seed []byte) (err error) {
	for _, src := range Provisioned {
		key := make([]byte, 32)
		r := hkdf.New(sha256.New, seed, nil, []byte(src.String()))

		if _, err = io.ReadFull(r, key); err != nil {
			return
		}

		if err = p.SetKey(src, key); err != nil {
			return
		}
	}

	return
}

// swapWords returns a copy of buf with the bytes of each 32-bit word
// reversed.
func swapWords(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)

	for i := 0; i+hw.WORD_SIZE <= len(out); i += hw.WORD_SIZE {
		util.SwitchEndianness(out[i : i+hw.WORD_SIZE])
	}

	return out
}

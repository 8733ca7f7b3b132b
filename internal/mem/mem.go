// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem provides DMA capable memory for the PMC drivers.
//
// Buffers handed to the CSU DMA must be addressed physically, a Memory hands
// out physical addresses and gives the CPU side access to their content.
package mem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoSpace is returned when a reservation cannot be satisfied.
var ErrNoSpace = errors.New("DMA region exhausted")

// Memory represents DMA capable memory.
type Memory interface {
	Reserve(size int, align int) (addr uint64, err error)
	Release(addr uint64)
	Read(addr uint64, buf []byte) error
	Write(addr uint64, buf []byte) error
}

type block struct {
	addr uint64
	size int
}

// Region is a DMA capable memory window starting at a fixed physical address,
// backed by a byte slice mapping it.
type Region struct {
	sync.Mutex

	start uint64
	buf   []byte
	used  []block
}

// NewRegion returns a region of len(buf) bytes at physical address start.
func NewRegion(start uint64, buf []byte) *Region {
	return &Region{
		start: start,
		buf:   buf,
	}
}

// Size returns the region size in bytes.
func (r *Region) Size() int {
	return len(r.buf)
}

// Reserve allocates a buffer of size bytes, with the start address aligned
// to align bytes. Reserved buffers are not initialized.
func (r *Region) Reserve(size int, align int) (addr uint64, err error) {
	if size <= 0 {
		return 0, fmt.Errorf("invalid reservation size %d", size)
	}

	if align <= 0 {
		align = 4
	}

	r.Lock()
	defer r.Unlock()

	end := r.start + uint64(len(r.buf))
	cursor := r.start
	pos := len(r.used)

	// address zero is reserved for "no buffer"
	if cursor == 0 {
		cursor = 1
	}

	for i, b := range r.used {
		addr = alignUp(cursor, align)

		if addr+uint64(size) <= b.addr {
			pos = i
			break
		}

		cursor = b.addr + uint64(b.size)
	}

	if pos == len(r.used) {
		addr = alignUp(cursor, align)
	}

	if addr+uint64(size) > end {
		return 0, ErrNoSpace
	}

	r.used = append(r.used, block{})
	copy(r.used[pos+1:], r.used[pos:])
	r.used[pos] = block{addr: addr, size: size}

	return
}

// Release frees a buffer previously returned by Reserve.
func (r *Region) Release(addr uint64) {
	r.Lock()
	defer r.Unlock()

	i := sort.Search(len(r.used), func(i int) bool {
		return r.used[i].addr >= addr
	})

	if i < len(r.used) && r.used[i].addr == addr {
		r.used = append(r.used[:i], r.used[i+1:]...)
	}
}

// Slice returns the CPU view of size bytes at physical address addr.
func (r *Region) Slice(addr uint64, size int) ([]byte, error) {
	if addr < r.start || size < 0 || addr-r.start+uint64(size) > uint64(len(r.buf)) {
		return nil, fmt.Errorf("address range %#x+%d outside DMA region", addr, size)
	}

	off := addr - r.start

	return r.buf[off : off+uint64(size)], nil
}

func (r *Region) Read(addr uint64, buf []byte) error {
	src, err := r.Slice(addr, len(buf))

	if err != nil {
		return err
	}

	copy(buf, src)

	return nil
}

func (r *Region) Write(addr uint64, buf []byte) error {
	dst, err := r.Slice(addr, len(buf))

	if err != nil {
		return err
	}

	copy(dst, buf)

	return nil
}

// Alloc reserves a buffer sized and filled after buf.
func Alloc(m Memory, buf []byte, align int) (addr uint64, err error) {
	if addr, err = m.Reserve(len(buf), align); err != nil {
		return
	}

	if err = m.Write(addr, buf); err != nil {
		m.Release(addr)
		return 0, err
	}

	return
}

// Words loads n 32-bit words at addr in CPU (little-endian) byte order.
func Words(m Memory, addr uint64, n int) (words []uint32, err error) {
	buf := make([]byte, n*4)

	if err = m.Read(addr, buf); err != nil {
		return
	}

	words = make([]uint32, n)

	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	return
}

func alignUp(addr uint64, align int) uint64 {
	a := uint64(align)
	return (addr + a - 1) / a * a
}

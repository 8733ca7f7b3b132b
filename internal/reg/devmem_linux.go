// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux && !tamago
// +build linux,!tamago

package reg

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// registers are mapped in 64KB windows, matching the PMC peripheral spacing
const windowSize = 0x10000

// DevMem accesses physical registers from Linux userspace through /dev/mem.
//
// Register windows are mapped when the device is opened. Accesses outside
// them read as zero and are otherwise ignored, the first one is reported by
// Close.
type DevMem struct {
	sync.Mutex

	file    *os.File
	windows map[uint32][]byte
	maps    [][]byte
	fault   error
}

// OpenDevMem opens the physical memory device at path (usually /dev/mem) and
// maps the 64KB register windows containing each of the base addresses.
func OpenDevMem(path string, bases ...uint32) (d *DevMem, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)

	if err != nil {
		return
	}

	d = &DevMem{
		file:    f,
		windows: make(map[uint32][]byte),
	}

	for _, base := range bases {
		base &^= windowSize - 1

		if _, ok := d.windows[base]; ok {
			continue
		}

		var win []byte

		if win, err = d.Map(uint64(base), windowSize); err != nil {
			d.Close()
			return nil, err
		}

		d.windows[base] = win
	}

	return
}

// Map maps size bytes of physical memory starting at the page aligned base
// address, the returned slice remains valid until Close.
func (d *DevMem) Map(base uint64, size int) (buf []byte, err error) {
	if base%uint64(os.Getpagesize()) != 0 {
		return nil, fmt.Errorf("devmem: unaligned base %#x", base)
	}

	buf, err = unix.Mmap(int(d.file.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)

	if err != nil {
		return nil, fmt.Errorf("devmem: mmap %#x, %v", base, err)
	}

	d.Lock()
	d.maps = append(d.maps, buf)
	d.Unlock()

	return
}

func (d *DevMem) word(addr uint32) *uint32 {
	base := addr &^ (windowSize - 1)

	d.Lock()
	defer d.Unlock()

	win, ok := d.windows[base]

	if !ok || addr%4 != 0 {
		if d.fault == nil {
			d.fault = fmt.Errorf("devmem: invalid register access %#x", addr)
		}

		return nil
	}

	return (*uint32)(unsafe.Pointer(&win[addr-base]))
}

func (d *DevMem) Read(addr uint32) uint32 {
	if w := d.word(addr); w != nil {
		return atomic.LoadUint32(w)
	}

	return 0
}

func (d *DevMem) Write(addr uint32, val uint32) {
	if w := d.word(addr); w != nil {
		atomic.StoreUint32(w, val)
	}
}

// Close unmaps all windows and closes the memory device, it returns the
// first invalid register access if any occurred.
func (d *DevMem) Close() (err error) {
	d.Lock()
	defer d.Unlock()

	for _, buf := range d.maps {
		if e := unix.Munmap(buf); e != nil && err == nil {
			err = e
		}
	}

	d.maps = nil
	d.windows = make(map[uint32][]byte)

	if e := d.file.Close(); e != nil && err == nil {
		err = e
	}

	if d.fault != nil && err == nil {
		err = d.fault
	}

	return
}

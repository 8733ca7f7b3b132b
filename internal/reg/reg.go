// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reg provides 32-bit memory mapped register access for the PMC
// drivers.
//
// All drivers reach hardware exclusively through a Bus, which allows the same
// driver code to run against physical registers (tamago or Linux /dev/mem)
// and against a software model of the PMC.
package reg

import (
	"errors"

	"github.com/f-secure-foundry/tamago/bits"
)

// ErrTimeout is returned when a bounded poll exhausts its iteration budget.
var ErrTimeout = errors.New("register poll timeout")

// Bus represents a 32-bit memory mapped register space.
type Bus interface {
	Read(addr uint32) uint32
	Write(addr uint32, val uint32)
}

// Get returns the register field at pos, selected by mask.
func Get(b Bus, addr uint32, pos int, mask int) uint32 {
	val := b.Read(addr)
	return bits.Get(&val, pos, mask)
}

// IsSet returns whether the register bit at pos is set.
func IsSet(b Bus, addr uint32, pos int) bool {
	val := b.Read(addr)
	return bits.Get(&val, pos, 1) == 1
}

// Set sets the register bit at pos (read-modify-write).
func Set(b Bus, addr uint32, pos int) {
	val := b.Read(addr)
	bits.Set(&val, pos)
	b.Write(addr, val)
}

// Clear clears the register bit at pos (read-modify-write).
func Clear(b Bus, addr uint32, pos int) {
	val := b.Read(addr)
	bits.Clear(&val, pos)
	b.Write(addr, val)
}

// SetTo sets or clears the register bit at pos.
func SetTo(b Bus, addr uint32, pos int, val bool) {
	if val {
		Set(b, addr, pos)
	} else {
		Clear(b, addr, pos)
	}
}

// Wait polls the register until the field at pos, selected by mask, equals
// val. At most budget reads are issued.
func Wait(b Bus, addr uint32, pos int, mask int, val uint32, budget int) error {
	for i := 0; i < budget; i++ {
		if Get(b, addr, pos, mask) == val {
			return nil
		}
	}

	return ErrTimeout
}

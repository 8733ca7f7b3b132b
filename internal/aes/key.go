// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"encoding/binary"
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// WriteKey writes key material to a user writable key source, the key
// length must match size.
func (a *AES) WriteKey(src keys.Source, size keys.Size, key []byte) (err error) {
	if a.state == UNINITIALIZED {
		return &OpError{OpWriteKey, ErrInvalidState}
	}

	d := keys.Lookup(src)

	if !keys.Valid(src) || !d.Writable() {
		return &OpError{OpWriteKey, fmt.Errorf("%w (%s)", ErrKeyNotAllowed, src)}
	}

	if !size.Valid() || len(key) != size.Bytes() {
		return &OpError{OpWriteKey, ErrInvalidParameter}
	}

	n := size.Words()

	// the first key word is held by the highest register
	for i := 0; i < n; i++ {
		off := d.Offset + uint32(n-1-i)*hw.WORD_SIZE
		a.write(off, binary.BigEndian.Uint32(key[i*4:]))
	}

	return
}

// keyLoad loads the key held by the key source described by d in the
// engine.
func (a *AES) keyLoad(d keys.Descriptor, size keys.Size) (err error) {
	a.write(hw.AES_KEY_SIZE, size.Value())
	a.write(hw.AES_KEY_SEL, d.Select)
	a.write(hw.AES_KEY_LOAD, 1)

	if err = a.wait(hw.STATUS_KEY_INIT_DONE); err != nil {
		return &OpError{OpKeyLoad, err}
	}

	return
}

// KeyZero zeroizes the key held by key source src. The EXPANDED_KEYS source
// clears the key material loaded in the engine.
//
// KeyZero can be invoked in any engine state and does not change it.
func (a *AES) KeyZero(src keys.Source) (err error) {
	d := keys.Lookup(src)

	if !keys.Valid(src) || !d.Clearable() {
		return &OpError{OpKeyZero, fmt.Errorf("%w (%s)", ErrInvalidParameter, src)}
	}

	addr := a.Base + hw.AES_KEY_CLEAR
	prev := a.Bus.Read(addr)

	a.Bus.Write(addr, prev|d.ClearMask)
	defer a.Bus.Write(addr, prev)

	if reg.Wait(a.Bus, a.Base+hw.AES_KEY_ZEROED, 0, int(d.ClearMask), d.ClearMask, a.Timeout) != nil {
		return &OpError{OpKeyZero, fmt.Errorf("%w (%s)", ErrKeyClear, src)}
	}

	return
}

// KekDecrypt unwraps a black (PUF encrypted) or obfuscated (family key
// encrypted) key held by key source dec into the red key source dst, the
// unwrapping key is determined by the key type. The key material is never
// exposed to software.
func (a *AES) KekDecrypt(t keys.KekType, dec keys.Source, dst keys.Source, iv uint64, size keys.Size) (err error) {
	if err = a.idle(); err != nil {
		return &OpError{OpKeyDecrypt, err}
	}

	if !keys.Valid(dec) || !keys.Valid(dst) || !size.Valid() || iv == 0 {
		return &OpError{OpKeyDecrypt, ErrInvalidParameter}
	}

	decSrc := keys.Lookup(dec)
	dstSrc := keys.Lookup(dst)

	if !decSrc.DecryptSource || !dstSrc.CanUnwrapInto() {
		return &OpError{OpKeyDecrypt, fmt.Errorf("%w (%s -> %s)", ErrInvalidParameter, dec, dst)}
	}

	kek, err := keys.UnwrapKey(t)

	if err != nil {
		return &OpError{OpKeyDecrypt, fmt.Errorf("%w (%v)", ErrInvalidParameter, err)}
	}

	a.reset()

	// the unwrap path must never be left armed
	defer func() {
		a.softReset()
		a.write(hw.AES_KEY_DEC, 0)
	}()

	if err = a.route(); err != nil {
		return
	}

	if err = a.keyLoad(keys.Lookup(kek), size); err != nil {
		return
	}

	a.write(hw.AES_START_MSG, 1)

	a.setDataSwap(true, csudma.SRC)
	a.DMA.Transfer(csudma.SRC, iv, hw.GCM_TAG_SIZE/hw.WORD_SIZE, true)
	err = a.DMA.WaitForDone(csudma.SRC)
	a.setDataSwap(false, csudma.SRC)

	if err != nil {
		return &OpError{OpKeyDecrypt, err}
	}

	a.write(hw.AES_KEY_DEC, hw.KEY_DEC_MASK)
	a.write(hw.AES_KEY_DEC_SEL, dstSrc.DecryptSelect)
	a.write(hw.AES_KEY_SEL, decSrc.Select)
	a.write(hw.AES_KEY_DEC_TRIG, 1)

	if err = a.wait(hw.STATUS_BLK_KEY_DEC_DONE); err != nil {
		return &OpError{OpKeyDecrypt, err}
	}

	return
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// MaskedSize is the size of the input and output buffers of MaskedEncrypt.
const MaskedSize = 64

// SetDpaCm enables or disables the engine DPA countermeasure, unless
// permanently disabled in eFUSE.
func (a *AES) SetDpaCm(enable bool) (err error) {
	if a.Bus.Read(hw.EFUSE_SECURITY_MISC_1)&hw.EFUSE_DPA_CM_DIS_MASK != 0 {
		return &OpError{OpDpaCm, ErrDpaCmNotSupported}
	}

	var val uint32

	if enable {
		val = 1
	}

	a.write(hw.AES_CM_EN, val)

	if reg.IsSet(a.Bus, a.Base+hw.AES_STATUS, hw.STATUS_CM_ENABLED) != enable {
		return &OpError{OpDpaCm, ErrDpaCmConfig}
	}

	return
}

// MaskedEncrypt performs a split mode (DPA countermeasure) GCM encryption
// with a 256-bit key, written to USER_KEY_0.
//
// The 64 bytes input at physical address data holds the IV mask and masked
// IV, followed by the message mask and masked message. The 64 bytes output,
// written at physical address out, holds the ciphertext mask and masked
// ciphertext, followed by the tag mask and masked tag. Masks are generated
// by the engine.
func (a *AES) MaskedEncrypt(key []byte, data uint64, out uint64) (err error) {
	if err = a.idle(); err != nil {
		return &OpError{OpMaskedEncrypt, err}
	}

	if data == 0 || out == 0 {
		return &OpError{OpMaskedEncrypt, ErrInvalidParameter}
	}

	a.reset()

	defer func() {
		a.DMA.ClearDone(csudma.DST)
		a.DMA.ClearDone(csudma.SRC)
		a.write(hw.AES_SPLIT_CFG, 0)
		a.softReset()
	}()

	a.write(hw.AES_MODE, 1<<hw.MODE_ENC_DEC_N)
	a.write(hw.AES_SPLIT_CFG, 1<<hw.SPLIT_CFG_KEY_SPLIT|1<<hw.SPLIT_CFG_DATA_SPLIT)

	for i := uint32(0); i < uint32(keys.KEY_SIZE_256.Words()); i++ {
		a.write(hw.AES_KEY_MASK_0+i*hw.WORD_SIZE, 0)
	}

	if err = a.WriteKey(keys.USER_KEY_0, keys.KEY_SIZE_256, key); err != nil {
		return
	}

	if err = a.keyLoad(keys.Lookup(keys.USER_KEY_0), keys.KEY_SIZE_256); err != nil {
		return
	}

	if err = a.route(); err != nil {
		return
	}

	a.write(hw.AES_START_MSG, 1)

	a.setDataSwap(true, csudma.SRC, csudma.DST)
	defer a.setDataSwap(false, csudma.SRC, csudma.DST)

	words := uint32(MaskedSize / hw.WORD_SIZE)

	a.DMA.Transfer(csudma.DST, out, words, false)
	a.DMA.Transfer(csudma.SRC, data, words, true)

	if err = a.DMA.WaitForDone(csudma.DST); err != nil {
		return &OpError{OpMaskedEncrypt, err}
	}

	if err = a.wait(hw.STATUS_DONE); err != nil {
		return &OpError{OpMaskedEncrypt, err}
	}

	return
}

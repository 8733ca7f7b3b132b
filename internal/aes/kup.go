// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"math/bits"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
)

// CfgKupIv enables or disables the saving of the next block key, to the
// KUP_KEY source, and IV, to the IV registers, while decrypting a block
// header.
func (a *AES) CfgKupIv(enable bool) {
	var val uint32

	if enable {
		val = 1<<hw.KUP_WR_KEY_SAVE | 1<<hw.KUP_WR_IV_SAVE
	}

	a.write(hw.AES_KUP_WR, val)
}

// NextBlockLength returns the length in bytes of the next block, as saved in
// the last IV register by a block header decryption.
func (a *AES) NextBlockLength() uint32 {
	return bits.ReverseBytes32(a.Bus.Read(a.Base+hw.AES_IV_3)) * hw.WORD_SIZE
}

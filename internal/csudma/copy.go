// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package csudma

import (
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

// Loopback copies memory through the secure stream switch, with a CSU DMA
// controller output routed back into its own input.
type Loopback struct {
	DMA *DMA
	SSS *sss.Switch
}

// Copy copies size bytes from physical address src to physical address dst.
// The size must be a multiple of the word size.
func (l *Loopback) Copy(dst uint64, src uint64, size uint32) (err error) {
	if size == 0 || size%hw.WORD_SIZE != 0 {
		return fmt.Errorf("invalid copy length %d", size)
	}

	if err = l.SSS.RouteLoopback(l.DMA.Index); err != nil {
		return
	}

	words := size / hw.WORD_SIZE

	l.DMA.Transfer(DST, dst, words, false)
	l.DMA.Transfer(SRC, src, words, true)

	if err = l.DMA.WaitForDone(SRC); err != nil {
		return
	}

	return l.DMA.WaitForDone(DST)
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package csudma

import (
	"encoding/binary"
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

// SHA3 feeds the PMC SHA3-384 engine through the secure stream switch.
type SHA3 struct {
	Base    uint32
	Bus     reg.Bus
	DMA     *DMA
	SSS     *sss.Switch
	Timeout int
}

// Init initializes the SHA3 engine driver.
func (s *SHA3) Init() {
	if s.Base == 0 {
		s.Base = hw.SHA_BASE
	}

	if s.Timeout <= 0 {
		s.Timeout = hw.TIMEOUT_MAX
	}
}

// Sum returns the SHA3-384 digest of size bytes at physical address addr,
// the size must be a multiple of the word size.
func (s *SHA3) Sum(addr uint64, size uint32) (digest []byte, err error) {
	if size%hw.WORD_SIZE != 0 {
		return nil, fmt.Errorf("invalid hash length %d", size)
	}

	if err = s.SSS.RouteForHash(s.DMA.Index); err != nil {
		return
	}

	s.Bus.Write(s.Base+hw.SHA_RESET, 1)
	s.Bus.Write(s.Base+hw.SHA_RESET, 0)
	s.Bus.Write(s.Base+hw.SHA_START, 1)

	s.DMA.Transfer(SRC, addr, size/hw.WORD_SIZE, true)

	if err = s.DMA.WaitForDone(SRC); err != nil {
		return
	}

	if err = reg.Wait(s.Bus, s.Base+hw.SHA_DONE, hw.DONE_DONE, 1, 1, s.Timeout); err != nil {
		return nil, fmt.Errorf("SHA3: %w", err)
	}

	digest = make([]byte, hw.SHA384_DIGEST_WORDS*4)

	for i := 0; i < hw.SHA384_DIGEST_WORDS; i++ {
		binary.BigEndian.PutUint32(digest[i*4:], s.Bus.Read(s.Base+hw.SHA_DIGEST_0+uint32(i)*4))
	}

	return
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
)

type shaCore struct {
	h      hash.Hash
	digest []byte
	done   bool
}

func newShaCore() *shaCore {
	return &shaCore{h: sha3.New384()}
}

func (s *shaCore) read(off uint32) uint32 {
	switch {
	case off == hw.SHA_DONE:
		if s.done {
			return 1 << hw.DONE_DONE
		}
		return 0
	case off >= hw.SHA_DIGEST_0 && off < hw.SHA_DIGEST_0+hw.SHA384_DIGEST_WORDS*4:
		if s.digest == nil {
			return 0
		}
		return binary.BigEndian.Uint32(s.digest[off-hw.SHA_DIGEST_0:])
	}

	return 0
}

func (s *shaCore) write(off uint32, val uint32) {
	switch off {
	case hw.SHA_RESET:
		if val&1 == 1 {
			s.h.Reset()
			s.digest = nil
			s.done = false
		}
	case hw.SHA_START:
		if val&1 == 1 {
			s.h.Reset()
			s.done = false
		}
	}
}

func (s *shaCore) feed(buf []byte, last bool) {
	s.h.Write(buf)

	if last {
		s.digest = s.h.Sum(nil)
		s.done = true
	}
}

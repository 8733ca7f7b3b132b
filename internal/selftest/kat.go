// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package selftest

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/f-secure-foundry/versal-secure/internal/aes"
	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
)

// NIST AES-256-GCM decryption vector, words are held in memory in CPU byte
// order.
var (
	katKey = []uint32{
		0xd55455d7, 0x2b247897, 0x0c4bf1cd, 0x1a2d14ed,
		0x4d3b0a53, 0xf3c6e1ae, 0xafc2447a, 0x7b534d99,
	}
	katIV         = []uint32{0xccf8e3b9, 0x11f11746, 0xd58c03af, 0x00000000}
	katCiphertext = []uint32{0xf9ecc5ae, 0x92b9b870, 0x31299331, 0xc4182756}
	katTag        = []uint32{0xc3cfb3e5, 0x49d4fbca, 0xd90b2bfc, 0xc87dbe9b}
	katPlaintext  = []uint32{0x9008cfd4, 0x3882aa74, 0x0d635531, 0x6c1c1f47}
)

const katAlign = 64

func leBytes(words []uint32) []byte {
	buf := make([]byte, len(words)*4)

	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}

	return buf
}

// workspace tracks the DMA buffers of a test.
type workspace struct {
	m    mem.Memory
	addr []uint64
}

func (w *workspace) alloc(buf []byte) (addr uint64, err error) {
	if addr, err = mem.Alloc(w.m, buf, katAlign); err != nil {
		return
	}

	w.addr = append(w.addr, addr)

	return
}

func (w *workspace) release() {
	for _, addr := range w.addr {
		w.m.Release(addr)
	}
}

// AES performs the functional known answer test, a GCM decryption of a
// fixed vector with a key written to USER_KEY_0.
func AES(a *aes.AES, m mem.Memory) (err error) {
	w := &workspace{m: m}
	defer w.release()

	iv, err := w.alloc(leBytes(katIV))

	if err != nil {
		return fail(AES_KAT_FAILED, err)
	}

	ct, err := w.alloc(leBytes(katCiphertext))

	if err != nil {
		return fail(AES_KAT_FAILED, err)
	}

	tag, err := w.alloc(leBytes(katTag))

	if err != nil {
		return fail(AES_KAT_FAILED, err)
	}

	out, err := w.alloc(make([]byte, hw.GCM_TAG_SIZE))

	if err != nil {
		return fail(AES_KAT_FAILED, err)
	}

	if err = a.WriteKey(keys.USER_KEY_0, keys.KEY_SIZE_256, leBytes(katKey)); err != nil {
		return fail(AES_KAT_WRITE_KEY_FAILED, err)
	}

	if err = a.DecryptInit(keys.USER_KEY_0, keys.KEY_SIZE_256, iv); err != nil {
		return fail(AES_KAT_DECRYPT_INIT_FAILED, err)
	}

	if err = a.DecryptData(ct, out, hw.GCM_TAG_SIZE, tag); err != nil {
		return fail(AES_KAT_GCM_TAG_MISMATCH, err)
	}

	res, err := mem.Words(m, out, len(katPlaintext))

	if err != nil {
		return fail(AES_KAT_FAILED, err)
	}

	for i := range res {
		if res[i] != katPlaintext[i] {
			return AES_KAT_DATA_MISMATCH
		}
	}

	return
}

// dpaVector is a split mode encryption vector, words are held in memory in
// network byte order.
type dpaVector struct {
	key []uint32
	iv  []uint32
	msg []uint32
	// expected ciphertext
	ct []uint32
	// expected GCM tag
	mic []uint32
}

var dpaVectors = [2]dpaVector{
	{
		key: []uint32{
			0x56690798, 0x978c154f, 0xf250ba78, 0xe463765f,
			0x2f0ce697, 0x09a4551b, 0xd8cb3add, 0xeda087b6,
		},
		iv:  []uint32{0xcf37c286, 0xc18ad4ea, 0x3d0ba6a0},
		msg: []uint32{0x2d328124, 0xa8d58d56, 0xd0775eed, 0x93de1a88},
		ct:  []uint32{0x3b0a0267, 0xf6ecde3a, 0x78b30903, 0xebd4ca6e},
		mic: []uint32{0x1fd20064, 0x09fc6363, 0x79f3d406, 0x7eca0988},
	},
	{
		key: []uint32{
			0x8a02a33b, 0xdf87e784, 0x5d7a8ae3, 0xc8727e70,
			0x4f4fd08c, 0x1f208328, 0x2d8cb3a5, 0xd3cedee9,
		},
		iv:  []uint32{0x599f5896, 0x851c968e, 0xd808323b},
		msg: []uint32{0x4ade8b32, 0xd56723fb, 0x8f65ce40, 0x825e27c9},
		ct:  []uint32{0xcb913379, 0x6b907565, 0x7840421a, 0x46022b63},
		mic: []uint32{0xa79e453c, 0x6fad8a5a, 0x4c2a8e87, 0x821c7f88},
	},
}

func beBytes(words []uint32, size int) []byte {
	buf := make([]byte, size)

	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:], w)
	}

	return buf
}

// input returns the split mode input with zero masks: IV mask, IV, message
// mask, message.
func (v *dpaVector) input() []byte {
	buf := make([]byte, aes.MaskedSize)

	copy(buf[16:32], beBytes(v.iv, 16))
	copy(buf[48:64], beBytes(v.msg, 16))

	return buf
}

// shares holds the output of a split mode encryption.
type shares struct {
	// ciphertext mask (RM) and masked ciphertext (R)
	rm []byte
	r  []byte
	// tag mask (Mm) and masked tag (M)
	mm []byte
	m  []byte
}

func maskedEncrypt(a *aes.AES, m mem.Memory, v *dpaVector) (s *shares, err error) {
	w := &workspace{m: m}
	defer w.release()

	in, err := w.alloc(v.input())

	if err != nil {
		return nil, fail(AESDPACM_KAT_FAILED, err)
	}

	out, err := w.alloc(make([]byte, aes.MaskedSize))

	if err != nil {
		return nil, fail(AESDPACM_KAT_FAILED, err)
	}

	if err = a.MaskedEncrypt(beBytes(v.key, 32), in, out); err != nil {
		return nil, fail(dpaCode(err), err)
	}

	buf := make([]byte, aes.MaskedSize)

	if err = m.Read(out, buf); err != nil {
		return nil, fail(AESDPACM_KAT_FAILED, err)
	}

	s = &shares{
		rm: buf[0:16],
		r:  buf[16:32],
		mm: buf[32:48],
		m:  buf[48:64],
	}

	return
}

// dpaCode maps a split mode encryption error to its failure code.
func dpaCode(err error) Error {
	var op *aes.OpError

	if !errors.As(err, &op) {
		return AESDPACM_KAT_FAILED
	}

	switch op.Op {
	case aes.OpWriteKey:
		return AESDPACM_KAT_WRITE_KEY_FAILED
	case aes.OpKeyLoad:
		return AESDPACM_KAT_KEYLOAD_FAILED
	case aes.OpRoute:
		return AESDPACM_SSS_CFG_FAILED
	default:
		return AESDPACM_KAT_FAILED
	}
}

func zero(b []byte) bool {
	return bytes.Equal(b, make([]byte, len(b)))
}

// distinct reports whether share is non-zero and differs from all others.
func distinct(share []byte, others ...[]byte) bool {
	if zero(share) {
		return false
	}

	for _, o := range others {
		if bytes.Equal(share, o) {
			return false
		}
	}

	return true
}

func unmasks(mask []byte, masked []byte, want []byte) bool {
	res := make([]byte, len(mask))

	for i := range res {
		res[i] = mask[i] ^ masked[i]
	}

	return bytes.Equal(res, want)
}

// DPA performs the DPA countermeasure known answer test. Two split mode
// encryptions of fixed vectors must produce fresh, distinct random masks
// which unmask to the expected ciphertexts and tags.
func DPA(a *aes.AES, m mem.Memory) (err error) {
	s0, err := maskedEncrypt(a, m, &dpaVectors[0])

	if err != nil {
		return
	}

	s1, err := maskedEncrypt(a, m, &dpaVectors[1])

	if err != nil {
		return
	}

	switch {
	case !distinct(s0.rm, s1.rm, s0.mm, s1.mm):
		return AESDPACM_KAT_CHECK1_FAILED
	case !distinct(s1.rm, s0.rm, s0.mm, s1.mm):
		return AESDPACM_KAT_CHECK2_FAILED
	case !distinct(s0.mm, s0.rm, s1.rm, s1.mm):
		return AESDPACM_KAT_CHECK3_FAILED
	case !distinct(s1.mm, s0.rm, s1.rm, s0.mm):
		return AESDPACM_KAT_CHECK4_FAILED
	}

	for i, s := range []*shares{s0, s1} {
		v := &dpaVectors[i]

		if !unmasks(s.rm, s.r, beBytes(v.ct, 16)) || !unmasks(s.mm, s.m, beBytes(v.mic, 16)) {
			return AESDPACM_KAT_CHECK5_FAILED
		}
	}

	return
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"

	"github.com/f-secure-foundry/tamago/bits"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
)

type phase int

const (
	idle phase = iota
	// receiving the IV
	ivIn
	// IV received as last transfer, waiting for a key unwrap trigger
	unwrap
	// streaming message data
	data
	// receiving the decryption tag
	tagIn
	// receiving split (masked) IV and message shares
	split
)

const splitSize = 4 * 16

// kupSize is the size of the key and IV for the next block saved by the key
// update function.
const kupSize = 32 + 16

type aesCore struct {
	pmc *PMC

	regs   map[uint32]uint32
	slots  map[uint32][]byte
	zeroed uint32

	reset bool
	key   []byte
	phase phase

	iv     []byte
	buf    []byte
	ctr    cipher.Stream
	acc    []byte
	kup    []byte
	status uint32

	pending []byte
}

func newAesCore(p *PMC) *aesCore {
	return &aesCore{
		pmc:   p,
		regs:  make(map[uint32]uint32),
		slots: make(map[uint32][]byte),
		reset: true,
	}
}

func keyRegister(off uint32) bool {
	for _, src := range keys.Sources() {
		d := keys.Lookup(src)

		if d.Offset != keys.None && off >= d.Offset && off < d.Offset+32 {
			return true
		}
	}

	return off >= hw.AES_KEY_MASK_0 && off < hw.AES_KEY_MASK_0+32
}

func (c *aesCore) read(off uint32) uint32 {
	switch off {
	case hw.AES_STATUS:
		s := c.status

		if !c.reset {
			bits.Set(&s, hw.STATUS_READY)
		}

		if c.regs[hw.AES_CM_EN]&1 == 1 {
			bits.Set(&s, hw.STATUS_CM_ENABLED)
		}

		return s
	case hw.AES_SOFT_RST:
		if c.reset {
			return 1
		}
		return 0
	case hw.AES_KEY_ZEROED:
		return c.zeroed
	}

	// key material is write only
	if keyRegister(off) {
		return 0
	}

	return c.regs[off]
}

func (c *aesCore) write(off uint32, val uint32) {
	switch off {
	case hw.AES_SOFT_RST:
		if val&1 == 1 {
			c.softReset()
		}
		c.reset = val&1 == 1
		return
	case hw.AES_KEY_LOAD:
		if val&1 == 1 {
			c.keyLoad()
		}
		return
	case hw.AES_START_MSG:
		if val&1 == 1 {
			c.startMessage()
		}
		return
	case hw.AES_KEY_CLEAR:
		c.keyClear(val &^ c.regs[off])
	case hw.AES_KEY_DEC_TRIG:
		if val&1 == 1 {
			c.keyDecrypt()
		}
		return
	case hw.AES_CM_EN:
		if c.pmc.DpaCmDisabled {
			return
		}
	}

	if src, ok := c.keyAt(off); ok {
		c.zeroed &^= keys.Lookup(src).ClearMask
	}

	c.regs[off] = val
}

func (c *aesCore) keyAt(off uint32) (keys.Source, bool) {
	for _, src := range keys.Sources() {
		d := keys.Lookup(src)

		if d.Writable() && off >= d.Offset && off < d.Offset+32 {
			return src, true
		}
	}

	return -1, false
}

func (c *aesCore) softReset() {
	c.key = nil
	c.phase = idle
	c.status = 0
	c.iv = nil
	c.buf = nil
	c.acc = nil
	c.kup = nil
	c.ctr = nil
	c.pending = nil
}

func (c *aesCore) keySize() int {
	if c.regs[hw.AES_KEY_SIZE] == hw.KEY_SIZE_256_VAL {
		return 32
	}

	return 16
}

// store places key material in the storage of key source src.
func (c *aesCore) store(src keys.Source, key []byte) {
	d := keys.Lookup(src)

	if d.Writable() {
		n := uint32(len(key) / 4)

		for i := uint32(0); i < n; i++ {
			c.regs[d.Offset+(n-1-i)*4] = binary.BigEndian.Uint32(key[i*4:])
		}
	} else {
		c.slots[d.Select] = append([]byte{}, key...)
	}

	if d.Clearable() {
		c.zeroed &^= d.ClearMask
	}
}

// fetch returns size bytes of key material held by the key source described
// by d, absent material reads as zero.
func (c *aesCore) fetch(d keys.Descriptor, size int) (key []byte) {
	key = make([]byte, size)

	if d.Writable() {
		n := uint32(size / 4)

		for i := uint32(0); i < n; i++ {
			binary.BigEndian.PutUint32(key[i*4:], c.regs[d.Offset+(n-1-i)*4])
		}

		return
	}

	copy(key, c.slots[d.Select])

	return
}

func (c *aesCore) keyLoad() {
	if c.reset || c.pmc.StallKeyLoad {
		return
	}

	src, ok := keys.BySelect(c.regs[hw.AES_KEY_SEL])

	if !ok {
		return
	}

	size := c.keySize()
	key := c.fetch(keys.Lookup(src), size)

	if c.regs[hw.AES_SPLIT_CFG]&(1<<hw.SPLIT_CFG_KEY_SPLIT) != 0 {
		for i := 0; i < size/4; i++ {
			m := c.regs[hw.AES_KEY_MASK_0+uint32(i)*4]
			binary.BigEndian.PutUint32(key[i*4:], binary.BigEndian.Uint32(key[i*4:])^m)
		}
	}

	c.key = key
	c.zeroed &^= hw.KEY_CLEAR_AES_KEY_ZEROIZE
	bits.Set(&c.status, hw.STATUS_KEY_INIT_DONE)
}

func (c *aesCore) startMessage() {
	if c.reset {
		return
	}

	c.buf = nil
	c.acc = nil
	c.kup = nil
	c.pending = nil
	bits.Clear(&c.status, hw.STATUS_DONE)
	bits.Clear(&c.status, hw.STATUS_GCM_TAG_PASS)

	if c.regs[hw.AES_SPLIT_CFG] == (1<<hw.SPLIT_CFG_KEY_SPLIT | 1<<hw.SPLIT_CFG_DATA_SPLIT) {
		c.phase = split
	} else {
		c.phase = ivIn
	}
}

func (c *aesCore) encrypting() bool {
	mode := c.regs[hw.AES_MODE]
	return bits.Get(&mode, hw.MODE_ENC_DEC_N, 1) == 1
}

func (c *aesCore) block() cipher.Block {
	block, err := aes.NewCipher(c.key)

	if err != nil {
		panic(err)
	}

	return block
}

// seal computes the GCM tag of the accumulated plaintext.
func (c *aesCore) seal(pt []byte) []byte {
	gcm, err := cipher.NewGCM(c.block())

	if err != nil {
		panic(err)
	}

	out := gcm.Seal(nil, c.iv, pt, nil)

	return out[len(out)-hw.GCM_TAG_SIZE:]
}

func (c *aesCore) keystream(iv []byte) cipher.Stream {
	ctr := make([]byte, 16)
	copy(ctr, iv[:12])
	binary.BigEndian.PutUint32(ctr[12:], 2)

	return cipher.NewCTR(c.block(), ctr)
}

// feed consumes engine input, in engine byte order.
func (c *aesCore) feed(in []byte, last bool) {
	if c.reset || c.key == nil {
		return
	}

	for len(in) > 0 || last {
		switch c.phase {
		case ivIn:
			in = c.collect(in, 16)

			if len(c.buf) < 16 {
				return
			}

			for i := 0; i < 4; i++ {
				c.regs[hw.AES_IV_0+uint32(i)*4] = binary.BigEndian.Uint32(c.buf[i*4:])
			}

			c.iv = c.buf[:12]
			c.buf = nil

			c.ctr = c.keystream(c.iv)

			if last && len(in) == 0 {
				c.phase = unwrap
				return
			}

			c.phase = data
		case data:
			out := make([]byte, len(in))
			c.ctr.XORKeyStream(out, in)

			if c.encrypting() {
				c.acc = append(c.acc, in...)
			} else {
				c.acc = append(c.acc, out...)
				out = c.keyUpdate(out)
			}

			in = nil
			c.pmc.aesOutput(swapWords(out), false)

			if !last {
				return
			}

			last = false

			if c.encrypting() {
				c.pmc.aesOutput(swapWords(c.seal(c.acc)), true)
				c.done()
			} else {
				c.phase = tagIn
			}
		case tagIn:
			in = c.collect(in, hw.GCM_TAG_SIZE)

			if len(c.buf) < hw.GCM_TAG_SIZE {
				return
			}

			if subtle.ConstantTimeCompare(c.buf, c.seal(c.acc)) == 1 {
				bits.Set(&c.status, hw.STATUS_GCM_TAG_PASS)
			}

			c.buf = nil
			c.done()
		case split:
			in = c.collect(in, splitSize)

			if len(c.buf) < splitSize {
				return
			}

			c.maskedEncrypt(c.buf)
			c.buf = nil
			c.done()
		default:
			return
		}
	}
}

func (c *aesCore) collect(in []byte, n int) []byte {
	want := n - len(c.buf)

	if want > len(in) {
		want = len(in)
	}

	c.buf = append(c.buf, in[:want]...)

	return in[want:]
}

func (c *aesCore) done() {
	c.phase = idle

	if !c.pmc.StallDone {
		bits.Set(&c.status, hw.STATUS_DONE)
	}
}

// keyUpdate captures the leading plaintext of a message when key and IV
// saving is enabled, the next block key is saved to the key update slot and
// the next block IV, with its length, to the IV registers. Saved plaintext is
// not forwarded.
func (c *aesCore) keyUpdate(pt []byte) []byte {
	if c.regs[hw.AES_KUP_WR] == 0 || len(c.kup) >= kupSize {
		return pt
	}

	n := kupSize - len(c.kup)

	if n > len(pt) {
		n = len(pt)
	}

	c.kup = append(c.kup, pt[:n]...)

	if len(c.kup) == kupSize {
		kup := c.regs[hw.AES_KUP_WR]

		if bits.Get(&kup, hw.KUP_WR_KEY_SAVE, 1) == 1 {
			c.slots[hw.KEY_SEL_KUP_KEY] = append([]byte{}, c.kup[:32]...)
			c.zeroed &^= hw.KEY_CLEAR_KUP_KEY
		}

		if bits.Get(&kup, hw.KUP_WR_IV_SAVE, 1) == 1 {
			for i := 0; i < 4; i++ {
				c.regs[hw.AES_IV_0+uint32(i)*4] = binary.BigEndian.Uint32(c.kup[32+i*4:])
			}
		}
	}

	return pt[n:]
}

// maskedEncrypt implements split mode encryption of a masked IV and message,
// the result is returned with fresh random masks.
func (c *aesCore) maskedEncrypt(in []byte) {
	iv := make([]byte, 16)
	msg := make([]byte, 16)

	subtle.XORBytes(iv, in[0:16], in[16:32])
	subtle.XORBytes(msg, in[32:48], in[48:64])

	c.iv = iv[:12]
	ct := make([]byte, 16)
	c.keystream(c.iv).XORKeyStream(ct, msg)
	tag := c.seal(msg)

	out := make([]byte, splitSize)
	c.pmc.random(out[0:16])
	c.pmc.random(out[32:48])

	subtle.XORBytes(out[16:32], ct, out[0:16])
	subtle.XORBytes(out[48:64], tag, out[32:48])

	c.pmc.aesOutput(swapWords(out), false)
}

func (c *aesCore) keyClear(mask uint32) {
	if mask == 0 {
		return
	}

	for _, src := range keys.ByClearMask(mask) {
		d := keys.Lookup(src)

		switch {
		case src == keys.EXPANDED_KEYS:
			c.key = nil
			bits.Clear(&c.status, hw.STATUS_KEY_INIT_DONE)
		case d.Writable():
			for i := uint32(0); i < 8; i++ {
				c.regs[d.Offset+i*4] = 0
			}
		default:
			delete(c.slots, d.Select)
		}
	}

	if !c.pmc.StallKeyClear {
		c.zeroed |= mask
	}
}

func (c *aesCore) keyDecrypt() {
	if c.reset || c.phase != unwrap || c.regs[hw.AES_KEY_DEC] != hw.KEY_DEC_MASK || c.pmc.StallKeyDecrypt {
		return
	}

	src, ok := keys.BySelect(c.regs[hw.AES_KEY_SEL])

	if !ok || !keys.Lookup(src).DecryptSource {
		return
	}

	dst, ok := keys.ByDecryptSelect(c.regs[hw.AES_KEY_DEC_SEL])

	if !ok {
		return
	}

	black := c.fetch(keys.Lookup(src), c.keySize())
	red := make([]byte, len(black))
	c.keystream(c.iv).XORKeyStream(red, black)

	c.store(dst, red)
	c.phase = idle

	bits.Set(&c.status, hw.STATUS_BLK_KEY_DEC_DONE)
}

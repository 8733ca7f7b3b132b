// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"crypto/cipher"
	"errors"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
)

const (
	gcmNonceSize = 12
	gcmAlign     = 64
)

var errOpen = errors.New("aes: message authentication failed")

type gcmCipher struct {
	engine *AES
	mem    mem.Memory
	src    keys.Source
	size   keys.Size
}

// NewGCM returns a cipher.AEAD performing hardware accelerated AES-GCM with
// the key held by key source src. DMA buffers are allocated from m.
//
// Plaintext and ciphertext lengths must be multiples of 4 bytes, additional
// data is not supported. Seal panics on engine failures.
func NewGCM(a *AES, m mem.Memory, src keys.Source, size keys.Size) (c cipher.AEAD, err error) {
	if !size.Valid() || !keys.Valid(src) {
		return nil, ErrInvalidParameter
	}

	d := keys.Lookup(src)

	if !d.Encrypt && !d.Decrypt {
		return nil, ErrKeyNotAllowed
	}

	c = &gcmCipher{
		engine: a,
		mem:    m,
		src:    src,
		size:   size,
	}

	return
}

func (c *gcmCipher) NonceSize() int {
	return gcmNonceSize
}

func (c *gcmCipher) Overhead() int {
	return hw.GCM_TAG_SIZE
}

type buffers struct {
	m    mem.Memory
	addr []uint64
}

func (b *buffers) alloc(buf []byte) (addr uint64, err error) {
	// the engine requires a valid address even for empty messages
	if len(buf) == 0 {
		buf = make([]byte, hw.WORD_SIZE)
	}

	if addr, err = mem.Alloc(b.m, buf, gcmAlign); err != nil {
		return
	}

	b.addr = append(b.addr, addr)

	return
}

func (b *buffers) release() {
	for _, addr := range b.addr {
		b.m.Release(addr)
	}
}

func (c *gcmCipher) check(nonce []byte, text []byte, additionalData []byte) error {
	if len(nonce) != gcmNonceSize {
		return errors.New("aes: incorrect nonce length given to GCM")
	}

	if len(additionalData) != 0 {
		return errors.New("aes: additional data not supported")
	}

	if len(text)%hw.WORD_SIZE != 0 {
		return ErrInvalidLength
	}

	return nil
}

func (c *gcmCipher) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if err := c.check(nonce, plaintext, additionalData); err != nil {
		panic(err)
	}

	out, err := c.seal(nonce, plaintext)

	if err != nil {
		panic(err)
	}

	return append(dst, out...)
}

func (c *gcmCipher) seal(nonce []byte, plaintext []byte) (out []byte, err error) {
	b := &buffers{m: c.mem}
	defer b.release()

	iv := make([]byte, hw.GCM_TAG_SIZE)
	copy(iv, nonce)

	ivAddr, err := b.alloc(iv)

	if err != nil {
		return
	}

	in, err := b.alloc(plaintext)

	if err != nil {
		return
	}

	ct, err := b.alloc(plaintext)

	if err != nil {
		return
	}

	tag, err := b.alloc(make([]byte, hw.GCM_TAG_SIZE))

	if err != nil {
		return
	}

	if err = c.engine.EncryptInit(c.src, c.size, ivAddr); err != nil {
		return
	}

	if err = c.engine.EncryptData(in, ct, uint32(len(plaintext)), tag); err != nil {
		return
	}

	out = make([]byte, len(plaintext)+hw.GCM_TAG_SIZE)

	if err = c.mem.Read(ct, out[:len(plaintext)]); err != nil {
		return
	}

	err = c.mem.Read(tag, out[len(plaintext):])

	return
}

func (c *gcmCipher) Open(dst, nonce, ciphertext, additionalData []byte) (plaintext []byte, err error) {
	if len(ciphertext) < hw.GCM_TAG_SIZE {
		return nil, errOpen
	}

	n := len(ciphertext) - hw.GCM_TAG_SIZE

	if err = c.check(nonce, ciphertext[:n], additionalData); err != nil {
		return
	}

	b := &buffers{m: c.mem}
	defer b.release()

	iv := make([]byte, hw.GCM_TAG_SIZE)
	copy(iv, nonce)

	ivAddr, err := b.alloc(iv)

	if err != nil {
		return
	}

	in, err := b.alloc(ciphertext[:n])

	if err != nil {
		return
	}

	pt, err := b.alloc(make([]byte, n))

	if err != nil {
		return
	}

	tag, err := b.alloc(ciphertext[n:])

	if err != nil {
		return
	}

	if err = c.engine.DecryptInit(c.src, c.size, ivAddr); err != nil {
		return
	}

	if err = c.engine.DecryptData(in, pt, uint32(n), tag); err != nil {
		if errors.Is(err, ErrGcmTagMismatch) {
			return nil, errOpen
		}

		return
	}

	out := make([]byte, n)

	if err = c.mem.Read(pt, out); err != nil {
		return
	}

	// plaintext is released only after successful authentication
	ret, plaintext := sliceForAppend(dst, n)
	copy(plaintext, out)

	return ret, nil
}

func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}

	tail = head[len(in):]

	return
}

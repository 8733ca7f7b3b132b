// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// DecryptInit initializes the engine for GCM decryption with the key held by
// key source src. The IV buffer at physical address iv must hold 16 bytes,
// a 96-bit IV followed by four zero bytes.
func (a *AES) DecryptInit(src keys.Source, size keys.Size, iv uint64) error {
	return a.init(false, src, size, iv)
}

// EncryptInit initializes the engine for GCM encryption with the key held by
// key source src. The IV buffer at physical address iv must hold 16 bytes,
// a 96-bit IV followed by four zero bytes.
func (a *AES) EncryptInit(src keys.Source, size keys.Size, iv uint64) error {
	return a.init(true, src, size, iv)
}

func (a *AES) init(encrypt bool, src keys.Source, size keys.Size, iv uint64) (err error) {
	if err = a.idle(); err != nil {
		return &OpError{OpInit, err}
	}

	if !keys.Valid(src) || !size.Valid() || iv == 0 {
		return &OpError{OpInit, ErrInvalidParameter}
	}

	d := keys.Lookup(src)

	if encrypt && !d.Encrypt || !encrypt && !d.Decrypt {
		return &OpError{OpInit, fmt.Errorf("%w (%s)", ErrKeyNotAllowed, src)}
	}

	a.reset()

	defer func() {
		if err != nil {
			a.softReset()
		}
	}()

	mode := uint32(0)

	if encrypt {
		mode = 1 << hw.MODE_ENC_DEC_N
	}

	a.write(hw.AES_MODE, mode)

	if err = a.route(); err != nil {
		return
	}

	if err = a.keyLoad(d, size); err != nil {
		return
	}

	a.setDataSwap(true, csudma.SRC)
	defer a.setDataSwap(false, csudma.SRC)

	a.write(hw.AES_START_MSG, 1)

	a.DMA.Transfer(csudma.SRC, iv, hw.GCM_TAG_SIZE/hw.WORD_SIZE, false)

	if err = a.DMA.WaitForDone(csudma.SRC); err != nil {
		return &OpError{OpInit, err}
	}

	if encrypt {
		a.state = ENCRYPT_INITIALIZED
	} else {
		a.state = DECRYPT_INITIALIZED
	}

	return
}

// DecryptUpdate streams size bytes of ciphertext from physical address in to
// the engine, plaintext is written at physical address out unless it is
// NoDestination. The last flag marks the end of the message.
func (a *AES) DecryptUpdate(in uint64, out uint64, size uint32, last bool) error {
	return a.update(DECRYPT_INITIALIZED, in, out, size, last)
}

// EncryptUpdate streams size bytes of plaintext from physical address in to
// the engine, ciphertext is written at physical address out unless it is
// NoDestination. The last flag marks the end of the message.
func (a *AES) EncryptUpdate(in uint64, out uint64, size uint32, last bool) error {
	return a.update(ENCRYPT_INITIALIZED, in, out, size, last)
}

func (a *AES) update(state State, in uint64, out uint64, size uint32, last bool) (err error) {
	if a.state != state {
		return &OpError{OpUpdate, fmt.Errorf("%w (%s)", ErrInvalidState, a.state)}
	}

	if size%hw.WORD_SIZE != 0 {
		return &OpError{OpUpdate, ErrInvalidLength}
	}

	if in == 0 || out == 0 {
		return &OpError{OpUpdate, ErrInvalidParameter}
	}

	// a failed transfer leaves the message in an unknown state
	defer func() {
		if err != nil {
			a.abort()
		}
	}()

	dst := out != NoDestination
	channels := []csudma.Channel{csudma.SRC}

	if dst {
		channels = append(channels, csudma.DST)
	}

	for _, ch := range channels {
		a.DMA.SetByteSwap(ch, true)
		defer a.DMA.SetByteSwap(ch, false)
	}

	if err = a.route(); err != nil {
		return
	}

	words := size / hw.WORD_SIZE

	if dst {
		a.DMA.Transfer(csudma.DST, out, words, false)
	}

	a.DMA.Transfer(csudma.SRC, in, words, last)

	if err = a.DMA.WaitForDone(csudma.SRC); err != nil {
		return &OpError{OpUpdate, err}
	}

	if dst {
		if err = a.DMA.WaitForDone(csudma.DST); err != nil {
			return &OpError{OpUpdate, err}
		}
	}

	return
}

// DecryptFinal verifies the 16 bytes GCM tag at physical address tag against
// the decrypted message. The engine returns to the INITIALIZED state
// regardless of the outcome.
func (a *AES) DecryptFinal(tag uint64) (err error) {
	if err = a.final(DECRYPT_INITIALIZED); err != nil {
		return
	}

	defer a.abort()

	if tag == 0 {
		return &OpError{OpFinal, ErrInvalidParameter}
	}

	a.setDataSwap(true, csudma.SRC)
	defer a.setDataSwap(false, csudma.SRC)

	if err = a.route(); err != nil {
		return
	}

	a.DMA.Transfer(csudma.SRC, tag, hw.GCM_TAG_SIZE/hw.WORD_SIZE, false)

	if err = a.DMA.WaitForDone(csudma.SRC); err != nil {
		return &OpError{OpFinal, err}
	}

	if err = a.wait(hw.STATUS_DONE); err != nil {
		return &OpError{OpFinal, err}
	}

	if !reg.IsSet(a.Bus, a.Base+hw.AES_STATUS, hw.STATUS_GCM_TAG_PASS) {
		return &OpError{OpFinal, ErrGcmTagMismatch}
	}

	return
}

// EncryptFinal writes the 16 bytes GCM tag of the encrypted message at
// physical address tag. The engine returns to the INITIALIZED state
// regardless of the outcome.
func (a *AES) EncryptFinal(tag uint64) (err error) {
	if err = a.final(ENCRYPT_INITIALIZED); err != nil {
		return
	}

	defer a.abort()

	if tag == 0 {
		return &OpError{OpFinal, ErrInvalidParameter}
	}

	a.setDataSwap(true, csudma.DST)
	defer a.setDataSwap(false, csudma.DST)

	if err = a.route(); err != nil {
		return
	}

	a.DMA.Transfer(csudma.DST, tag, hw.GCM_TAG_SIZE/hw.WORD_SIZE, false)

	if err = a.DMA.WaitForDone(csudma.DST); err != nil {
		return &OpError{OpFinal, err}
	}

	if err = a.wait(hw.STATUS_DONE); err != nil {
		return &OpError{OpFinal, err}
	}

	return
}

// DecryptData decrypts a complete message and verifies its GCM tag.
func (a *AES) DecryptData(in uint64, out uint64, size uint32, tag uint64) (err error) {
	if err = a.DecryptUpdate(in, out, size, true); err != nil {
		return
	}

	return a.DecryptFinal(tag)
}

// EncryptData encrypts a complete message and writes its GCM tag.
func (a *AES) EncryptData(in uint64, out uint64, size uint32, tag uint64) (err error) {
	if err = a.EncryptUpdate(in, out, size, true); err != nil {
		return
	}

	return a.EncryptFinal(tag)
}

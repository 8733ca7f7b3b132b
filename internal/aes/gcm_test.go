// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/keys"
)

func TestGCM(t *testing.T) {
	e := newEnv(t, 0)

	key := pattern(16, 0xaa)
	require.NoError(t, e.aes.WriteKey(keys.USER_KEY_1, keys.KEY_SIZE_128, key))

	gcm, err := NewGCM(e.aes, e.pmc.Mem, keys.USER_KEY_1, keys.KEY_SIZE_128)
	require.NoError(t, err)

	assert.Equal(t, 12, gcm.NonceSize())
	assert.Equal(t, 16, gcm.Overhead())

	for _, n := range []int{0, 4, 16, 100} {
		nonce := pattern(12, byte(n))
		msg := pattern(n, 0x13)

		sealed := gcm.Seal([]byte("prefix"), nonce, msg, nil)

		ct, tag := sealRef(t, key, nonce, msg)
		assert.Equal(t, "prefix", string(sealed[:6]))
		assert.Equal(t, append(ct, tag...), sealed[6:])

		pt, err := gcm.Open(nil, nonce, sealed[6:], nil)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(msg, pt))

		sealed[len(sealed)-1] ^= 1

		_, err = gcm.Open(nil, nonce, sealed[6:], nil)
		assert.ErrorIs(t, err, errOpen)
	}

	// all buffers are returned to the region
	addr, err := e.pmc.Mem.Reserve(e.pmc.Mem.Size()-64, 64)
	require.NoError(t, err)
	e.pmc.Mem.Release(addr)
}

func TestGCMInvalid(t *testing.T) {
	e := newEnv(t, 0)

	_, err := NewGCM(e.aes, e.pmc.Mem, keys.EXPANDED_KEYS, keys.KEY_SIZE_256)
	assert.ErrorIs(t, err, ErrKeyNotAllowed)

	_, err = NewGCM(e.aes, e.pmc.Mem, keys.USER_KEY_0, keys.Size(512))
	assert.ErrorIs(t, err, ErrInvalidParameter)

	gcm, err := NewGCM(e.aes, e.pmc.Mem, keys.USER_KEY_0, keys.KEY_SIZE_256)
	require.NoError(t, err)

	nonce := make([]byte, 12)

	assert.Panics(t, func() { gcm.Seal(nil, nonce[:8], nil, nil) })
	assert.Panics(t, func() { gcm.Seal(nil, nonce, []byte{1, 2, 3}, nil) })
	assert.Panics(t, func() { gcm.Seal(nil, nonce, nil, []byte("aad")) })

	_, err = gcm.Open(nil, nonce, make([]byte, 8), nil)
	assert.ErrorIs(t, err, errOpen)

	_, err = gcm.Open(nil, nonce, make([]byte, 19), nil)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

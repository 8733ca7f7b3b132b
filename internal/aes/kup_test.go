// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package aes

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
)

func TestKeyUpdate(t *testing.T) {
	e := newEnv(t, 0)

	key := pattern(32, 0x01)
	nonce := pattern(12, 0x02)

	// block header: next key, next IV and next block length in words
	nextKey := pattern(32, 0x90)
	nextIV := pattern(12, 0x30)
	length := uint32(0x120)

	header := append(append([]byte{}, nextKey...), nextIV...)
	header = binary.LittleEndian.AppendUint32(header, length/hw.WORD_SIZE)
	body := pattern(32, 0x44)
	msg := append(append([]byte{}, header...), body...)

	ct, tag := sealRef(t, key, nonce, msg)

	require.NoError(t, e.aes.WriteKey(keys.USER_KEY_0, keys.KEY_SIZE_256, key))

	e.aes.CfgKupIv(true)
	defer e.aes.CfgKupIv(false)

	in := e.put(ct)
	out := e.put(make([]byte, len(body)))

	require.NoError(t, e.aes.DecryptInit(keys.USER_KEY_0, keys.KEY_SIZE_256, e.iv(nonce)))
	require.NoError(t, e.aes.DecryptUpdate(in, NoDestination, uint32(len(header)), false))
	require.NoError(t, e.aes.DecryptUpdate(in+uint64(len(header)), out, uint32(len(body)), true))
	require.NoError(t, e.aes.DecryptFinal(e.put(tag)))

	assert.Equal(t, body, e.get(out, len(body)))
	assert.Equal(t, length, e.aes.NextBlockLength())
	assert.Equal(t, nextKey, e.pmc.Key(keys.KUP_KEY))
	assert.Equal(t, binary.BigEndian.Uint32(nextIV), e.reg(hw.AES_IV_0))

	// the saved key is usable for the next block
	e.aes.CfgKupIv(false)

	pt := pattern(16, 0x55)
	buf := e.put(pt)
	tagAddr := e.put(make([]byte, hw.GCM_TAG_SIZE))

	require.NoError(t, e.aes.EncryptInit(keys.KUP_KEY, keys.KEY_SIZE_256, e.iv(nextIV)))
	require.NoError(t, e.aes.EncryptData(buf, buf, uint32(len(pt)), tagAddr))

	wantCt, wantTag := sealRef(t, nextKey, nextIV, pt)
	assert.Equal(t, wantCt, e.get(buf, len(pt)))
	assert.Equal(t, wantTag, e.get(tagAddr, hw.GCM_TAG_SIZE))
}

func TestCfgKupIv(t *testing.T) {
	e := newEnv(t, 0)

	e.aes.CfgKupIv(true)
	assert.Equal(t, uint32(1<<hw.KUP_WR_KEY_SAVE|1<<hw.KUP_WR_IV_SAVE), e.reg(hw.AES_KUP_WR))

	e.aes.CfgKupIv(false)
	assert.Zero(t, e.reg(hw.AES_KUP_WR))
}

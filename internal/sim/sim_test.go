// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

func TestProvision(t *testing.T) {
	a := New(0)
	b := New(0)
	c := New(0)

	require.NoError(t, a.Provision([]byte("seed")))
	require.NoError(t, b.Provision([]byte("seed")))
	require.NoError(t, c.Provision([]byte("other")))

	seen := make(map[string]keys.Source)

	for _, src := range Provisioned {
		key := a.Key(src)

		assert.Len(t, key, 32)
		assert.NotEqual(t, make([]byte, 32), key, src.String())
		assert.Equal(t, key, b.Key(src), src.String())
		assert.NotEqual(t, key, c.Key(src), src.String())

		prev, dup := seen[string(key)]
		assert.False(t, dup, "%s duplicates %s", src, prev)
		seen[string(key)] = src
	}

	// volatile sources are left empty
	assert.Equal(t, make([]byte, 32), a.Key(keys.BBRAM_RED_KEY))
	assert.Equal(t, make([]byte, 32), a.Key(keys.USER_KEY_0))
}

func TestSetKey(t *testing.T) {
	p := New(0)

	assert.Error(t, p.SetKey(keys.USER_KEY_0, make([]byte, 24)))
	assert.Error(t, p.SetKey(keys.EXPANDED_KEYS, make([]byte, 32)))

	key := bytes.Repeat([]byte{0xa5, 0x5a}, 16)
	require.NoError(t, p.SetKey(keys.USER_KEY_3, key))
	assert.Equal(t, key, p.Key(keys.USER_KEY_3))

	// user key registers hold the first key word last, and are write only
	assert.Zero(t, p.Read(hw.AES_BASE+hw.AES_USER_KEY_3_0))
	assert.Equal(t, uint32(0xa55aa55a), p.aes.regs[hw.AES_USER_KEY_3_0+7*4])
}

func TestAesStatus(t *testing.T) {
	p := New(0)

	assert.Equal(t, uint32(1), p.Read(hw.AES_BASE+hw.AES_SOFT_RST))
	assert.Zero(t, p.Read(hw.AES_BASE+hw.AES_STATUS))

	p.Write(hw.AES_BASE+hw.AES_SOFT_RST, 0)
	assert.NotZero(t, p.Read(hw.AES_BASE+hw.AES_STATUS)&(1<<hw.STATUS_READY))

	p.Write(hw.AES_BASE+hw.AES_CM_EN, 1)
	assert.NotZero(t, p.Read(hw.AES_BASE+hw.AES_STATUS)&(1<<hw.STATUS_CM_ENABLED))

	p.DpaCmDisabled = true
	p.Write(hw.AES_BASE+hw.AES_CM_EN, 0)
	assert.NotZero(t, p.Read(hw.AES_BASE+hw.AES_STATUS)&(1<<hw.STATUS_CM_ENABLED))
	assert.Equal(t, uint32(hw.EFUSE_DPA_CM_DIS_MASK), p.Read(hw.EFUSE_SECURITY_MISC_1))
}

func TestKeyLoad(t *testing.T) {
	p := New(0)
	require.NoError(t, p.SetKey(keys.PUF_KEY, bytes.Repeat([]byte{1}, 32)))

	load := func() bool {
		p.Write(hw.AES_BASE+hw.AES_KEY_SIZE, hw.KEY_SIZE_256_VAL)
		p.Write(hw.AES_BASE+hw.AES_KEY_SEL, hw.KEY_SEL_PUF_KEY)
		p.Write(hw.AES_BASE+hw.AES_KEY_LOAD, 1)

		return p.Read(hw.AES_BASE+hw.AES_STATUS)&(1<<hw.STATUS_KEY_INIT_DONE) != 0
	}

	// no key load while in reset
	assert.False(t, load())

	p.Write(hw.AES_BASE+hw.AES_SOFT_RST, 0)
	assert.True(t, load())
	assert.Equal(t, bytes.Repeat([]byte{1}, 32), p.aes.key)

	p.Write(hw.AES_BASE+hw.AES_SOFT_RST, 1)
	assert.Nil(t, p.aes.key)
}

func TestRouting(t *testing.T) {
	p := New(0)

	sw := &sss.Switch{Bus: p}
	sw.Init()

	require.NoError(t, sw.RouteForAes(sss.DMA1, sss.DMA1))
	assert.Equal(t, sss.AES, p.sinkOf(sss.DMA1))
	assert.Equal(t, sss.DMA1, p.sinkOf(sss.AES))
	assert.Equal(t, sss.AES, p.inputOf(sss.DMA1))
	assert.Equal(t, sss.INVALID, p.sinkOf(sss.DMA0))

	require.NoError(t, sw.RouteLoopback(0))
	assert.Equal(t, sss.DMA0, p.sinkOf(sss.DMA0))
	assert.Equal(t, sss.INVALID, p.sinkOf(sss.AES))
}

func TestUnroutedTransfer(t *testing.T) {
	p := New(0x100)

	addr := uint64(DefaultRegion)
	p.Write(hw.PMC_DMA0_BASE+hw.DMA_ADDR, uint32(addr))
	p.Write(hw.PMC_DMA0_BASE+hw.DMA_SIZE, 4<<hw.SIZE_SHIFT|1<<hw.SIZE_LAST)

	assert.Zero(t, p.Read(hw.PMC_DMA0_BASE+hw.DMA_I_STS))
}

func TestSwapWords(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	assert.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, swapWords(in))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, in)
	assert.Equal(t, in, swapWords(swapWords(in)))
}

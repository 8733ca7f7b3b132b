// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package selftest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/aes"
	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/keys"
	"github.com/f-secure-foundry/versal-secure/internal/sim"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

func engine(t *testing.T) (*sim.PMC, *aes.AES) {
	p := sim.New(0x2000)

	sw := &sss.Switch{Bus: p}
	sw.Init()

	dma := &csudma.DMA{Bus: p, Timeout: 64}
	require.NoError(t, dma.Init())

	a := &aes.AES{Bus: p, DMA: dma, SSS: sw, Timeout: 64}
	require.NoError(t, a.Init())

	return p, a
}

func TestAES(t *testing.T) {
	p, a := engine(t)

	require.NoError(t, AES(a, p.Mem))
	assert.Equal(t, aes.INITIALIZED, a.State())

	// all buffers are released
	addr, err := p.Mem.Reserve(p.Mem.Size()-64, 64)
	require.NoError(t, err)
	p.Mem.Release(addr)
}

func TestDPA(t *testing.T) {
	p, a := engine(t)

	require.NoError(t, a.SetDpaCm(true))
	require.NoError(t, DPA(a, p.Mem))
	assert.Equal(t, aes.INITIALIZED, a.State())
}

func TestRun(t *testing.T) {
	p, a := engine(t)

	require.NoError(t, Run(a, p.Mem))
	assert.Equal(t, aes.INITIALIZED, a.State())

	// engine is usable after a successful self test
	require.NoError(t, a.WriteKey(keys.USER_KEY_1, keys.KEY_SIZE_128, make([]byte, 16)))
}

func TestRunDpaCmDisabled(t *testing.T) {
	p, a := engine(t)

	p.DpaCmDisabled = true
	// masks would fail the DPA CM KAT if it ran
	p.Rand = bytes.NewReader(make([]byte, 1024))

	require.NoError(t, Run(a, p.Mem))
	assert.Equal(t, aes.INITIALIZED, a.State())
}

func TestConstantMask(t *testing.T) {
	for _, mask := range []byte{0x00, 0x5a} {
		p, a := engine(t)
		p.Rand = bytes.NewReader(bytes.Repeat([]byte{mask}, 1024))

		err := Run(a, p.Mem)

		assert.ErrorIs(t, err, AESDPACM_KAT_CHECK1_FAILED)
		assert.Equal(t, AESDPACM_KAT_CHECK1_FAILED, Code(err))
		assert.Equal(t, aes.UNINITIALIZED, a.State())
	}
}

func TestRepeatedMask(t *testing.T) {
	p, a := engine(t)

	// distinct masks within a run, repeated across runs
	rnd := append(bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 16)...)
	p.Rand = bytes.NewReader(append(rnd, rnd...))

	assert.ErrorIs(t, DPA(a, p.Mem), AESDPACM_KAT_CHECK1_FAILED)

	// tag mask of the first run reused as ciphertext mask of the second
	rnd = append(bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 16)...)
	rnd = append(rnd, bytes.Repeat([]byte{2}, 16)...)
	rnd = append(rnd, bytes.Repeat([]byte{3}, 16)...)
	p.Rand = bytes.NewReader(rnd)

	assert.ErrorIs(t, DPA(a, p.Mem), AESDPACM_KAT_CHECK2_FAILED)

	rnd = append(bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 16)...)
	rnd = append(rnd, bytes.Repeat([]byte{3}, 16)...)
	rnd = append(rnd, bytes.Repeat([]byte{2}, 16)...)
	p.Rand = bytes.NewReader(rnd)

	assert.ErrorIs(t, DPA(a, p.Mem), AESDPACM_KAT_CHECK3_FAILED)
}

func TestKatFailures(t *testing.T) {
	for _, tc := range []struct {
		name  string
		stall func(*sim.PMC)
		code  Error
	}{
		{"key load", func(p *sim.PMC) { p.StallKeyLoad = true }, AES_KAT_DECRYPT_INIT_FAILED},
		{"done", func(p *sim.PMC) { p.StallDone = true }, AES_KAT_GCM_TAG_MISMATCH},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, a := engine(t)
			tc.stall(p)

			err := Run(a, p.Mem)

			assert.ErrorIs(t, err, tc.code)
			assert.ErrorIs(t, err, aes.ErrTimeout)
			assert.Equal(t, tc.code, Code(err))
			assert.Equal(t, aes.UNINITIALIZED, a.State())
			assert.ErrorIs(t, a.Init(), aes.ErrLockedOut)
		})
	}
}

func TestDpaFailures(t *testing.T) {
	p, a := engine(t)

	p.StallKeyLoad = true
	assert.Equal(t, AESDPACM_KAT_KEYLOAD_FAILED, Code(DPA(a, p.Mem)))

	p.StallKeyLoad = false
	p.StallDone = true
	assert.Equal(t, AESDPACM_KAT_FAILED, Code(DPA(a, p.Mem)))

	a.Lockout()
	assert.Equal(t, AESDPACM_KAT_FAILED, Code(DPA(a, p.Mem)))
}

func TestDataMismatch(t *testing.T) {
	p, a := engine(t)

	saved := katPlaintext[0]
	katPlaintext[0] ^= 1
	defer func() { katPlaintext[0] = saved }()

	assert.ErrorIs(t, AES(a, p.Mem), AES_KAT_DATA_MISMATCH)
}

func TestWriteKeyFailure(t *testing.T) {
	p, a := engine(t)
	a.Lockout()

	assert.Equal(t, AES_KAT_WRITE_KEY_FAILED, Code(AES(a, p.Mem)))
	assert.Equal(t, AESDPACM_KAT_WRITE_KEY_FAILED, dpaCode(&aes.OpError{Op: aes.OpWriteKey, Err: aes.ErrInvalidState}))
	assert.Equal(t, AESDPACM_SSS_CFG_FAILED, dpaCode(&aes.OpError{Op: aes.OpRoute, Err: sss.ErrInvalidRoute}))
}

func TestError(t *testing.T) {
	assert.Equal(t, Error(0x50), AESDPACM_KAT_CHECK5_FAILED)
	assert.Equal(t, "AES KAT GCM tag mismatch (0x45)", AES_KAT_GCM_TAG_MISMATCH.Error())
	assert.Equal(t, "self test error 0x99", Error(0x99).Error())
	assert.Zero(t, Code(aes.ErrTimeout))
}

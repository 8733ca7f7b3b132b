// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package csudma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
	"github.com/f-secure-foundry/versal-secure/internal/sim"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

func setup(t *testing.T, index int) (*sim.PMC, *DMA, *sss.Switch) {
	p := sim.New(0x4000)

	sw := &sss.Switch{Bus: p}
	sw.Init()

	d := &DMA{Index: index, Bus: p, Timeout: 64}
	require.NoError(t, d.Init())

	return p, d, sw
}

func pattern(n int) []byte {
	buf := make([]byte, n)

	for i := range buf {
		buf[i] = byte(i*13 + 5)
	}

	return buf
}

func TestInit(t *testing.T) {
	d := &DMA{Index: 2, Bus: sim.New(0)}
	assert.Error(t, d.Init())

	_, d, _ = setup(t, 1)
	assert.Equal(t, uint32(hw.PMC_DMA1_BASE), d.Base)
	assert.Equal(t, 64, d.Timeout)

	d = &DMA{Bus: sim.New(0)}
	require.NoError(t, d.Init())
	assert.Equal(t, uint32(hw.PMC_DMA0_BASE), d.Base)
	assert.Equal(t, hw.TIMEOUT_MAX, d.Timeout)
}

func TestChannelString(t *testing.T) {
	assert.Equal(t, "SRC", SRC.String())
	assert.Equal(t, "DST", DST.String())
}

func TestByteSwap(t *testing.T) {
	_, d, _ := setup(t, 0)

	d.SetByteSwap(DST, true)
	assert.True(t, d.ByteSwap(DST))
	assert.False(t, d.ByteSwap(SRC))

	d.SetByteSwap(DST, false)
	assert.False(t, d.ByteSwap(DST))
	assert.False(t, d.Busy(SRC))
}

func TestCopy(t *testing.T) {
	for _, index := range []int{0, 1} {
		p, d, sw := setup(t, index)
		l := &Loopback{DMA: d, SSS: sw}

		data := pattern(256)

		src, err := mem.Alloc(p.Mem, data, 4)
		require.NoError(t, err)

		dst, err := p.Mem.Reserve(len(data), 4)
		require.NoError(t, err)

		require.NoError(t, l.Copy(dst, src, uint32(len(data))))

		out := make([]byte, len(data))
		require.NoError(t, p.Mem.Read(dst, out))
		assert.Equal(t, data, out)

		// swapping on one side only reverses each word
		d.SetByteSwap(SRC, true)
		require.NoError(t, l.Copy(dst, src, 8))
		d.SetByteSwap(SRC, false)

		require.NoError(t, p.Mem.Read(dst, out[:8]))
		assert.Equal(t, []byte{data[3], data[2], data[1], data[0], data[7], data[6], data[5], data[4]}, out[:8])

		assert.Error(t, l.Copy(dst, src, 6))
		assert.Error(t, l.Copy(dst, src, 0))
	}
}

func TestCopyTimeout(t *testing.T) {
	p, d, sw := setup(t, 0)
	l := &Loopback{DMA: d, SSS: sw}

	dst, err := p.Mem.Reserve(16, 4)
	require.NoError(t, err)

	// source outside of the DMA window
	err = l.Copy(dst, 0x1000, 16)
	assert.ErrorContains(t, err, "DMA0 SRC")
}

func TestSHA3(t *testing.T) {
	for _, n := range []int{0, 4, 136, 1000} {
		p, d, sw := setup(t, n%2)

		s := &SHA3{Bus: p, DMA: d, SSS: sw, Timeout: 64}
		s.Init()

		data := pattern(n + 4)[:n]
		addr, err := mem.Alloc(p.Mem, pattern(n+4), 4)
		require.NoError(t, err)

		digest, err := s.Sum(addr, uint32(n))
		require.NoError(t, err)

		want := sha3.Sum384(data)
		assert.Equal(t, want[:], digest, "length %d", n)
		assert.True(t, hashRouted(t, sw.Value(), d.Index))
	}
}

// hashRouted reports whether cfg routes CSU DMA index into the SHA engine.
func hashRouted(t *testing.T, cfg uint32, index int) bool {
	ep, err := sss.DmaEndpoint(index)
	require.NoError(t, err)

	return sss.Decode(cfg)[sss.SHA] == ep
}

func TestSHA3Invalid(t *testing.T) {
	p, d, sw := setup(t, 0)

	s := &SHA3{Bus: p, DMA: d, SSS: sw}
	s.Init()

	assert.Equal(t, uint32(hw.SHA_BASE), s.Base)

	_, err := s.Sum(0, 3)
	assert.Error(t, err)
}

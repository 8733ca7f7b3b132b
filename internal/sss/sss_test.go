// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
)

type regs map[uint32]uint32

func (r regs) Read(addr uint32) uint32       { return r[addr] }
func (r regs) Write(addr uint32, val uint32) { r[addr] = val }

func newSwitch() (*Switch, regs) {
	r := regs{}
	sw := &Switch{Bus: r}
	sw.Init()

	return sw, r
}

func TestRouteForAes(t *testing.T) {
	for _, tc := range []struct {
		in, out Endpoint
		want    uint32
	}{
		{DMA0, DMA0, 0x0000e006},
		{DMA1, DMA1, 0x00005070},
		{DMA0, DMA1, 0x0000e070},
		{DMA1, DMA0, 0x00005006},
	} {
		sw, r := newSwitch()

		require.NoError(t, sw.RouteForAes(tc.in, tc.out), "%s -> %s", tc.in, tc.out)
		assert.Equal(t, tc.want, r[hw.SSS_CFG], "%s -> %s", tc.in, tc.out)
		assert.Equal(t, tc.want, sw.Value())
	}
}

func TestRouteForAesInvalidPeer(t *testing.T) {
	sw, r := newSwitch()
	r[hw.SSS_CFG] = 0xcafe

	for _, e := range []Endpoint{AES, SHA, SBI, INVALID, Endpoint(9), Endpoint(-1)} {
		assert.ErrorIs(t, sw.RouteForAes(e, DMA0), ErrInvalidRoute, e.String())
		assert.ErrorIs(t, sw.RouteForAes(DMA0, e), ErrInvalidRoute, e.String())
	}

	// allowed peers without a hardware route code
	assert.ErrorIs(t, sw.RouteForAes(PZI, DMA0), ErrInvalidRoute)
	assert.ErrorIs(t, sw.RouteForAes(DMA0, PTPI), ErrInvalidRoute)

	assert.Equal(t, uint32(0xcafe), r[hw.SSS_CFG])
}

func TestRouteForHash(t *testing.T) {
	sw, r := newSwitch()

	require.NoError(t, sw.RouteForHash(0))
	assert.Equal(t, uint32(0x000c0000), r[hw.SSS_CFG])

	require.NoError(t, sw.RouteForHash(1))
	assert.Equal(t, uint32(0x00070000), r[hw.SSS_CFG])

	assert.ErrorIs(t, sw.RouteForHash(2), ErrInvalidRoute)
}

func TestRouteLoopback(t *testing.T) {
	sw, r := newSwitch()

	require.NoError(t, sw.RouteLoopback(0))
	assert.Equal(t, uint32(0x0000000d), r[hw.SSS_CFG])

	require.NoError(t, sw.RouteLoopback(1))
	assert.Equal(t, uint32(0x00000090), r[hw.SSS_CFG])

	assert.ErrorIs(t, sw.RouteLoopback(-1), ErrInvalidRoute)
}

func TestRedundancyFault(t *testing.T) {
	orig := lanes
	defer func() { lanes = orig }()

	calls := 0

	// corrupt the second evaluation only
	lanes = func(resource, input, output Endpoint) (uint32, uint32) {
		in, out := orig(resource, input, output)
		calls++

		// outside every lane computed by these routes
		if calls%2 == 0 {
			out ^= 1 << 31
		}

		return in, out
	}

	sw, r := newSwitch()
	r[hw.SSS_CFG] = 0x12345678

	assert.ErrorIs(t, sw.RouteForAes(DMA0, DMA0), ErrInvalidRoute)
	assert.ErrorIs(t, sw.RouteForHash(1), ErrInvalidRoute)
	assert.ErrorIs(t, sw.RouteLoopback(0), ErrInvalidRoute)

	assert.Equal(t, uint32(0x12345678), r[hw.SSS_CFG])
	assert.Equal(t, 6, calls)
}

func TestRedundancyOverlap(t *testing.T) {
	orig := lanes
	defer func() { lanes = orig }()

	calls := 0

	// a fault on bits already set in the other lane is masked by the OR
	lanes = func(resource, input, output Endpoint) (uint32, uint32) {
		in, out := orig(resource, input, output)
		calls++

		if calls%2 == 0 {
			out ^= 1 << 2
		}

		return in, out
	}

	sw, r := newSwitch()

	require.NoError(t, sw.RouteLoopback(0))
	assert.Equal(t, uint32(0xd), r[hw.SSS_CFG])
}

func TestDecode(t *testing.T) {
	sw, _ := newSwitch()

	require.NoError(t, sw.RouteForAes(DMA1, DMA0))

	inputs := Decode(sw.Value())

	assert.Equal(t, DMA1, inputs[AES])
	assert.Equal(t, AES, inputs[DMA0])
	assert.Equal(t, INVALID, inputs[DMA1])
	assert.Equal(t, INVALID, inputs[SHA])
}

func TestCode(t *testing.T) {
	assert.Equal(t, uint8(0x0e), Code(AES, DMA0))
	assert.Equal(t, uint8(0x07), Code(DMA1, AES))
	assert.Zero(t, Code(PZI, DMA0))
	assert.Zero(t, Code(Endpoint(12), DMA0))
}

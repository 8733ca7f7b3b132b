// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux && !tamago
// +build linux,!tamago

package reg

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// physical memory stand-in, backed by a regular file
func memFile(t *testing.T, size int64) string {
	path := filepath.Join(t.TempDir(), "mem")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	require.NoError(t, os.Truncate(path, size))

	return path
}

func TestDevMem(t *testing.T) {
	path := memFile(t, 2*windowSize)

	d, err := OpenDevMem(path, 0x10004, 0x10008)
	require.NoError(t, err)
	assert.Len(t, d.windows, 1)

	d.Write(0x10010, 0xa55aa55a)
	Set(d, 0x10014, 3)

	assert.Equal(t, uint32(0xa55aa55a), d.Read(0x10010))
	assert.True(t, IsSet(d, 0x10014, 3))

	require.NoError(t, d.Close())

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xa55aa55a), binary.LittleEndian.Uint32(buf[0x10010:]))
	assert.Equal(t, uint32(1<<3), binary.LittleEndian.Uint32(buf[0x10014:]))
}

func TestDevMemInvalidAccess(t *testing.T) {
	d, err := OpenDevMem(memFile(t, windowSize), 0)
	require.NoError(t, err)

	// outside the mapped window
	d.Write(0x20000, 1)
	assert.Zero(t, d.Read(0x20000))
	// unaligned
	assert.Zero(t, d.Read(0x2))

	err = d.Close()
	assert.ErrorContains(t, err, "invalid register access 0x20000")
}

func TestDevMemOpen(t *testing.T) {
	_, err := OpenDevMem(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	d, err := OpenDevMem(memFile(t, windowSize))
	require.NoError(t, err)

	_, err = d.Map(0x10, windowSize)
	assert.ErrorContains(t, err, "unaligned base")

	assert.NoError(t, d.Close())
}

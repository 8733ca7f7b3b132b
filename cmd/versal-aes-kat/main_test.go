// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/versal-secure/internal/selftest"
)

const testConfig = `
devices:
  - name: alpha
    seed: first
    dma: 1
    timeout: 512
  - seed: second
    dpa_cm_disabled: true
    region: 0x8000
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))

	c, err := loadConfig(path)
	require.NoError(t, err)
	require.Len(t, c.Devices, 2)

	assert.Equal(t, Device{Name: "alpha", Seed: "first", DMA: 1, Timeout: 512, Region: defaultRegionSize}, c.Devices[0])
	assert.Equal(t, Device{Name: "pmc1", Seed: "second", DpaCmDisabled: true, Region: 0x8000}, c.Devices[1])

	for _, bad := range []string{
		"devices: [{dma: 0}]",
		"devices: [{seed: x, dma: 2}]",
		"devices: {",
	} {
		require.NoError(t, os.WriteFile(path, []byte(bad), 0600))

		_, err = loadConfig(path)
		assert.Error(t, err, bad)
	}

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig(3)

	require.Len(t, c.Devices, 3)
	assert.Equal(t, "pmc2", c.Devices[2].Name)
	assert.Equal(t, 1, c.Devices[1].DMA)
	assert.NotEqual(t, c.Devices[0].Seed, c.Devices[1].Seed)
}

func TestRunDevice(t *testing.T) {
	for _, d := range defaultConfig(2).Devices {
		assert.NoError(t, runDevice(d))
	}

	// DMA window too small for the test vectors
	d := Device{Name: "small", Seed: "x", Region: 0x40}
	err := runDevice(d)

	assert.Error(t, err)
	assert.NotZero(t, selftest.Code(err))
}

func TestRunSimulation(t *testing.T) {
	opts.config = ""
	opts.devices = 4

	assert.NoError(t, runSimulation())

	opts.devices = 0
	assert.Error(t, runSimulation())
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultRegionSize = 0x10000

// Device describes a simulated PMC instance.
type Device struct {
	Name string `yaml:"name"`
	// Seed is the provisioning secret from which the device non volatile
	// keys are derived.
	Seed string `yaml:"seed"`
	// DMA is the CSU DMA controller index used by the engine.
	DMA int `yaml:"dma"`
	// Timeout is the driver poll budget, zero selects the default.
	Timeout int `yaml:"timeout"`
	// DpaCmDisabled models a device with the DPA countermeasure fused off.
	DpaCmDisabled bool `yaml:"dpa_cm_disabled"`
	// Region is the DMA window size in bytes.
	Region int `yaml:"region"`
}

// Config represents the provisioning file.
type Config struct {
	Devices []Device `yaml:"devices"`
}

func loadConfig(path string) (c *Config, err error) {
	buf, err := os.ReadFile(path)

	if err != nil {
		return
	}

	c = &Config{}

	if err = yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("invalid configuration %s, %v", path, err)
	}

	for i := range c.Devices {
		if err = c.Devices[i].check(i); err != nil {
			return nil, fmt.Errorf("invalid configuration %s, %v", path, err)
		}
	}

	return
}

// defaultConfig returns n devices alternating between CSU DMA controllers.
func defaultConfig(n int) *Config {
	c := &Config{}

	for i := 0; i < n; i++ {
		d := Device{
			Seed: fmt.Sprintf("versal-aes-kat-%d", i),
			DMA:  i % 2,
		}

		d.check(i)
		c.Devices = append(c.Devices, d)
	}

	return c
}

func (d *Device) check(i int) error {
	if d.Name == "" {
		d.Name = fmt.Sprintf("pmc%d", i)
	}

	if d.Seed == "" {
		return fmt.Errorf("%s: missing seed", d.Name)
	}

	if d.DMA != 0 && d.DMA != 1 {
		return fmt.Errorf("%s: invalid CSU DMA index %d", d.Name, d.DMA)
	}

	if d.Region == 0 {
		d.Region = defaultRegionSize
	}

	return nil
}

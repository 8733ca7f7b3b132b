// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sss implements a driver for the Versal PMC secure stream switch.
//
// The switch is a crossbar connecting the CSU DMA channels, the AES and SHA
// engines and the external interfaces. Its configuration register declares,
// for every sink, the source feeding it in a 4-bit lane.
package sss

import (
	"errors"
	"fmt"

	"github.com/f-secure-foundry/tamago/bits"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

// ErrInvalidRoute is returned when an endpoint cannot be connected, or when
// the redundant route computation disagrees with the primary one.
var ErrInvalidRoute = errors.New("invalid secure stream switch route")

// Endpoint represents a secure stream switch port.
type Endpoint int

// Secure stream switch ports, the value is also the port lane index in the
// configuration register.
const (
	DMA0 Endpoint = iota
	DMA1
	PTPI
	AES
	SHA
	SBI
	PZI
	INVALID
)

const numEndpoints = 8

// matrix[resource][input] holds the code selecting input as the data source
// of resource, zero means no route.
var matrix = [numEndpoints][numEndpoints]uint8{
	//       DMA0  DMA1  PTPI  AES   SHA   SBI   PZI   INVALID
	DMA0:    {0x0d, 0x00, 0x00, 0x06, 0x00, 0x0b, 0x03, 0x00},
	DMA1:    {0x00, 0x09, 0x00, 0x07, 0x00, 0x0e, 0x04, 0x00},
	PTPI:    {0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	AES:     {0x0e, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	SHA:     {0x0c, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	SBI:     {0x05, 0x0b, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	PZI:     {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	INVALID: {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
}

var names = [numEndpoints]string{"DMA0", "DMA1", "PTPI", "AES", "SHA", "SBI", "PZI", "INVALID"}

func (e Endpoint) String() string {
	if !e.valid() {
		return fmt.Sprintf("Endpoint(%d)", int(e))
	}

	return names[e]
}

func (e Endpoint) valid() bool {
	return e >= DMA0 && e <= INVALID
}

// Code returns the route code selecting input as source for resource, zero
// when the route does not exist.
func Code(resource Endpoint, input Endpoint) uint8 {
	if !resource.valid() || !input.valid() {
		return 0
	}

	return matrix[resource][input]
}

// DmaEndpoint returns the switch port of CSU DMA channel index (0 or 1).
func DmaEndpoint(index int) (Endpoint, error) {
	switch index {
	case 0:
		return DMA0, nil
	case 1:
		return DMA1, nil
	default:
		return INVALID, fmt.Errorf("%w: DMA%d", ErrInvalidRoute, index)
	}
}

// lanes computes the configuration fields binding input to resource, and
// resource to output. It is evaluated twice for each configuration and
// replaced in tests to inject faults in one of the evaluations.
var lanes = func(resource, input, output Endpoint) (in uint32, out uint32) {
	in = uint32(matrix[resource][input]) << (hw.SSS_CFG_LEN_BITS * uint32(resource))
	out = uint32(matrix[output][resource]) << (hw.SSS_CFG_LEN_BITS * uint32(output))
	return
}

// Switch represents the secure stream switch instance.
type Switch struct {
	// Address is the configuration register address, defaults to
	// hw.SSS_CFG.
	Address uint32
	// Bus is the register space.
	Bus reg.Bus
}

// Init initializes the switch driver.
func (sw *Switch) Init() {
	if sw.Address == 0 {
		sw.Address = hw.SSS_CFG
	}
}

// Value returns the current switch configuration.
func (sw *Switch) Value() uint32 {
	return sw.Bus.Read(sw.Address)
}

// RouteForAes configures the switch so that input feeds the AES engine and
// the AES engine feeds output.
func (sw *Switch) RouteForAes(input Endpoint, output Endpoint) error {
	if !aesPeer(input) || !aesPeer(output) {
		return fmt.Errorf("%w: %s -> AES -> %s", ErrInvalidRoute, input, output)
	}

	return sw.configure(AES, input, output)
}

// RouteForHash configures CSU DMA channel index to feed the SHA engine.
func (sw *Switch) RouteForHash(index int) error {
	input, err := DmaEndpoint(index)

	if err != nil {
		return err
	}

	return sw.configure(SHA, input, INVALID)
}

// RouteLoopback configures CSU DMA channel index to feed back into itself.
func (sw *Switch) RouteLoopback(index int) error {
	resource, err := DmaEndpoint(index)

	if err != nil {
		return err
	}

	return sw.configure(resource, resource, INVALID)
}

func aesPeer(e Endpoint) bool {
	switch e {
	case DMA0, DMA1, PTPI, PZI:
		return true
	default:
		return false
	}
}

func (sw *Switch) configure(resource, input, output Endpoint) error {
	if Code(resource, input) == 0 {
		return fmt.Errorf("%w: no route %s -> %s", ErrInvalidRoute, input, resource)
	}

	if output != INVALID && Code(output, resource) == 0 {
		return fmt.Errorf("%w: no route %s -> %s", ErrInvalidRoute, resource, output)
	}

	in, out := lanes(resource, input, output)
	inRedundant, outRedundant := lanes(resource, input, output)

	cfg := in | out

	if cfg^(inRedundant|outRedundant) != 0 {
		return fmt.Errorf("%w: route computation mismatch", ErrInvalidRoute)
	}

	sw.Bus.Write(sw.Address, cfg)

	return nil
}

// Decode returns, for every sink lane of a configuration value, the
// endpoint selected as its input. Sinks without a route map to INVALID.
func Decode(cfg uint32) (inputs [numEndpoints]Endpoint) {
	for sink := DMA0; sink < INVALID; sink++ {
		inputs[sink] = INVALID
		code := bits.Get(&cfg, int(sink)*hw.SSS_CFG_LEN_BITS, hw.SSS_CFG_MASK)

		if code == 0 {
			continue
		}

		for input := DMA0; input < INVALID; input++ {
			if uint32(matrix[sink][input]) == code {
				inputs[sink] = input
				break
			}
		}
	}

	inputs[INVALID] = INVALID

	return
}

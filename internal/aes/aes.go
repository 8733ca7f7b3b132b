// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package aes implements a driver for the Versal PMC AES-GCM engine.
//
// The engine processes one message at a time, with data streamed between
// memory and the engine by a CSU DMA controller through the secure stream
// switch. Key material never transits through software except for keys
// written by the caller to user writable key sources.
//
// Every exit from an in-progress operation, successful or not, issues an
// engine soft reset.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, or under
// Linux through /dev/mem, see https://github.com/f-secure-foundry/tamago.
package aes

import (
	"errors"
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/hw"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

// NoDestination can be passed as output address to an update operation to
// consume input without writing engine output to memory.
const NoDestination uint64 = 0xffffffff

// Errors
var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrInvalidLength     = errors.New("invalid length")
	ErrInvalidState      = errors.New("invalid engine state")
	ErrKeyNotAllowed     = errors.New("key source not allowed for operation")
	ErrTimeout           = reg.ErrTimeout
	ErrGcmTagMismatch    = errors.New("GCM tag mismatch")
	ErrKeyClear          = errors.New("key clear error")
	ErrDpaCmNotSupported = errors.New("DPA countermeasure not supported")
	ErrDpaCmConfig       = errors.New("DPA countermeasure configuration mismatch")
	ErrLockedOut         = errors.New("engine locked out")
)

// OpError is the error type returned by engine operations, it describes the
// failing operation stage.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return "aes: " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Operation stages reported in OpError.
const (
	OpInit          = "init"
	OpUpdate        = "update"
	OpFinal         = "final"
	OpWriteKey      = "write key"
	OpKeyLoad       = "key load"
	OpKeyZero       = "key zero"
	OpKeyDecrypt    = "key decrypt"
	OpRoute         = "route"
	OpDpaCm         = "DPA countermeasure"
	OpMaskedEncrypt = "masked encrypt"
)

// State represents the engine state.
type State int

// Engine states
const (
	UNINITIALIZED State = iota
	INITIALIZED
	DECRYPT_INITIALIZED
	ENCRYPT_INITIALIZED
)

func (s State) String() string {
	switch s {
	case UNINITIALIZED:
		return "UNINITIALIZED"
	case INITIALIZED:
		return "INITIALIZED"
	case DECRYPT_INITIALIZED:
		return "DECRYPT_INITIALIZED"
	case ENCRYPT_INITIALIZED:
		return "ENCRYPT_INITIALIZED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AES represents the AES-GCM engine instance. An instance must be owned by a
// single goroutine for the full duration of each operation.
type AES struct {
	// Base is the engine register base, defaults to hw.AES_BASE
	Base uint32
	// Bus is the register space
	Bus reg.Bus
	// DMA is the CSU DMA controller streaming engine data
	DMA *csudma.DMA
	// SSS is the secure stream switch
	SSS *sss.Switch
	// Timeout is the busy poll budget of engine waits, defaults to
	// hw.TIMEOUT_MAX
	Timeout int

	state  State
	locked bool
}

// Init initializes the AES engine driver, it fails once the engine has been
// locked out.
func (a *AES) Init() (err error) {
	if a.locked {
		return &OpError{OpInit, ErrLockedOut}
	}

	if a.Bus == nil || a.DMA == nil || a.SSS == nil {
		return &OpError{OpInit, ErrInvalidParameter}
	}

	if a.Base == 0 {
		a.Base = hw.AES_BASE
	}

	if a.Timeout <= 0 {
		a.Timeout = hw.TIMEOUT_MAX
	}

	a.state = INITIALIZED

	return
}

// State returns the engine state.
func (a *AES) State() State {
	return a.state
}

// Lockout resets the engine and prevents any further operation, including
// re-initialization, it is meant to be invoked when a self test fails.
func (a *AES) Lockout() {
	if a.Bus != nil {
		a.softReset()
	}

	a.state = UNINITIALIZED
	a.locked = true
}

func (a *AES) write(off uint32, val uint32) {
	a.Bus.Write(a.Base+off, val)
}

func (a *AES) softReset() {
	a.write(hw.AES_SOFT_RST, 1)
}

// reset pulses the engine soft reset, leaving it out of reset.
func (a *AES) reset() {
	a.write(hw.AES_SOFT_RST, 1)
	a.write(hw.AES_SOFT_RST, 0)
}

// abort terminates the operation in progress.
func (a *AES) abort() {
	a.softReset()
	a.state = INITIALIZED
}

func (a *AES) wait(pos int) error {
	return reg.Wait(a.Bus, a.Base+hw.AES_STATUS, pos, 1, 1, a.Timeout)
}

func (a *AES) route() (err error) {
	ep, err := sss.DmaEndpoint(a.DMA.Index)

	if err != nil {
		return &OpError{OpRoute, err}
	}

	if err = a.SSS.RouteForAes(ep, ep); err != nil {
		return &OpError{OpRoute, err}
	}

	return
}

// setDataSwap configures the engine and DMA channel byte swapping.
func (a *AES) setDataSwap(enable bool, channels ...csudma.Channel) {
	var val uint32

	if enable {
		val = 1
	}

	a.write(hw.AES_DATA_SWAP, val)

	for _, ch := range channels {
		a.DMA.SetByteSwap(ch, enable)
	}
}

// final checks that a Final call matches the operation in progress, a
// mismatched call still terminates it.
func (a *AES) final(state State) error {
	if a.state == state {
		return nil
	}

	err := &OpError{OpFinal, fmt.Errorf("%w (%s)", ErrInvalidState, a.state)}

	if a.state == DECRYPT_INITIALIZED || a.state == ENCRYPT_INITIALIZED {
		a.abort()
	}

	return err
}

func (a *AES) idle() error {
	if a.state != INITIALIZED {
		return fmt.Errorf("%w (%s)", ErrInvalidState, a.state)
	}

	return nil
}

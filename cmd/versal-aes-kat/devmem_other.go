// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linux && !tamago
// +build !linux,!tamago

package main

import (
	"errors"
	"io"

	"github.com/f-secure-foundry/versal-secure/internal/mem"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
)

func openHardware(_ string, _ uint64, _ int) (bus reg.Bus, m mem.Memory, closer io.Closer, err error) {
	return nil, nil, nil, errors.New("hardware access is not supported on this platform")
}

// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package selftest implements the known answer tests run on the AES-GCM
// engine before it is trusted with real key material.
//
// A failure of any test is fatal: Run locks the engine out so that it can
// no longer be used until the next reset.
package selftest

import (
	"errors"
	"fmt"
	"log"

	"github.com/f-secure-foundry/versal-secure/internal/aes"
	"github.com/f-secure-foundry/versal-secure/internal/mem"
)

// Error represents a self test failure code.
type Error uint32

// Self test failure codes
const (
	AES_KAT_WRITE_KEY_FAILED Error = 0x43 + iota
	AES_KAT_DECRYPT_INIT_FAILED
	AES_KAT_GCM_TAG_MISMATCH
	AES_KAT_DATA_MISMATCH
	AES_KAT_FAILED
	AESDPACM_KAT_WRITE_KEY_FAILED
	AESDPACM_KAT_KEYLOAD_FAILED
	AESDPACM_SSS_CFG_FAILED
	AESDPACM_KAT_FAILED
	AESDPACM_KAT_CHECK1_FAILED
	AESDPACM_KAT_CHECK2_FAILED
	AESDPACM_KAT_CHECK3_FAILED
	AESDPACM_KAT_CHECK4_FAILED
	AESDPACM_KAT_CHECK5_FAILED
)

var descriptions = map[Error]string{
	AES_KAT_WRITE_KEY_FAILED:      "AES KAT key write failed",
	AES_KAT_DECRYPT_INIT_FAILED:   "AES KAT decrypt initialization failed",
	AES_KAT_GCM_TAG_MISMATCH:      "AES KAT GCM tag mismatch",
	AES_KAT_DATA_MISMATCH:         "AES KAT data mismatch",
	AES_KAT_FAILED:                "AES KAT failed",
	AESDPACM_KAT_WRITE_KEY_FAILED: "AES DPA CM KAT key write failed",
	AESDPACM_KAT_KEYLOAD_FAILED:   "AES DPA CM KAT key load failed",
	AESDPACM_SSS_CFG_FAILED:       "AES DPA CM KAT switch configuration failed",
	AESDPACM_KAT_FAILED:           "AES DPA CM KAT failed",
	AESDPACM_KAT_CHECK1_FAILED:    "AES DPA CM KAT check 1 failed",
	AESDPACM_KAT_CHECK2_FAILED:    "AES DPA CM KAT check 2 failed",
	AESDPACM_KAT_CHECK3_FAILED:    "AES DPA CM KAT check 3 failed",
	AESDPACM_KAT_CHECK4_FAILED:    "AES DPA CM KAT check 4 failed",
	AESDPACM_KAT_CHECK5_FAILED:    "AES DPA CM KAT check 5 failed",
}

func (e Error) Error() string {
	if s, ok := descriptions[e]; ok {
		return fmt.Sprintf("%s (%#x)", s, uint32(e))
	}

	return fmt.Sprintf("self test error %#x", uint32(e))
}

// fail returns an error matching both the failure code and the engine
// error which caused it.
func fail(code Error, err error) error {
	if err == nil {
		return code
	}

	return fmt.Errorf("%w: %w", code, err)
}

// Code returns the failure code carried by err, or zero if err is not a
// self test failure.
func Code(err error) Error {
	var code Error

	if errors.As(err, &code) {
		return code
	}

	return 0
}

// Run performs the functional and the DPA countermeasure known answer tests,
// on failure the engine is locked out.
//
// The DPA countermeasure test is skipped when the countermeasure is disabled
// in eFUSE.
func Run(a *aes.AES, m mem.Memory) (err error) {
	defer func() {
		if err != nil {
			log.Printf("selftest: %v, locking out AES engine", err)
			a.Lockout()
		}
	}()

	if err = AES(a, m); err != nil {
		return
	}

	log.Printf("selftest: AES KAT passed")

	if err = a.SetDpaCm(true); err != nil {
		if errors.Is(err, aes.ErrDpaCmNotSupported) {
			log.Printf("selftest: DPA countermeasure disabled, skipping DPA CM KAT")
			return nil
		}

		return fail(AESDPACM_KAT_FAILED, err)
	}

	if err = DPA(a, m); err != nil {
		return
	}

	log.Printf("selftest: AES DPA CM KAT passed")

	return
}

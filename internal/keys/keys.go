// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package keys implements the AES engine key source registry.
//
// Every hardware key slot is described by an immutable descriptor holding
// its select codes and capabilities. Drivers must consult the registry
// before issuing any key operation to the engine.
package keys

import (
	"fmt"

	"github.com/f-secure-foundry/versal-secure/internal/hw"
)

// None marks a descriptor field which does not apply to a key source.
const None = 0xffffffff

// Source identifies an AES engine key source.
type Source int

// AES engine key sources
const (
	BBRAM_KEY Source = iota
	BBRAM_RED_KEY
	BH_KEY
	BH_RED_KEY
	EFUSE_KEY
	EFUSE_RED_KEY
	EFUSE_USER_KEY_0
	EFUSE_USER_KEY_1
	EFUSE_USER_RED_KEY_0
	EFUSE_USER_RED_KEY_1
	KUP_KEY
	FAMILY_KEY
	PUF_KEY
	USER_KEY_0
	USER_KEY_1
	USER_KEY_2
	USER_KEY_3
	USER_KEY_4
	USER_KEY_5
	USER_KEY_6
	USER_KEY_7
	// EXPANDED_KEYS designates all key material expanded inside the engine,
	// it is only valid for zeroization.
	EXPANDED_KEYS
)

// Descriptor represents the static configuration of a key source.
type Descriptor struct {
	// Offset is the key register offset for software written keys, or None
	Offset uint32
	// Select is the AES_KEY_SEL value routing the source to the engine
	Select uint32
	// UserWrite reports whether software can write the key
	UserWrite bool
	// Decrypt reports whether the key can be used for decryption
	Decrypt bool
	// Encrypt reports whether the key can be used for encryption
	Encrypt bool
	// DecryptSource reports whether the key can be unwrapped by KEK
	// decryption
	DecryptSource bool
	// DecryptSelect is the AES_KEY_DEC_SEL value designating the source as
	// unwrap destination, or None
	DecryptSelect uint32
	// ClearMask is the AES_KEY_CLEAR mask zeroizing the key, or None
	ClearMask uint32
}

// Writable reports whether the key registers of the source can be written by
// software.
func (d Descriptor) Writable() bool {
	return d.UserWrite && d.Offset != None
}

// CanUnwrapInto reports whether the source can receive an unwrapped key.
func (d Descriptor) CanUnwrapInto() bool {
	return d.DecryptSelect != None
}

// Clearable reports whether the source can be selectively zeroized.
func (d Descriptor) Clearable() bool {
	return d.ClearMask != None
}

var table = [...]Descriptor{
	BBRAM_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_BBRAM_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSource: true,
		DecryptSelect: None,
		ClearMask:     None,
	},
	BBRAM_RED_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_BBRAM_RD_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: hw.KEY_DEC_SEL_BBRAM_RED,
		ClearMask:     hw.KEY_CLEAR_BBRAM_RED_KEY,
	},
	BH_KEY: {
		Offset:        hw.AES_BH_KEY_0,
		Select:        hw.KEY_SEL_BH_KEY,
		UserWrite:     true,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSource: true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_BH_KEY,
	},
	BH_RED_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_BH_RD_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: hw.KEY_DEC_SEL_BH_RED,
		ClearMask:     hw.KEY_CLEAR_BH_RED_KEY,
	},
	EFUSE_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSource: true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_EFUSE_KEY,
	},
	EFUSE_RED_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_RED_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: hw.KEY_DEC_SEL_EFUSE_RED,
		ClearMask:     hw.KEY_CLEAR_EFUSE_RED_KEY,
	},
	EFUSE_USER_KEY_0: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_USR_KEY0,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSource: true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_EFUSE_USER_KEY_0,
	},
	EFUSE_USER_KEY_1: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_USR_KEY1,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSource: true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_EFUSE_USER_KEY_1,
	},
	EFUSE_USER_RED_KEY_0: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_USR_RD_KEY0,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: hw.KEY_DEC_SEL_EFUSE_USR0_RED,
		ClearMask:     hw.KEY_CLEAR_EFUSE_USER_RED_0,
	},
	EFUSE_USER_RED_KEY_1: {
		Offset:        None,
		Select:        hw.KEY_SEL_EFUSE_USR_RD_KEY1,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: hw.KEY_DEC_SEL_EFUSE_USR1_RED,
		ClearMask:     hw.KEY_CLEAR_EFUSE_USER_RED_1,
	},
	KUP_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_KUP_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_KUP_KEY,
	},
	FAMILY_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_FAMILY_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: None,
		ClearMask:     None,
	},
	PUF_KEY: {
		Offset:        None,
		Select:        hw.KEY_SEL_PUF_KEY,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_PUF_KEY,
	},
	USER_KEY_0: userKey(hw.AES_USER_KEY_0_0, hw.KEY_SEL_USR_KEY_0, hw.KEY_CLEAR_USER_KEY_0),
	USER_KEY_1: userKey(hw.AES_USER_KEY_1_0, hw.KEY_SEL_USR_KEY_1, hw.KEY_CLEAR_USER_KEY_1),
	USER_KEY_2: userKey(hw.AES_USER_KEY_2_0, hw.KEY_SEL_USR_KEY_2, hw.KEY_CLEAR_USER_KEY_2),
	USER_KEY_3: userKey(hw.AES_USER_KEY_3_0, hw.KEY_SEL_USR_KEY_3, hw.KEY_CLEAR_USER_KEY_3),
	USER_KEY_4: userKey(hw.AES_USER_KEY_4_0, hw.KEY_SEL_USR_KEY_4, hw.KEY_CLEAR_USER_KEY_4),
	USER_KEY_5: userKey(hw.AES_USER_KEY_5_0, hw.KEY_SEL_USR_KEY_5, hw.KEY_CLEAR_USER_KEY_5),
	USER_KEY_6: userKey(hw.AES_USER_KEY_6_0, hw.KEY_SEL_USR_KEY_6, hw.KEY_CLEAR_USER_KEY_6),
	USER_KEY_7: userKey(hw.AES_USER_KEY_7_0, hw.KEY_SEL_USR_KEY_7, hw.KEY_CLEAR_USER_KEY_7),
	EXPANDED_KEYS: {
		Offset:        None,
		Select:        None,
		DecryptSelect: None,
		ClearMask:     hw.KEY_CLEAR_AES_KEY_ZEROIZE,
	},
}

var names = [...]string{
	BBRAM_KEY:            "BBRAM_KEY",
	BBRAM_RED_KEY:        "BBRAM_RED_KEY",
	BH_KEY:               "BH_KEY",
	BH_RED_KEY:           "BH_RED_KEY",
	EFUSE_KEY:            "EFUSE_KEY",
	EFUSE_RED_KEY:        "EFUSE_RED_KEY",
	EFUSE_USER_KEY_0:     "EFUSE_USER_KEY_0",
	EFUSE_USER_KEY_1:     "EFUSE_USER_KEY_1",
	EFUSE_USER_RED_KEY_0: "EFUSE_USER_RED_KEY_0",
	EFUSE_USER_RED_KEY_1: "EFUSE_USER_RED_KEY_1",
	KUP_KEY:              "KUP_KEY",
	FAMILY_KEY:           "FAMILY_KEY",
	PUF_KEY:              "PUF_KEY",
	USER_KEY_0:           "USER_KEY_0",
	USER_KEY_1:           "USER_KEY_1",
	USER_KEY_2:           "USER_KEY_2",
	USER_KEY_3:           "USER_KEY_3",
	USER_KEY_4:           "USER_KEY_4",
	USER_KEY_5:           "USER_KEY_5",
	USER_KEY_6:           "USER_KEY_6",
	USER_KEY_7:           "USER_KEY_7",
	EXPANDED_KEYS:        "EXPANDED_KEYS",
}

func userKey(offset uint32, sel uint32, clear uint32) Descriptor {
	return Descriptor{
		Offset:        offset,
		Select:        sel,
		UserWrite:     true,
		Decrypt:       true,
		Encrypt:       true,
		DecryptSelect: None,
		ClearMask:     clear,
	}
}

// Valid reports whether s is a defined key source.
func Valid(s Source) bool {
	return s >= BBRAM_KEY && s <= EXPANDED_KEYS
}

// Lookup returns the descriptor of key source s. Undefined sources map to
// the EXPANDED_KEYS descriptor, which allows no cipher or write operation.
func Lookup(s Source) Descriptor {
	if !Valid(s) {
		return table[EXPANDED_KEYS]
	}

	return table[s]
}

// Sources returns all defined key sources.
func Sources() []Source {
	s := make([]Source, 0, len(table))

	for i := range table {
		s = append(s, Source(i))
	}

	return s
}

func (s Source) String() string {
	if !Valid(s) {
		return fmt.Sprintf("Source(%d)", int(s))
	}

	return names[s]
}

// BySelect returns the key source routed by an AES_KEY_SEL value.
func BySelect(sel uint32) (Source, bool) {
	return find(func(d Descriptor) bool { return sel != None && d.Select == sel })
}

// ByDecryptSelect returns the unwrap destination identified by an
// AES_KEY_DEC_SEL value.
func ByDecryptSelect(sel uint32) (Source, bool) {
	return find(func(d Descriptor) bool { return sel != None && d.DecryptSelect == sel })
}

// ByClearMask returns all key sources zeroized by an AES_KEY_CLEAR value.
func ByClearMask(mask uint32) (s []Source) {
	for i, d := range table {
		if d.Clearable() && d.ClearMask&mask != 0 {
			s = append(s, Source(i))
		}
	}

	return
}

func find(match func(Descriptor) bool) (Source, bool) {
	for i, d := range table {
		if match(d) {
			return Source(i), true
		}
	}

	return -1, false
}

// KekType identifies the form of a wrapped key.
type KekType int

const (
	// BLACK_KEY is a key encrypted with the PUF key.
	BLACK_KEY KekType = iota
	// OBFUSCATED_KEY is a key encrypted with the family key.
	OBFUSCATED_KEY
)

// UnwrapKey returns the key source decrypting a wrapped key of type t, this
// is fixed by hardware wiring and not selectable by callers.
func UnwrapKey(t KekType) (Source, error) {
	switch t {
	case OBFUSCATED_KEY:
		return FAMILY_KEY, nil
	case BLACK_KEY:
		return PUF_KEY, nil
	default:
		return -1, fmt.Errorf("invalid key type %d", t)
	}
}

// Size represents the AES key size.
type Size int

// AES key sizes
const (
	KEY_SIZE_128 Size = 128
	KEY_SIZE_256 Size = 256
)

// Valid reports whether the key size is supported by the engine.
func (s Size) Valid() bool {
	return s == KEY_SIZE_128 || s == KEY_SIZE_256
}

// Bytes returns the key size in bytes.
func (s Size) Bytes() int {
	return int(s) / 8
}

// Words returns the key size in 32-bit words.
func (s Size) Words() int {
	return int(s) / 32
}

// Value returns the AES_KEY_SIZE register encoding.
func (s Size) Value() uint32 {
	if s == KEY_SIZE_256 {
		return hw.KEY_SIZE_256_VAL
	}

	return hw.KEY_SIZE_128_VAL
}

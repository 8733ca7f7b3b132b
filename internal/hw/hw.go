// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hw holds the Versal PMC register map used by the secure stream
// switch, CSU DMA and AES-GCM engine drivers.
//
// Offsets, bit positions and select codes are hardware contracts, any
// software model of the PMC must honour them exactly.
package hw

// Base addresses
const (
	PMC_GLOBAL_BASE = 0xf1110000
	PMC_DMA0_BASE   = 0xf11c0000
	PMC_DMA1_BASE   = 0xf11d0000
	AES_BASE        = 0xf11e0000
	SHA_BASE        = 0xf1210000
	EFUSE_CACHE     = 0xf1250000
)

// Secure stream switch configuration register, 4 bits per sink.
const (
	SSS_CFG          = PMC_GLOBAL_BASE + 0x500
	SSS_CFG_LEN_BITS = 4
	SSS_CFG_MASK     = 0xf
)

// eFUSE cache
const (
	EFUSE_SECURITY_MISC_1 = EFUSE_CACHE + 0xe8
	EFUSE_DPA_CM_DIS_MASK = 0xffff0000
)

// CSU DMA registers, relative to the DMA base, destination channel registers
// are at DMA_DST_OFFSET from the source ones.
const (
	DMA_ADDR     = 0x000
	DMA_SIZE     = 0x004
	DMA_STS      = 0x008
	DMA_CTRL     = 0x00c
	DMA_I_STS    = 0x014
	DMA_CTRL2    = 0x024
	DMA_ADDR_MSB = 0x028

	DMA_DST_OFFSET = 0x800

	// DMA_SIZE
	SIZE_LAST  = 0
	SIZE_SHIFT = 2

	// DMA_STS
	STS_BUSY = 0

	// DMA_CTRL
	CTRL_ENDIANNESS = 23

	// DMA_I_STS
	I_STS_DONE = 1

	DMA_ADDR_MSB_MASK = 0x1ffff
)

// AES core registers, relative to AES_BASE.
const (
	AES_STATUS        = 0x000
	AES_KEY_SEL       = 0x004
	AES_KEY_LOAD      = 0x008
	AES_START_MSG     = 0x00c
	AES_SOFT_RST      = 0x010
	AES_KEY_CLEAR     = 0x014
	AES_MODE          = 0x018
	AES_KUP_WR        = 0x01c
	AES_IV_0          = 0x040
	AES_IV_1          = 0x044
	AES_IV_2          = 0x048
	AES_IV_3          = 0x04c
	AES_KEY_SIZE      = 0x050
	AES_KEY_DEC       = 0x058
	AES_KEY_DEC_TRIG  = 0x05c
	AES_KEY_DEC_SEL   = 0x060
	AES_KEY_ZEROED    = 0x064
	AES_BH_KEY_0      = 0x0f0
	AES_USER_KEY_0_0  = 0x110
	AES_USER_KEY_1_0  = 0x130
	AES_USER_KEY_2_0  = 0x150
	AES_USER_KEY_3_0  = 0x170
	AES_USER_KEY_4_0  = 0x190
	AES_USER_KEY_5_0  = 0x1b0
	AES_USER_KEY_6_0  = 0x1d0
	AES_USER_KEY_7_0  = 0x1f0
	AES_CM_EN         = 0x220
	AES_SPLIT_CFG     = 0x250
	AES_DATA_SWAP     = 0x28c
	AES_KEY_MASK_0    = 0x2d0
	AES_REGISTER_SIZE = 0x300

	// AES_STATUS
	STATUS_BUSY             = 0
	STATUS_READY            = 1
	STATUS_DONE             = 2
	STATUS_GCM_TAG_PASS     = 3
	STATUS_KEY_INIT_DONE    = 4
	STATUS_BLK_KEY_DEC_DONE = 5
	STATUS_CM_ENABLED       = 12

	// AES_MODE
	MODE_ENC_DEC_N = 0

	// AES_KUP_WR
	KUP_WR_IV_SAVE  = 0
	KUP_WR_KEY_SAVE = 1

	// AES_SPLIT_CFG
	SPLIT_CFG_DATA_SPLIT = 0
	SPLIT_CFG_KEY_SPLIT  = 1

	// AES_KEY_SIZE
	KEY_SIZE_128_VAL = 0
	KEY_SIZE_256_VAL = 2

	KEY_DEC_MASK = 0xffffffff

	// AES_KEY_CLEAR
	KEY_CLEAR_USER_KEY_0       = 1 << 0
	KEY_CLEAR_USER_KEY_1       = 1 << 1
	KEY_CLEAR_USER_KEY_2       = 1 << 2
	KEY_CLEAR_USER_KEY_3       = 1 << 3
	KEY_CLEAR_USER_KEY_4       = 1 << 4
	KEY_CLEAR_USER_KEY_5       = 1 << 5
	KEY_CLEAR_USER_KEY_6       = 1 << 6
	KEY_CLEAR_USER_KEY_7       = 1 << 7
	KEY_CLEAR_EFUSE_KEY        = 1 << 8
	KEY_CLEAR_EFUSE_RED_KEY    = 1 << 9
	KEY_CLEAR_EFUSE_USER_KEY_0 = 1 << 10
	KEY_CLEAR_EFUSE_USER_KEY_1 = 1 << 11
	KEY_CLEAR_EFUSE_USER_RED_0 = 1 << 12
	KEY_CLEAR_EFUSE_USER_RED_1 = 1 << 13
	KEY_CLEAR_BBRAM_RED_KEY    = 1 << 14
	KEY_CLEAR_BH_KEY           = 1 << 15
	KEY_CLEAR_BH_RED_KEY       = 1 << 16
	KEY_CLEAR_PUF_KEY          = 1 << 17
	KEY_CLEAR_KUP_KEY          = 1 << 18
	KEY_CLEAR_AES_KEY_ZEROIZE  = 1 << 20
)

// SHA3 engine registers, relative to SHA_BASE.
const (
	SHA_START    = 0x000
	SHA_RESET    = 0x004
	SHA_DONE     = 0x008
	SHA_DIGEST_0 = 0x010

	// SHA_DONE
	DONE_DONE = 0

	SHA384_DIGEST_WORDS = 12
)

// AES_KEY_SEL values
const (
	KEY_SEL_BBRAM_KEY         = 0xbbde6600
	KEY_SEL_BBRAM_RD_KEY      = 0xbbde8200
	KEY_SEL_BH_KEY            = 0xbdb06600
	KEY_SEL_BH_RD_KEY         = 0xbdb08200
	KEY_SEL_EFUSE_KEY         = 0xefde6600
	KEY_SEL_EFUSE_RED_KEY     = 0xefde8200
	KEY_SEL_EFUSE_USR_KEY0    = 0xef856601
	KEY_SEL_EFUSE_USR_KEY1    = 0xef856602
	KEY_SEL_EFUSE_USR_RD_KEY0 = 0xef858201
	KEY_SEL_EFUSE_USR_RD_KEY1 = 0xef858202
	KEY_SEL_KUP_KEY           = 0xbdc98200
	KEY_SEL_FAMILY_KEY        = 0xfede8200
	KEY_SEL_PUF_KEY           = 0xdbde8200
	KEY_SEL_USR_KEY_0         = 0xbd958200
	KEY_SEL_USR_KEY_1         = 0xbd958201
	KEY_SEL_USR_KEY_2         = 0xbd958202
	KEY_SEL_USR_KEY_3         = 0xbd958203
	KEY_SEL_USR_KEY_4         = 0xbd958204
	KEY_SEL_USR_KEY_5         = 0xbd958205
	KEY_SEL_USR_KEY_6         = 0xbd958206
	KEY_SEL_USR_KEY_7         = 0xbd958207
)

// AES_KEY_DEC_SEL values
const (
	KEY_DEC_SEL_BBRAM_RED      = 0x0
	KEY_DEC_SEL_BH_RED         = 0x1
	KEY_DEC_SEL_EFUSE_RED      = 0x2
	KEY_DEC_SEL_EFUSE_USR0_RED = 0x3
	KEY_DEC_SEL_EFUSE_USR1_RED = 0x4
)

const (
	// WORD_SIZE is the AES engine and CSU DMA transfer unit in bytes.
	WORD_SIZE = 4
	// GCM_TAG_SIZE is the size of both the GCM tag and the IV buffer.
	GCM_TAG_SIZE = 16

	// TIMEOUT_MAX is the default busy-poll iteration budget.
	TIMEOUT_MAX = 0x1ffff
)

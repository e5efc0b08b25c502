// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const (
	// Size is the length in bytes of a Digest.
	Size = sha256.Size
	// HexSize is the length of the hexadecimal rendering of a Digest. Two text
	// bytes per binary byte.
	HexSize = Size * 2
)

// Digest is a SHA-256 value. The zero value is a valid (all zero) digest.
type Digest [Size]byte

// Sum computes the digest of b. Works for any input length, including empty.
func Sum(b []byte) Digest {
	return sha256.Sum256(b)
}

// SumString is Sum for text input, as typed by a user.
func SumString(s string) Digest {
	return Sum([]byte(s))
}

// Hex returns the lowercase hexadecimal representation of d, always HexSize chars long.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// Uint64 returns the first 8 bytes of the digest as a big endian integer.
// Used as the set key in GCS files.
func (d Digest) Uint64() uint64 {
	return binary.BigEndian.Uint64(d[:8])
}

// IsHex reports whether s is non-empty and only contains hexadecimal digits
// (either case).
func IsHex(s string) bool {
	if len(s) == 0 {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}

	return true
}

// IsDigestHex reports whether s looks exactly like the output of Digest.Hex.
func IsDigestHex(s string) bool {
	if len(s) != HexSize {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}

	return true
}

// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package digest

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSum_KnownVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"password", "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SumString(tc.in).Hex(), "digest of %q", tc.in)
	}
}

func TestSum_HexShape(t *testing.T) {
	inputs := []string{"", "a", "user@example.com", strings.Repeat("x", 10_000), "\x00\xff"}

	for _, in := range inputs {
		h := Sum([]byte(in)).Hex()
		assert.Len(t, h, HexSize)
		assert.Regexp(t, hexPattern, h)
		assert.True(t, IsDigestHex(h))
	}
}

func TestSum_Deterministic(t *testing.T) {
	a := SumString("correct horse battery staple")
	b := SumString("correct horse battery staple")
	require.Equal(t, a, b)
	require.Equal(t, a.Hex(), b.String())
	assert.NotEqual(t, a, SumString("correct horse battery staplE"))
}

func TestDigest_Uint64(t *testing.T) {
	d := SumString("abc")
	// ba7816bf8f01cfea
	assert.Equal(t, uint64(0xba7816bf8f01cfea), d.Uint64())
}

func TestIsHex(t *testing.T) {
	assert.True(t, IsHex("deadBEEF09"))
	assert.False(t, IsHex(""))
	assert.False(t, IsHex("xyz"))
	assert.False(t, IsHex("dead beef"))

	assert.False(t, IsDigestHex("deadbeef"))
	assert.False(t, IsDigestHex(strings.Repeat("A", HexSize)))
	assert.True(t, IsDigestHex(strings.Repeat("a", HexSize)))
}

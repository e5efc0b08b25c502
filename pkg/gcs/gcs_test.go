// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvinbaena/credcheck/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTokens(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = digest.SumString(fmt.Sprintf("user%d@example.com", i)).Hex()
	}
	return tokens
}

func build(t *testing.T, tokens []string, probability, granularity uint64) []byte {
	t.Helper()

	b, err := NewBuilder(probability, granularity, len(tokens))
	require.NoError(t, err)
	for _, token := range tokens {
		b.Add(token)
	}

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	require.EqualValues(t, buf.Len(), n)
	return buf.Bytes()
}

func TestNewBuilder_Validates(t *testing.T) {
	_, err := NewBuilder(1, 16, 0)
	assert.Error(t, err)

	_, err = NewBuilder(16, 0, 0)
	assert.Error(t, err)
}

func TestBuilder_EmptyFails(t *testing.T) {
	b, err := NewBuilder(16, 16, 0)
	require.NoError(t, err)

	_, err = b.WriteTo(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestBuilder_Footer(t *testing.T) {
	data := build(t, sampleTokens(100), 1<<20, 16)

	footer := data[len(data)-footerSize:]
	assert.EqualValues(t, 100, binary.BigEndian.Uint64(footer[0:8]))
	assert.EqualValues(t, 1<<20, binary.BigEndian.Uint64(footer[8:16]))

	endOfData := binary.BigEndian.Uint64(footer[16:24])
	indexLen := binary.BigEndian.Uint64(footer[24:32])
	assert.EqualValues(t, 100/16, indexLen)
	assert.EqualValues(t, len(data)-footerSize, endOfData+16*indexLen)
	assert.Equal(t, gcsMagic, string(footer[32:]))
}

func TestReader_NoFalseNegatives(t *testing.T) {
	tokens := sampleTokens(2000)

	for _, granularity := range []uint64{1, 7, 64, 4096} {
		r, err := NewReader(build(t, tokens, 1024, granularity))
		require.NoError(t, err)
		assert.Equal(t, len(tokens), r.Len())

		for _, token := range tokens {
			found, err := r.Exists(Key(token))
			require.NoError(t, err)
			require.True(t, found, "granularity %d token %s", granularity, token)
		}
	}
}

func TestReader_FalsePositiveRate(t *testing.T) {
	r, err := NewReader(build(t, sampleTokens(2000), 1024, 32))
	require.NoError(t, err)

	positives := 0
	const probes = 20000
	for i := 0; i < probes; i++ {
		found, err := r.Exists(Key(fmt.Sprintf("absent-%d", i)))
		require.NoError(t, err)
		if found {
			positives++
		}
	}

	// Expected about probes/1024, allow plenty of slack.
	assert.Less(t, positives, 100)
}

func TestReader_SingleItem(t *testing.T) {
	r, err := NewReader(build(t, []string{"only"}, 16, 16))
	require.NoError(t, err)

	found, err := r.Exists(Key("only"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestReader_InvalidData(t *testing.T) {
	_, err := NewReader([]byte("plainly not a gcs file, just some text\n"))
	assert.ErrorIs(t, err, ErrNotGCS)

	_, err = NewReader(nil)
	assert.ErrorIs(t, err, ErrNotGCS)

	data := build(t, sampleTokens(10), 16, 4)
	// Break the index length.
	binary.BigEndian.PutUint64(data[len(data)-16:len(data)-8], 999)
	_, err = NewReader(data)
	assert.ErrorIs(t, err, ErrNotGCS)
}

func TestBuilder_ReadFrom(t *testing.T) {
	tokens := sampleTokens(300)
	var src strings.Builder
	for i := 0; i < len(tokens); i += 3 {
		fmt.Fprintf(&src, "%s:%s\n%s\n", tokens[i], tokens[i+1], tokens[i+2])
	}
	src.WriteString("\n :  \n")

	b, err := NewBuilder(256, 8, 0)
	require.NoError(t, err)
	n, err := b.ReadFrom(strings.NewReader(src.String()))
	require.NoError(t, err)
	assert.EqualValues(t, src.Len(), n)
	assert.Equal(t, len(tokens), b.Len())

	path := filepath.Join(t.TempDir(), "creds.gcs")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = b.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	set, err := OpenSet(path, 1000)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, len(tokens), set.Len())
	for _, token := range tokens {
		assert.True(t, set.Contains(token))
		// Second lookup may be served from the cache.
		assert.True(t, set.Contains(token))
	}
}

func TestBuilder_ReadFromVeryLongLine(t *testing.T) {
	tokens := sampleTokens(20_000)
	line := strings.Join(tokens, ":")
	require.Greater(t, len(line), 1024*1024)

	b, err := NewBuilder(1<<20, 1024, 0)
	require.NoError(t, err)
	_, err = b.ReadFrom(strings.NewReader(line))
	require.NoError(t, err)
	assert.Equal(t, len(tokens), b.Len())

	r, err := NewReader(build(t, tokens, 1<<20, 1024))
	require.NoError(t, err)
	found, err := r.Exists(Key(tokens[len(tokens)-1]))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSet_WithoutCache(t *testing.T) {
	r, err := NewReader(build(t, []string{"a", "b", "c"}, 1<<20, 2))
	require.NoError(t, err)

	set, err := NewSet(r, 0)
	require.NoError(t, err)
	defer set.Close()

	assert.True(t, set.Contains("b"))
	assert.False(t, set.Contains("d"))
}

func TestOpenSet_MissingFile(t *testing.T) {
	_, err := OpenSet(filepath.Join(t.TempDir(), "missing.gcs"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

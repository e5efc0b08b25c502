// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package credset

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deadbeef = strings.Repeat("deadbeef", 8)
	cafebabe = strings.Repeat("cafebabe", 8)
	feedface = strings.Repeat("feedface", 8)
	zeros    = strings.Repeat("0", 64)
)

func TestLoad_SplitsTokensAcrossLines(t *testing.T) {
	src := deadbeef + ":" + cafebabe + "\n" + feedface + "\n"

	set, err := Load(strings.NewReader(src), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains(deadbeef))
	assert.True(t, set.Contains(cafebabe))
	assert.True(t, set.Contains(feedface))
	assert.False(t, set.Contains(zeros))
	assert.False(t, set.Truncated())
}

func TestLoad_TokenRules(t *testing.T) {
	src := "a:b:c\n" +
		"\n" +
		"d\r\n" +
		"::e::\n" +
		"  f  :g\n" +
		"a:b\n"

	set, err := Load(strings.NewReader(src), Options{})
	require.NoError(t, err)

	for _, token := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		assert.True(t, set.Contains(token), "token %q", token)
	}
	assert.Equal(t, 7, set.Len())
	assert.False(t, set.Contains(""))
	assert.False(t, set.Contains("a:b"))
}

func TestLoad_ExactComparison(t *testing.T) {
	set := New(deadbeef)

	assert.True(t, set.Contains(deadbeef))
	assert.False(t, set.Contains(strings.ToUpper(deadbeef)))
	assert.False(t, set.Contains(deadbeef[:63]))
	assert.False(t, set.Contains(deadbeef+"0"))
}

func TestLoad_CapacityTruncates(t *testing.T) {
	src := "a:b\nc\nd:e\n"

	set, err := Load(strings.NewReader(src), Options{Capacity: 3})
	require.NoError(t, err)

	assert.True(t, set.Truncated())
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains("a"))
	assert.True(t, set.Contains("b"))
	assert.True(t, set.Contains("c"))
	assert.False(t, set.Contains("d"))
	assert.False(t, set.Contains("e"))
}

func TestLoad_CapacityIgnoresDuplicates(t *testing.T) {
	set, err := Load(strings.NewReader("a:b\na:b\nb\n"), Options{Capacity: 2})
	require.NoError(t, err)

	assert.False(t, set.Truncated())
	assert.Equal(t, 2, set.Len())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}

func TestLoad_ReadErrorFails(t *testing.T) {
	_, err := Load(failingReader{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestLoadSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.txt")
	require.NoError(t, os.WriteFile(path, []byte(deadbeef+":"+cafebabe+"\n"+feedface+"\n"), 0644))

	set, err := LoadSource(context.Background(), path, Options{Capacity: DefaultCapacity})
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
}

func TestLoadSource_MissingFileFails(t *testing.T) {
	_, err := LoadSource(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSource_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/creds.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(deadbeef + "\n" + cafebabe + "\n"))
	}))
	defer srv.Close()

	set, err := LoadSource(context.Background(), srv.URL+"/creds.txt", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(cafebabe))

	_, err = LoadSource(context.Background(), srv.URL+"/missing.txt", Options{})
	require.Error(t, err)
}

func TestSet_ConcurrentReads(t *testing.T) {
	set := New(deadbeef, cafebabe)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if !set.Contains(deadbeef) || set.Contains(zeros) {
					t.Error("unexpected membership result")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTokenScanner(t *testing.T) {
	scanner := NewTokenScanner(strings.NewReader(" a : b \r\n::c::\n\n : \t\nd"))

	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, scanner.Token())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"a", "b", "c", "d"}, tokens)
	assert.Equal(t, 4, scanner.Lines())
}

func TestTokenScanner_TokenTooLong(t *testing.T) {
	scanner := NewTokenScanner(strings.NewReader("a:" + strings.Repeat("f", MaxTokenLen+1)))

	require.True(t, scanner.Scan())
	assert.Equal(t, "a", scanner.Token())
	assert.False(t, scanner.Scan())
	assert.ErrorIs(t, scanner.Err(), bufio.ErrTooLong)
}

func TestLoad_VeryLongLine(t *testing.T) {
	tokens := make([]string, 20_000)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%064x", i)
	}
	line := strings.Join(tokens, ":")
	require.Greater(t, len(line), 1024*1024)

	set, err := Load(strings.NewReader(line+"\n"+deadbeef+"\n"), Options{})
	require.NoError(t, err)

	assert.Equal(t, len(tokens)+1, set.Len())
	assert.True(t, set.Contains(tokens[0]))
	assert.True(t, set.Contains(tokens[len(tokens)-1]))
	assert.True(t, set.Contains(deadbeef))
}

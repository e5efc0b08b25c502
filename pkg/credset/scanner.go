// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package credset

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// MaxTokenLen is the longest single token a source may hold. Lines have no limit.
const MaxTokenLen = 1024 * 1024

// TokenScanner reads the tokens of a credential source one at a time. Tokens are
// split on Delimiter and on line ends, whitespace trimmed, and empty ones skipped.
type TokenScanner struct {
	sc    *bufio.Scanner
	token string
	lines int
}

func NewTokenScanner(r io.Reader) *TokenScanner {
	s := &TokenScanner{sc: bufio.NewScanner(r)}
	s.sc.Buffer(make([]byte, 0, 64*1024), MaxTokenLen)
	s.sc.Split(s.split)
	return s
}

func (s *TokenScanner) split(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexAny(data, Delimiter+"\n"); i >= 0 {
		if data[i] == '\n' {
			s.lines++
		}
		return i + 1, data[:i], nil
	}

	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}

	// Request more data.
	return 0, nil, nil
}

// Scan advances to the next token. It returns false at the end of the source or on
// a read error, see Err.
func (s *TokenScanner) Scan() bool {
	for s.sc.Scan() {
		if t := strings.TrimSpace(s.sc.Text()); t != "" {
			s.token = t
			return true
		}
	}
	return false
}

// Token returns the token read by the last Scan.
func (s *TokenScanner) Token() string {
	return s.token
}

// Lines returns the number of line ends read so far.
func (s *TokenScanner) Lines() int {
	return s.lines
}

// Err returns the first read error. A token over MaxTokenLen reports
// bufio.ErrTooLong.
func (s *TokenScanner) Err() error {
	return s.sc.Err()
}

// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package credset holds the in-memory set of known compromised credential hashes.
//
// A Set is built once from a text source and never modified afterwards, so it can be
// shared by any number of goroutines without synchronization.
package credset

import (
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"io"
)

const (
	// Delimiter separates the tokens of a source line.
	Delimiter = ":"
	// DefaultCapacity is the default maximum number of members of a Set.
	DefaultCapacity = 1_000_000
)

// Options control how a Set is loaded.
type Options struct {
	// Capacity is the maximum number of distinct members. Loading stops at the first
	// new token that does not fit. Zero means no limit.
	Capacity int
	// SizeHint is the expected number of members, used to size the set up front.
	SizeHint int
}

// Set is an immutable collection of hash strings.
type Set struct {
	members   map[string]struct{}
	truncated bool
}

// New builds a Set from the given tokens. Mostly useful for tests.
func New(tokens ...string) *Set {
	s := &Set{members: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		s.members[t] = struct{}{}
	}
	return s
}

// Load reads every token of r, split on Delimiter and on line ends, and adds each
// non-empty one to the set. Line grouping is not retained. Any read error aborts the
// load.
func Load(r io.Reader, opts Options) (*Set, error) {
	hint := opts.SizeHint
	if opts.Capacity > 0 && (hint <= 0 || hint > opts.Capacity) {
		hint = opts.Capacity
	}

	s := &Set{members: make(map[string]struct{}, hint)}
	scanner := NewTokenScanner(r)

	for scanner.Scan() {
		token := scanner.Token()
		if _, ok := s.members[token]; ok {
			continue
		}

		if opts.Capacity > 0 && len(s.members) >= opts.Capacity {
			s.truncated = true
			break
		}

		s.members[token] = struct{}{}
		if len(s.members)%1_000_000 == 0 {
			log.Debug().Msgf("read %s lines, %s credentials", util.Count(scanner.Lines()), util.Count(len(s.members)))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading credentials at line %d", scanner.Lines()+1)
	}

	if s.truncated {
		log.Warn().Msgf("credential source exceeds the capacity of %s, loading stopped after %s lines",
			util.Count(opts.Capacity), util.Count(scanner.Lines()))
	}

	return s, nil
}

// Contains reports whether token is a member of the set. The comparison is exact,
// no case folding is done.
func (s *Set) Contains(token string) bool {
	_, ok := s.members[token]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.members)
}

// Truncated reports whether loading stopped adding members because of the capacity.
func (s *Set) Truncated() bool {
	return s.truncated
}

// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultCacheSize is the number of lookups remembered by a Set.
const DefaultCacheSize = 100_000

// Set adapts a Reader to the credential set lookups of the server, keeping recent
// answers in a cache.
type Set struct {
	reader *Reader
	cache  *ristretto.Cache
}

// NewSet wraps r. cacheSize is the number of cached lookups, 0 disables the cache.
func NewSet(r *Reader, cacheSize int64) (*Set, error) {
	s := &Set{reader: r}
	if cacheSize <= 0 {
		return s, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating lookup cache")
	}
	s.cache = cache

	return s, nil
}

// OpenSet reads the GCS file at path into a cached Set.
func OpenSet(path string, cacheSize int64) (*Set, error) {
	r, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	return NewSet(r, cacheSize)
}

// Contains reports whether token is probably a member. A corrupt file reads as not
// found.
func (s *Set) Contains(token string) bool {
	key := Key(token)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(bool)
		}
	}

	found, err := s.reader.Exists(key)
	if err != nil {
		log.Error().Err(err).Msg("GCS lookup failed")
		return false
	}

	if s.cache != nil {
		s.cache.Set(key, found, 1)
	}
	return found
}

// Len returns the number of items the set was built from.
func (s *Set) Len() int {
	return s.reader.Len()
}

// Probability returns p of the 1-in-p false-positive rate.
func (s *Set) Probability() uint64 {
	return s.reader.Probability()
}

// Close releases the cache.
func (s *Set) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

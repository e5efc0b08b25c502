// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package gcs stores credential sets as Golomb Coded Sets, a compressed probabilistic
// set with a configurable false-positive rate and no false negatives.
//
// File layout, all integers big-endian u64:
//
//	golomb coded deltas | index (value, bit position)... | N | P | index offset | index length | magic
package gcs

import (
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/alvinbaena/credcheck/pkg/credset"
	"github.com/alvinbaena/credcheck/pkg/digest"
	"github.com/jfcg/sorty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"io"
	"sync"
)

// https://github.com/rasky/gcs
// https://github.com/Freaky/gcstool
// https://giovanni.bajo.it/post/47119962313/golomb-coded-sets-smaller-than-bloom-filters

const (
	gcsMagic   = "[GCS:v1]"
	footerSize = 5 * 8

	DefaultProbability      = 1 << 20
	DefaultIndexGranularity = 1024
)

type indexPair struct {
	value  uint64
	bitPos uint64
}

// Key returns the value a credential token is stored under.
func Key(token string) uint64 {
	return digest.SumString(token).Uint64()
}

// Builder collects credential tokens and writes them as a GCS.
type Builder struct {
	probability      uint64
	indexGranularity uint64
	values           []uint64
	stat             *status
}

// NewBuilder creates a builder for a new GCS file.
//
// probability is the false-positive rate for queries, 1-in-p. indexGranularity is the
// number of entries per index point (16 bytes each). sizeHint presizes the value list.
func NewBuilder(probability, indexGranularity uint64, sizeHint int) (*Builder, error) {
	if probability < 2 {
		return nil, errors.Errorf("false positive rate must be at least 1 in 2, got 1 in %d", probability)
	}
	if indexGranularity == 0 {
		return nil, errors.New("index granularity must be greater than 0")
	}
	if sizeHint < 0 {
		sizeHint = 0
	}

	return &Builder{
		probability:      probability,
		indexGranularity: indexGranularity,
		values:           make([]uint64, 0, sizeHint),
		stat:             newStatus(),
	}, nil
}

// Add adds a single credential token.
func (b *Builder) Add(token string) {
	b.values = append(b.values, Key(token))
}

// Len returns the number of tokens added so far, duplicates included.
func (b *Builder) Len() int {
	return len(b.values)
}

// ReadFrom adds every token of a credential source. Tokens are hashed concurrently in
// chunks.
// Concurrent file read inspired by https://marcellanz.com/post/file-read-challenge/
func (b *Builder) ReadFrom(r io.Reader) (int64, error) {
	b.stat.Stage("Read")

	cr := &countingReader{r: r}
	scanner := credset.NewTokenScanner(cr)

	const tokensChunkLen = 64 * 1024
	tokensPool := sync.Pool{New: func() interface{} {
		return make([]string, 0, tokensChunkLen)
	}}
	recordsPool := sync.Pool{New: func() interface{} {
		return make([]uint64, 0, tokensChunkLen)
	}}

	mutex := &sync.Mutex{}
	wg := sync.WaitGroup{}

	tokens := tokensPool.Get().([]string)[:0]
	flush := func() {
		chunk := tokens
		wg.Add(1)
		go func() {
			defer wg.Done()

			records := recordsPool.Get().([]uint64)[:0]
			for _, token := range chunk {
				records = append(records, Key(token))
			}
			tokensPool.Put(chunk[:0])

			mutex.Lock()
			b.values = append(b.values, records...)
			mutex.Unlock()
			recordsPool.Put(records[:0])
		}()
		tokens = tokensPool.Get().([]string)[:0]
	}

	for scanner.Scan() {
		tokens = append(tokens, scanner.Token())
		if len(tokens) == tokensChunkLen {
			flush()
		}
	}
	if len(tokens) > 0 {
		flush()
	}
	wg.Wait()

	if err := scanner.Err(); err != nil {
		return cr.n, errors.Wrapf(err, "reading credentials at line %d", scanner.Lines()+1)
	}

	log.Debug().Msgf("read %s tokens from %s lines", util.Count(len(b.values)), util.Count(scanner.Lines()))
	return cr.n, nil
}

// WriteTo encodes the collected tokens as a GCS into w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if len(b.values) == 0 {
		return 0, errors.New("no credentials to write")
	}

	num := uint64(len(b.values))
	np := num * b.probability
	log.Debug().Msgf("database will have %s items", util.Count(num))

	// Values are shifted by one so a zero delta only ever marks the end of the data.
	b.stat.Stage("Normalise")
	for i, v := range b.values {
		b.values[i] = v%np + 1
	}

	b.stat.Stage("Sort")
	sorty.SortSlice(b.values)

	b.stat.Stage("Deduplicate")
	b.values = dedup(b.values)

	cw := &countingWriter{w: w}
	encoder := newEncoder(cw, b.probability)
	index := make([]indexPair, 0, uint64(len(b.values))/b.indexGranularity+1)

	b.stat.StageWork("Encode", uint64(len(b.values)))
	totalBits := uint64(0)
	last := uint64(0)
	for i, v := range b.values {
		bits, err := encoder.Encode(v - last)
		if err != nil {
			return cw.n, errors.Wrap(err, "encoding value")
		}
		totalBits += bits
		last = v

		if uint64(i+1)%b.indexGranularity == 0 {
			index = append(index, indexPair{value: v, bitPos: totalBits})
		}
		b.stat.Incr()
	}

	// Delimiting zero.
	bits, err := encoder.Encode(0)
	if err != nil {
		return cw.n, errors.Wrap(err, "encoding end of data")
	}
	totalBits += bits

	padding, err := encoder.Finalize()
	if err != nil {
		return cw.n, errors.Wrap(err, "flushing data")
	}

	endOfData := (totalBits + padding) / 8
	log.Debug().Msgf("end of data: %d, index will have %d items", endOfData, len(index))

	b.stat.Stage("Write Index")
	for _, pair := range index {
		if err = writeU64(cw, pair.value, pair.bitPos); err != nil {
			return cw.n, err
		}
	}

	if err = writeU64(cw, num, b.probability, endOfData, uint64(len(index))); err != nil {
		return cw.n, err
	}
	if _, err = io.WriteString(cw, gcsMagic); err != nil {
		return cw.n, errors.WithStack(err)
	}

	b.stat.Done()
	return cw.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func dedup(slice []uint64) []uint64 {
	if len(slice) < 2 {
		return slice
	}

	e := 1
	for i := 1; i < len(slice); i++ {
		if slice[i] == slice[i-1] {
			continue
		}
		slice[e] = slice[i]
		e++
	}

	return slice[:e]
}

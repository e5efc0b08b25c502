// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"io"
	"math"
)

// golombEncoder writes Golomb-Rice codes: the quotient in unary followed by the
// remainder in log2(p) bits.
type golombEncoder struct {
	inner       *bitWriter
	probability uint64
	log2p       uint8
}

func log2(probability uint64) uint8 {
	return uint8(math.Ceil(math.Log2(float64(probability))))
}

func newEncoder(w io.Writer, probability uint64) *golombEncoder {
	return &golombEncoder{
		inner:       newBitWriter(w),
		probability: probability,
		log2p:       log2(probability),
	}
}

// Encode writes value and returns the number of bits used.
func (e *golombEncoder) Encode(value uint64) (uint64, error) {
	q := value / e.probability
	r := value % e.probability
	written := q + 1 + uint64(e.log2p)

	for ; q >= 32; q -= 32 {
		if err := e.inner.WriteBits(32, math.MaxUint32); err != nil {
			return 0, err
		}
	}

	// q ones and the terminating zero.
	if err := e.inner.WriteBits(uint8(q+1), (1<<(q+1))-2); err != nil {
		return 0, err
	}

	if err := e.inner.WriteBits(e.log2p, r); err != nil {
		return 0, err
	}

	return written, nil
}

// Finalize flushes the encoder, returning the padding bits written.
func (e *golombEncoder) Finalize() (uint64, error) {
	return e.inner.Flush()
}

// decode reads the next value written by golombEncoder.
func decode(r *bitReader, probability uint64, log2p uint8) (uint64, error) {
	q, err := r.ReadUnary()
	if err != nil {
		return 0, err
	}

	rem, err := r.ReadBits(log2p)
	if err != nil {
		return 0, err
	}

	return q*probability + rem, nil
}

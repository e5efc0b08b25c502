// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"bufio"
	"github.com/pkg/errors"
	"io"
)

var errShortData = errors.New("gcs: bit stream ended unexpectedly")

// bitReader reads bits, most significant first, from an in-memory slice. Every query
// gets its own bitReader so lookups never share a cursor.
type bitReader struct {
	data []byte
	pos  uint64 // next bit to read
	end  uint64 // first bit past the readable data
}

func newBitReader(data []byte, bitPos uint64) *bitReader {
	return &bitReader{data: data, pos: bitPos, end: uint64(len(data)) * 8}
}

// ReadBit returns the next bit.
func (r *bitReader) ReadBit() (uint64, error) {
	if r.pos >= r.end {
		return 0, errShortData
	}

	b := r.data[r.pos/8] >> (7 - r.pos%8) & 1
	r.pos++
	return uint64(b), nil
}

// ReadBits reads up to 64 bits.
func (r *bitReader) ReadBits(n uint8) (uint64, error) {
	if n > 64 {
		return 0, errors.New("cannot read more than 64 bits at a time")
	}
	if r.pos+uint64(n) > r.end {
		return 0, errShortData
	}

	ret := uint64(0)
	for n > 0 {
		// Bits left in the current byte.
		avail := uint8(8 - r.pos%8)
		take := avail
		if n < take {
			take = n
		}

		cur := r.data[r.pos/8] & (1<<avail - 1)
		ret = ret<<take | uint64(cur>>(avail-take))

		r.pos += uint64(take)
		n -= take
	}

	return ret, nil
}

// ReadUnary counts the 1 bits before the next 0 bit.
func (r *bitReader) ReadUnary() (uint64, error) {
	q := uint64(0)
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			return q, nil
		}
		q++
	}
}

// An io.Writer and io.ByteWriter at the same time.
type writerAndByteWriter interface {
	io.Writer
	io.ByteWriter
}

// bitWriter adds bit-level writing to any io.Writer.
type bitWriter struct {
	inner   writerAndByteWriter
	wrapper *bufio.Writer // set when the target does not implement io.ByteWriter
	buffer  uint8         // unwritten bits
	unused  uint8         // number of unwritten bits in buffer
}

func newBitWriter(out io.Writer) *bitWriter {
	w := &bitWriter{}
	var ok bool
	w.inner, ok = out.(writerAndByteWriter)
	if !ok {
		w.wrapper = bufio.NewWriter(out)
		w.inner = w.wrapper
	}
	return w
}

// WriteBits writes the n lowest bits of r, up to 64.
func (w *bitWriter) WriteBits(n uint8, r uint64) error {
	if n > 64 {
		return errors.New("cannot write more than 64 bits at a time")
	}
	if n < 64 {
		r &= 1<<n - 1
	}

	newBits := w.unused + n
	if newBits < 8 {
		// Fits in the buffer, nothing reaches the writer.
		w.buffer |= byte(r) << (8 - newBits)
		w.unused = newBits
		return nil
	}

	// Complete the buffered byte first.
	free := 8 - w.unused
	if err := w.inner.WriteByte(w.buffer | uint8(r>>(n-free))); err != nil {
		return err
	}
	n -= free

	for n >= 8 {
		n -= 8
		if err := w.inner.WriteByte(uint8(r >> n)); err != nil {
			return err
		}
	}

	if n > 0 {
		w.buffer, w.unused = (uint8(r)&(1<<n-1))<<(8-n), n
	} else {
		w.buffer, w.unused = 0, 0
	}
	return nil
}

// Flush pads the stream with zero bits up to the next byte boundary, writes any cached
// bits and flushes the wrapping buffer. It returns the number of padding bits.
func (w *bitWriter) Flush() (padding uint64, err error) {
	if w.unused > 0 {
		if err = w.inner.WriteByte(w.buffer); err != nil {
			return 0, err
		}

		padding = uint64(8 - w.unused)
		w.buffer, w.unused = 0, 0
	}
	if w.wrapper != nil {
		err = w.wrapper.Flush()
	}
	return padding, err
}

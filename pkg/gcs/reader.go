// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"encoding/binary"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"io"
	"os"
	"sort"
)

// ErrNotGCS is returned when the data does not end with a GCS footer.
var ErrNotGCS = errors.New("not a GCS file")

// Reader answers membership queries against an in-memory GCS. It is safe for
// concurrent use.
type Reader struct {
	data        []byte
	num         uint64
	probability uint64
	log2p       uint8
	index       []indexPair
}

// ReadFile loads the GCS file at path.
func ReadFile(path string) (*Reader, error) {
	s := util.Stats()
	defer s()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading GCS file %s", path)
	}

	return NewReader(data)
}

// NewReader parses the footer and index of a GCS held in data.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < footerSize || string(data[len(data)-8:]) != gcsMagic {
		return nil, ErrNotGCS
	}

	footer := data[len(data)-footerSize:]
	r := &Reader{
		num:         binary.BigEndian.Uint64(footer[0:8]),
		probability: binary.BigEndian.Uint64(footer[8:16]),
	}
	endOfData := binary.BigEndian.Uint64(footer[16:24])
	indexLen := binary.BigEndian.Uint64(footer[24:32])

	indexEnd := uint64(len(data) - footerSize)
	if r.num == 0 || r.probability < 2 || endOfData > indexEnd || (indexEnd-endOfData)/16 != indexLen {
		return nil, errors.Wrap(ErrNotGCS, "corrupt footer")
	}
	r.log2p = log2(r.probability)
	r.data = data[:endOfData]

	log.Debug().Msgf("items: %d, probability: %d, end of data: %d, index length: %d",
		r.num, r.probability, endOfData, indexLen)

	r.index = make([]indexPair, 0, 1+indexLen)
	r.index = append(r.index, indexPair{0, 0})
	for off := endOfData; off < indexEnd; off += 16 {
		r.index = append(r.index, indexPair{
			value:  binary.BigEndian.Uint64(data[off : off+8]),
			bitPos: binary.BigEndian.Uint64(data[off+8 : off+16]),
		})
	}

	log.Info().Msgf("ready for queries on %s items with a 1 in %s false-positive rate",
		util.Count(r.num), util.Count(r.probability))
	return r, nil
}

// Len returns the number of items the GCS was built from.
func (r *Reader) Len() int {
	return int(r.num)
}

// Probability returns p of the 1-in-p false-positive rate.
func (r *Reader) Probability() uint64 {
	return r.probability
}

// Exists reports whether key, as produced by Key, is probably in the set.
func (r *Reader) Exists(key uint64) (bool, error) {
	h := key%(r.num*r.probability) + 1

	// Last index point not past h. index[0] is always {0, 0}.
	i := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].value > h
	}) - 1
	entry := r.index[i]
	if entry.value == h {
		return true, nil
	}

	reader := newBitReader(r.data, entry.bitPos)
	last := entry.value
	for last < h {
		diff, err := decode(reader, r.probability, r.log2p)
		if err != nil {
			return false, errors.Wrapf(err, "decoding after bit %d", entry.bitPos)
		}

		// End of data
		if diff == 0 {
			break
		}
		last += diff
	}

	return last == h, nil
}

func writeU64(w io.Writer, values ...uint64) error {
	buf := make([]byte, 8)
	for _, v := range values {
		binary.BigEndian.PutUint64(buf, v)
		if _, err := w.Write(buf); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"bytes"
	"testing"
)

func TestGolombEncoder(t *testing.T) {
	cases := []struct {
		inputs      []uint64
		probability uint64
		want        []uint64
	}{
		{[]uint64{42, 74, 96, 32}, 4, []uint64{13, 21, 27, 11}},
		{[]uint64{0, 1, 2}, 2, []uint64{2, 2, 3}},
		{[]uint64{420}, 2, []uint64{212}},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		encoder := newEncoder(&buf, tc.probability)

		total := uint64(0)
		for i, val := range tc.inputs {
			wr, err := encoder.Encode(val)
			if err != nil {
				t.Fatalf("Encode should not fail: %s", err)
			}
			if tc.want[i] != wr {
				t.Errorf("Encode(%d): %d, want: %d", val, wr, tc.want[i])
			}
			total += wr
		}

		padding, err := encoder.Finalize()
		if err != nil {
			t.Fatalf("Finalize should not fail: %s", err)
		}
		if (total+padding)/8 != uint64(buf.Len()) {
			t.Errorf("%d bits and %d padding, but %d bytes written", total, padding, buf.Len())
		}

		reader := newBitReader(buf.Bytes(), 0)
		log2p := log2(tc.probability)
		for _, want := range tc.inputs {
			got, err := decode(reader, tc.probability, log2p)
			if err != nil {
				t.Fatalf("decode should not fail: %s", err)
			}
			if got != want {
				t.Errorf("decode: %d, want: %d", got, want)
			}
		}
	}
}

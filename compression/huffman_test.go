package compression

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func TestHuffmanRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	random := func(n, limit int) []uint16 {
		out := make([]uint16, n)
		for i := range out {
			out[i] = uint16(rng.Intn(limit))
		}
		return out
	}
	skewed := make([]uint16, 5000)
	for i := range skewed {
		skewed[i] = uint16(rng.ExpFloat64() * 20)
	}
	runs := make([]uint16, 0, 3000)
	for i := 0; i < 3000; i++ {
		runs = append(runs, uint16(i/700))
	}

	tests := []struct {
		name   string
		values []uint16
	}{
		{"single", []uint16{42}},
		{"one symbol", make([]uint16, 1000)},
		{"max symbol", []uint16{0xffff, 0xffff, 0, 0xffff}},
		{"long runs", runs},
		{"skewed", skewed},
		{"small alphabet", random(4000, 4)},
		{"wide alphabet", random(4000, 1<<16)},
		{"alternating", func() []uint16 {
			out := make([]uint16, 600)
			for i := range out {
				out[i] = uint16(i % 2 * 7)
			}
			return out
		}()},
	}
	for _, tt := range tests {
		packed, err := hufCompress(tt.values)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		out := make([]uint16, len(tt.values))
		if err := hufUncompress(packed, out); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !slices.Equal(out, tt.values) {
			t.Errorf("%s: round trip changed the data", tt.name)
		}
	}
}

func TestHuffmanRunsShrink(t *testing.T) {
	packed, err := hufCompress(make([]uint16, 10000))
	if err != nil {
		t.Fatal(err)
	}
	// 40 runs of 256 words, each a code, a run code and a count
	if len(packed) > hufHeaderSize+16+40*10/8 {
		t.Errorf("10000 zeros coded in %d bytes", len(packed))
	}
}

func TestHuffmanCodeLengthsComplete(t *testing.T) {
	freq := make([]uint64, hufEncSize)
	for i, f := range []uint64{50, 30, 15, 5, 1, 1, 0, 9} {
		freq[100+i] = f
	}
	lengths, ok := hufCodeLengths(freq, 100, 107)
	if !ok {
		t.Fatal("lengths exceed the maximum")
	}
	// a full binary tree satisfies Kraft's equality
	sum := 0.0
	for _, l := range lengths {
		if l > 0 {
			sum += 1 / float64(uint64(1)<<l)
		}
	}
	if sum != 1 {
		t.Errorf("Kraft sum = %v, want 1", sum)
	}
	if lengths[106] != 0 {
		t.Errorf("unused symbol has length %d", lengths[106])
	}
	if lengths[100] > lengths[104] {
		t.Errorf("frequent symbol has length %d, rare one %d", lengths[100], lengths[104])
	}
}

func TestHuffmanUncompressErrors(t *testing.T) {
	values := []uint16{1, 2, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 9, 1}
	packed, err := hufCompress(values)
	if err != nil {
		t.Fatal(err)
	}
	if err := hufUncompress(packed, make([]uint16, len(values)+1)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("longer output: err = %v, want ErrSizeMismatch", err)
	}
	if err := hufUncompress(packed, make([]uint16, len(values)-1)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("shorter output: err = %v, want ErrSizeMismatch", err)
	}
	for n := 1; n < len(packed); n++ {
		if err := hufUncompress(packed[:n], make([]uint16, len(values))); err == nil {
			t.Errorf("%d of %d bytes decoded without error", n, len(packed))
		}
	}
	bad := slices.Clone(packed)
	bad[4] = 0xff
	bad[5] = 0xff
	bad[6] = 0x01
	if err := hufUncompress(bad, make([]uint16, len(values))); !errors.Is(err, ErrCorrupted) {
		t.Errorf("symbol range past the table: err = %v, want ErrCorrupted", err)
	}
}

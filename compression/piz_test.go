package compression

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

func TestPIZSubsampledRoundTrip(t *testing.T) {
	b := Block{
		Width:    10,
		Height:   7,
		FirstRow: 3,
		Channels: []Channel{
			{Name: "BY", Type: PixelTypeHalf, XSampling: 2, YSampling: 2},
			{Name: "RY", Type: PixelTypeHalf, XSampling: 2, YSampling: 2},
			{Name: "Y", Type: PixelTypeHalf, XSampling: 1, YSampling: 1},
			{Name: "Z", Type: PixelTypeFloat, XSampling: 1, YSampling: 1},
			{Name: "id", Type: PixelTypeUint, XSampling: 5, YSampling: 1},
		},
	}
	rng := rand.New(rand.NewSource(9))
	noise := make([]byte, b.Size())
	rng.Read(noise)
	for name, in := range map[string][]byte{"smooth": smoothData(b), "noise": noise} {
		packed, err := PIZ{}.Compress(bytes.Clone(in), b)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		out, err := PIZ{}.Decompress(packed, b, len(in))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("%s: round trip changed the data", name)
		}
	}
}

func TestPIZBitmap(t *testing.T) {
	b := Block{Width: 4, Height: 2, Channels: []Channel{{Name: "Y", Type: PixelTypeHalf, XSampling: 1, YSampling: 1}}}
	tests := []struct {
		name         string
		words        []uint16
		wantMin      int
		wantMax      int
		bitmapLength int
	}{
		{"zeros", []uint16{0, 0, 0, 0, 0, 0, 0, 0}, pizBitmapSize - 1, 0, 0},
		{"low", []uint16{0, 1, 2, 3, 0, 1, 2, 3}, 0, 0, 1},
		{"spread", []uint16{0x3c00, 0x3c00, 0x4000, 0, 9, 9, 9, 9}, 1, 0x800, 0x800},
	}
	for _, tt := range tests {
		in := make([]byte, 0, 16)
		for _, w := range tt.words {
			in = binary.LittleEndian.AppendUint16(in, w)
		}
		packed, err := PIZ{}.Compress(in, b)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		minNonZero := int(binary.LittleEndian.Uint16(packed))
		maxNonZero := int(binary.LittleEndian.Uint16(packed[2:]))
		if minNonZero != tt.wantMin || maxNonZero != tt.wantMax {
			t.Errorf("%s: bitmap range %d..%d, want %d..%d", tt.name, minNonZero, maxNonZero, tt.wantMin, tt.wantMax)
		}
		length := binary.LittleEndian.Uint32(packed[4+tt.bitmapLength:])
		if got := len(packed) - 8 - tt.bitmapLength; int(length) != got {
			t.Errorf("%s: Huffman length %d, %d bytes follow", tt.name, length, got)
		}
		out, err := PIZ{}.Decompress(packed, b, len(in))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("%s: round trip changed the data", tt.name)
		}
	}
}

func TestPIZTruncated(t *testing.T) {
	b := rgbBlock(9, 4)
	in := smoothData(b)
	packed, err := PIZ{}.Compress(bytes.Clone(in), b)
	if err != nil {
		t.Fatal(err)
	}
	for n := 1; n < len(packed); n++ {
		if _, err := (PIZ{}).Decompress(packed[:n], b, len(in)); err == nil {
			t.Errorf("%d of %d bytes decompressed without error", n, len(packed))
		}
	}
	bad := bytes.Clone(packed)
	binary.LittleEndian.PutUint16(bad[2:], pizBitmapSize)
	if _, err := (PIZ{}).Decompress(bad, b, len(in)); err == nil {
		t.Error("bitmap past its end decompressed without error")
	}
}

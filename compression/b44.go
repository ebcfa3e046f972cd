package compression

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/fursund/exrs/half"
)

// B44 is the lossy fixed-rate codec of OpenEXR. HALF channels are cut into
// 4x4 blocks that are stored in 14 bytes each; with Flat set, blocks of a
// single value shrink to 3 bytes (B44A). FLOAT and UINT channels are
// stored unchanged.
type B44 struct {
	Flat bool
}

const b44Bias = 0x20

// b44Pairs lists the sample pairs whose differences make up a block, in
// storage order: down the first column, then across each row.
var b44Pairs = [15][2]int{
	{0, 4}, {4, 8}, {8, 12},
	{0, 1}, {4, 5}, {8, 9}, {12, 13},
	{1, 2}, {5, 6}, {9, 10}, {13, 14},
	{2, 3}, {6, 7}, {10, 11}, {14, 15},
}

var (
	b44ExpTable, b44LogTable [1 << 16]uint16
	b44TablesOnce            sync.Once
)

// b44Tables fills the tables that move linear samples to a logarithmic
// scale before packing and back after unpacking.
func b44Tables() {
	b44TablesOnce.Do(func() {
		maxExp := 8 * math.Log(half.Max.Float64())
		for i := range b44ExpTable {
			h := half.FromBits(uint16(i))
			f := float64(h.Float32())
			switch {
			case !h.IsFinite():
			case f >= maxExp:
				b44ExpTable[i] = half.Max.Bits()
			default:
				b44ExpTable[i] = half.FromFloat32(float32(math.Exp(f / 8))).Bits()
			}
			if h.IsFinite() && f >= 0 {
				b44LogTable[i] = half.FromFloat32(float32(8 * math.Log(f))).Bits()
			}
		}
	})
}

// b44Ordered maps half bits to values that sort like the numbers they
// encode. Infinities and NaNs become zero.
func b44Ordered(s uint16) uint16 {
	switch {
	case s&0x7c00 == 0x7c00:
		return 0x8000
	case s&0x8000 != 0:
		return ^s
	}
	return s | 0x8000
}

func b44FromOrdered(t uint16) uint16 {
	if t&0x8000 != 0 {
		return t & 0x7fff
	}
	return ^t
}

func shiftAndRound(x, shift int) int {
	x <<= 1
	a := 1<<shift - 1
	shift++
	b := (x >> shift) & 1
	return (x + a + b) >> shift
}

// packB44 stores a block in dst and returns the bytes used. With exactMax
// the first sample is chosen so the largest sample survives unchanged.
func packB44(s *[16]uint16, dst []byte, flat, exactMax bool) int {
	var t [16]uint16
	tMax := uint16(0)
	for i, v := range s {
		t[i] = b44Ordered(v)
		tMax = max(tMax, t[i])
	}

	var d [16]int
	var r [15]int
	shift := 0
	for ; ; shift++ {
		for i := range t {
			d[i] = shiftAndRound(int(tMax-t[i]), shift)
		}
		rMin, rMax := math.MaxInt, math.MinInt
		for i, p := range b44Pairs {
			r[i] = d[p[0]] - d[p[1]] + b44Bias
			rMin, rMax = min(rMin, r[i]), max(rMax, r[i])
		}
		if rMin >= 0 && rMax <= 0x3f {
			if flat && rMin == b44Bias && rMax == b44Bias {
				dst[0], dst[1], dst[2] = byte(t[0]>>8), byte(t[0]), 0xfc
				return 3
			}
			break
		}
	}

	t0 := t[0]
	if exactMax {
		t0 = tMax - uint16(d[0]<<shift)
	}
	dst[0] = byte(t0 >> 8)
	dst[1] = byte(t0)
	dst[2] = byte(shift<<2 | r[0]>>4)
	dst[3] = byte(r[0]<<4 | r[1]>>2)
	dst[4] = byte(r[1]<<6 | r[2])
	for k := 0; k < 3; k++ {
		a, b, c := r[3+4*k], r[4+4*k], r[5+4*k]
		dst[5+3*k] = byte(a<<2 | b>>4)
		dst[6+3*k] = byte(b<<4 | c>>2)
		dst[7+3*k] = byte(c<<6 | r[6+4*k])
	}
	return 14
}

// unpack14 is the inverse of the 14-byte form of packB44.
func unpack14(b []byte, s *[16]uint16) {
	s[0] = uint16(b[0])<<8 | uint16(b[1])
	shift := b[2] >> 2
	bias := uint16(b44Bias) << shift
	var r [15]uint16
	r[0] = uint16(b[2])<<4 | uint16(b[3])>>4
	r[1] = uint16(b[3])<<2 | uint16(b[4])>>6
	r[2] = uint16(b[4])
	for k := 0; k < 3; k++ {
		r[3+4*k] = uint16(b[5+3*k]) >> 2
		r[4+4*k] = uint16(b[5+3*k])<<4 | uint16(b[6+3*k])>>4
		r[5+4*k] = uint16(b[6+3*k])<<2 | uint16(b[7+3*k])>>6
		r[6+4*k] = uint16(b[7+3*k])
	}
	for i, p := range b44Pairs {
		s[p[1]] = s[p[0]] + (r[i]&0x3f)<<shift - bias
	}
	for i := range s {
		s[i] = b44FromOrdered(s[i])
	}
}

// unpack3 is the inverse of the flat form of packB44.
func unpack3(b []byte, s *[16]uint16) {
	v := b44FromOrdered(uint16(b[0])<<8 | uint16(b[1]))
	for i := range s {
		s[i] = v
	}
}

// b44Block reads the 4x4 block at x, y of an nx by ny plane, repeating the
// last row and column past the edges.
func b44Block(plane []uint16, nx, ny, x, y int, s *[16]uint16) {
	for by := 0; by < 4; by++ {
		row := min(y+by, ny-1) * nx
		for bx := 0; bx < 4; bx++ {
			s[4*by+bx] = plane[row+min(x+bx, nx-1)]
		}
	}
}

func (c B44) Compress(src []byte, b Block) ([]byte, error) {
	planes, n := wordPlanes(b)
	if 2*n != len(src) {
		return nil, ErrSizeMismatch
	}
	b44Tables()
	buf := getWords(n)
	defer wordBuffers.Put(buf)
	words := *buf
	gatherWords(src, b, planes, words)

	out := make([]byte, 0, len(src))
	var s [16]uint16
	var block [14]byte
	for i, p := range planes {
		plane := words[p.start : p.start+p.words()]
		if b.Channels[i].Type != PixelTypeHalf {
			for _, w := range plane {
				out = binary.LittleEndian.AppendUint16(out, w)
			}
			continue
		}
		linear := b.Channels[i].Linear
		for y := 0; y < p.ny; y += 4 {
			for x := 0; x < p.nx; x += 4 {
				b44Block(plane, p.nx, p.ny, x, y, &s)
				if linear {
					for k, v := range s {
						s[k] = b44ExpTable[v]
					}
				}
				m := packB44(&s, block[:], c.Flat, !linear)
				out = append(out, block[:m]...)
			}
		}
	}
	return out, nil
}

func (B44) Decompress(src []byte, b Block, expectedSize int) ([]byte, error) {
	planes, n := wordPlanes(b)
	if 2*n != expectedSize {
		return nil, ErrSizeMismatch
	}
	b44Tables()
	buf := getWords(n)
	defer wordBuffers.Put(buf)
	words := *buf

	var s [16]uint16
	for i, p := range planes {
		plane := words[p.start : p.start+p.words()]
		if b.Channels[i].Type != PixelTypeHalf {
			if len(src) < 2*len(plane) {
				return nil, ErrCorrupted
			}
			for k := range plane {
				plane[k] = binary.LittleEndian.Uint16(src[2*k:])
			}
			src = src[2*len(plane):]
			continue
		}
		linear := b.Channels[i].Linear
		for y := 0; y < p.ny; y += 4 {
			for x := 0; x < p.nx; x += 4 {
				if len(src) < 3 {
					return nil, ErrCorrupted
				}
				if src[2] >= 13<<2 {
					unpack3(src, &s)
					src = src[3:]
				} else {
					if len(src) < 14 {
						return nil, ErrCorrupted
					}
					unpack14(src, &s)
					src = src[14:]
				}
				if linear {
					for k, v := range s {
						s[k] = b44LogTable[v]
					}
				}
				for by := 0; by < 4 && y+by < p.ny; by++ {
					for bx := 0; bx < 4 && x+bx < p.nx; bx++ {
						plane[(y+by)*p.nx+x+bx] = s[4*by+bx]
					}
				}
			}
		}
	}
	if len(src) != 0 {
		return nil, ErrCorrupted
	}
	out := make([]byte, expectedSize)
	scatterWords(words, b, planes, out)
	return out, nil
}
